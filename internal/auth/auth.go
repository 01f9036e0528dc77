package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

const (
	cookieName = "slotbooker_session"
	sessionTTL = 14 * 24 * time.Hour
)

// Store guards the dashboard for its single operator account.
type Store struct {
	sc           *securecookie.SecureCookie
	user         string
	passwordHash string
	now          func() time.Time
}

type ctxKey struct{}

func NewStore(user, passwordHash string, hashKey, blockKey []byte) *Store {
	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(int(sessionTTL.Seconds()))
	return &Store{sc: sc, user: user, passwordHash: passwordHash, now: time.Now}
}

func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

func CheckPassword(hash, pw string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw))
	return err == nil
}

// GenerateKeys returns a fresh hash key and AES-256 block key.
func GenerateKeys() (hashKey, blockKey []byte) {
	return securecookie.GenerateRandomKey(64), securecookie.GenerateRandomKey(32)
}

// Authenticate checks the operator credentials. The password is always
// compared so a wrong username costs the same as a wrong password.
func (s *Store) Authenticate(username, password string) error {
	userOK := secureEq(username, s.user)
	passOK := CheckPassword(s.passwordHash, password)
	if !userOK || !passOK {
		return ErrInvalidCredentials
	}
	return nil
}

type Session struct {
	User     string
	IssuedAt time.Time
}

func (s *Store) SetSession(w http.ResponseWriter, r *http.Request, user string) error {
	val := map[string]any{"user": user, "iat": s.now().Unix()}
	encoded, err := s.sc.Encode(cookieName, val)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
		MaxAge:   int(sessionTTL.Seconds()),
	})
	return nil
}

func (s *Store) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

func (s *Store) GetSession(r *http.Request) (Session, bool) {
	c, err := r.Cookie(cookieName)
	if err != nil {
		return Session{}, false
	}
	val := map[string]any{}
	if err := s.sc.Decode(cookieName, c.Value, &val); err != nil {
		return Session{}, false
	}
	user, _ := val["user"].(string)
	// a rotated DASHBOARD_USER invalidates old cookies
	if user == "" || !secureEq(user, s.user) {
		return Session{}, false
	}
	iat, _ := val["iat"].(int64)
	return Session{User: user, IssuedAt: time.Unix(iat, 0)}, true
}

func (s *Store) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.GetSession(r)
		if !ok {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		ctx := context.WithValue(r.Context(), ctxKey{}, sess.User)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func UserFromContext(ctx context.Context) (string, bool) {
	u, ok := ctx.Value(ctxKey{}).(string)
	return u, ok
}

func secureEq(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
