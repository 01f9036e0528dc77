package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/example/slotbooker/internal/artifacts"
	"github.com/example/slotbooker/internal/domain/booking"
)

type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

func (c MailConfig) Enabled() bool { return strings.TrimSpace(c.Host) != "" }

func (c MailConfig) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if c.Port <= 0 {
		return fmt.Errorf("smtp port must be positive")
	}
	if strings.TrimSpace(c.From) == "" {
		return errors.New("MAIL_FROM is required when SMTP_HOST is set")
	}
	if len(c.To) == 0 {
		return errors.New("MAIL_TO is required when SMTP_HOST is set")
	}
	return nil
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer sends the run mails over SMTP with PLAIN auth.
type Mailer struct {
	cfg  MailConfig
	send sendFunc
	now  func() time.Time
}

func NewMailer(cfg MailConfig) *Mailer {
	return &Mailer{cfg: cfg, send: smtp.SendMail, now: time.Now}
}

func (m *Mailer) SendLogArtifact(ctx context.Context, a artifacts.Artifact, tag booking.Tag) error {
	subject := "Slotbooker logs: " + string(tag)
	body := fmt.Sprintf("Booking run finished with %s.\n", tag)
	if a.Location != "" {
		body += "Log artifact: " + a.Location + "\n"
	}
	if len(a.Content) == 0 {
		body += "The run log could not be rendered.\n"
		return m.deliver(ctx, subject, body, nil)
	}
	return m.deliver(ctx, subject, body, &a)
}

func (m *Mailer) SendBookingSucceeded(ctx context.Context, timeSlot, classSlot string) error {
	subject := fmt.Sprintf("Booked %s at %s", classSlot, timeSlot)
	body := fmt.Sprintf("Your class %s at %s has been booked.\n", classSlot, timeSlot)
	return m.deliver(ctx, subject, body, nil)
}

func (m *Mailer) SendBookingFailed(ctx context.Context) error {
	return m.deliver(ctx, "Class booking failed", "No class could be booked. See the logs mail for details.\n", nil)
}

func (m *Mailer) deliver(ctx context.Context, subject, body string, attachment *artifacts.Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := buildMessage(m.cfg.From, m.cfg.To, subject, body, attachment, m.now())
	if err != nil {
		return err
	}
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	if err := m.send(addr, auth, m.cfg.From, m.cfg.To, msg); err != nil {
		return fmt.Errorf("smtp %s: %w", addr, err)
	}
	return nil
}

func buildMessage(from string, to []string, subject, body string, attachment *artifacts.Artifact, date time.Time) ([]byte, error) {
	var buf bytes.Buffer
	h := func(k, v string) { fmt.Fprintf(&buf, "%s: %s\r\n", k, v) }
	h("From", from)
	h("To", strings.Join(to, ", "))
	h("Subject", mime.QEncoding.Encode("utf-8", subject))
	h("Date", date.Format(time.RFC1123Z))
	h("MIME-Version", "1.0")

	if attachment == nil {
		h("Content-Type", `text/plain; charset="utf-8"`)
		h("Content-Transfer-Encoding", "8bit")
		buf.WriteString("\r\n")
		buf.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
		return buf.Bytes(), nil
	}

	mw := multipart.NewWriter(&buf)
	h("Content-Type", "multipart/mixed; boundary="+mw.Boundary())
	buf.WriteString("\r\n")

	text, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {`text/plain; charset="utf-8"`},
		"Content-Transfer-Encoding": {"8bit"},
	})
	if err != nil {
		return nil, err
	}
	if _, err := text.Write([]byte(strings.ReplaceAll(body, "\n", "\r\n"))); err != nil {
		return nil, err
	}

	ct := attachment.ContentType
	if ct == "" {
		ct = "text/html; charset=utf-8"
	}
	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {ct},
		"Content-Transfer-Encoding": {"base64"},
		"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": attachment.Name})},
	})
	if err != nil {
		return nil, err
	}
	enc := base64.StdEncoding.EncodeToString(attachment.Content)
	for len(enc) > 76 {
		if _, err := part.Write([]byte(enc[:76] + "\r\n")); err != nil {
			return nil, err
		}
		enc = enc[76:]
	}
	if _, err := part.Write([]byte(enc + "\r\n")); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
