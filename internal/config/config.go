package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/example/slotbooker/internal/artifacts"
	"github.com/example/slotbooker/internal/domain/booking"
	"github.com/example/slotbooker/internal/notify"
	"github.com/example/slotbooker/internal/octiv"
	"github.com/example/slotbooker/internal/orchestrator"
)

const (
	DefaultConfigPath  = "utils/config.yaml"
	DefaultClassesPath = "data/classes.yaml"
	defaultBaseURL     = "https://app.octivfitness.com"
)

// Config is everything `slotbooker run` reads at start up.
type Config struct {
	Username             string
	Password             string
	DaysBeforeBookable   int
	ExecutionBookingTime string
	RetryLimit           int
	TestMode             bool

	BaseURL    string
	DriverHint string
	Headless   bool
	Classes    booking.ClassSelection

	DatabaseURL string
	Mail        notify.MailConfig

	ArtifactStore string // dir or minio
	ArtifactDir   string
	MinIO         artifacts.MinIOConfig
}

// File is the static config.yaml.
type File struct {
	BaseURL      string `yaml:"base_url"`
	Chromedriver string `yaml:"chromedriver"`
	Headless     *bool  `yaml:"headless"`
}

type classesFile struct {
	BookClass string                         `yaml:"book_class"`
	ClassDict map[string][]booking.ClassSlot `yaml:"class_dict"`
}

// FromEnv loads the two yaml files and the environment.
func FromEnv(configPath, classesPath string) (Config, error) {
	f, err := LoadFile(configPath)
	if err != nil {
		return Config{}, err
	}
	classes, err := LoadClasses(classesPath)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Username:             strings.TrimSpace(os.Getenv("OCTIV_USERNAME")),
		Password:             os.Getenv("OCTIV_PASSWORD"),
		ExecutionBookingTime: strings.TrimSpace(os.Getenv("EXECUTION_BOOKING_TIME")),
		TestMode:             os.Getenv("IS_TEST") != "",
		BaseURL:              f.BaseURL,
		DriverHint:           getenv("CHROME_PATH", f.Chromedriver),
		Headless:             f.Headless == nil || *f.Headless,
		Classes:              classes,
		DatabaseURL:          strings.TrimSpace(os.Getenv("DATABASE_URL")),
		ArtifactStore:        getenv("ARTIFACT_STORE", "dir"),
		ArtifactDir:          getenv("ARTIFACT_DIR", "logs"),
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.ExecutionBookingTime != "" {
		if _, err := octiv.ParseBookingTime(cfg.ExecutionBookingTime); err != nil {
			return Config{}, fmt.Errorf("EXECUTION_BOOKING_TIME: %w", err)
		}
	}

	if cfg.DaysBeforeBookable, err = intEnv("DAYS_BEFORE_BOOKABLE", 0); err != nil {
		return Config{}, err
	}
	if cfg.RetryLimit, err = intEnv("RETRY_LIMIT", orchestrator.DefaultRetryLimit); err != nil {
		return Config{}, err
	}
	if cfg.Mail, err = mailFromEnv(); err != nil {
		return Config{}, err
	}
	if cfg.ArtifactStore == "minio" {
		if cfg.MinIO, err = minioFromEnv(); err != nil {
			return Config{}, err
		}
	} else if cfg.ArtifactStore != "dir" {
		return Config{}, fmt.Errorf("invalid ARTIFACT_STORE %q (want dir or minio)", cfg.ArtifactStore)
	}
	return cfg, nil
}

// RunConfig is the immutable part handed to the orchestrator.
func (c Config) RunConfig() orchestrator.RunConfig {
	return orchestrator.RunConfig{
		Username:             c.Username,
		Password:             c.Password,
		DaysBeforeBookable:   c.DaysBeforeBookable,
		ExecutionBookingTime: c.ExecutionBookingTime,
		RetryLimit:           c.RetryLimit,
		BaseURL:              c.BaseURL,
		DriverHint:           c.DriverHint,
		Classes:              c.Classes.Clone(),
		TestMode:             c.TestMode,
	}
}

func LoadFile(path string) (File, error) {
	var f File
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return f, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &f); err != nil {
		return f, fmt.Errorf("parse %s: %w", path, err)
	}
	return f, nil
}

// LoadClasses reads the class selection. Weekday keys are lower-cased.
func LoadClasses(path string) (booking.ClassSelection, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return booking.ClassSelection{}, fmt.Errorf("read %s: %w", path, err)
	}
	var raw classesFile
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return booking.ClassSelection{}, fmt.Errorf("parse %s: %w", path, err)
	}

	action, err := parseAction(raw.BookClass)
	if err != nil {
		return booking.ClassSelection{}, fmt.Errorf("%s: %w", path, err)
	}
	sel := booking.ClassSelection{Action: action, Classes: map[string][]booking.ClassSlot{}}
	for day, slots := range raw.ClassDict {
		key := strings.ToLower(strings.TrimSpace(day))
		if !validWeekday(key) {
			return booking.ClassSelection{}, fmt.Errorf("%s: unknown weekday %q", path, day)
		}
		for _, s := range slots {
			if strings.TrimSpace(s.Name) == "" || strings.TrimSpace(s.Time) == "" {
				return booking.ClassSelection{}, fmt.Errorf("%s: %s: class needs name and time", path, day)
			}
		}
		sel.Classes[key] = append(sel.Classes[key], slots...)
	}
	return sel, nil
}

func parseAction(s string) (booking.Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "true", "book":
		return booking.ActionBook, nil
	case "cancel":
		return booking.ActionCancel, nil
	default:
		return "", fmt.Errorf("invalid book_class %q (want book or cancel)", s)
	}
}

func validWeekday(s string) bool {
	switch s {
	case "monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday":
		return true
	}
	return false
}

func mailFromEnv() (notify.MailConfig, error) {
	port, err := intEnv("SMTP_PORT", 587)
	if err != nil {
		return notify.MailConfig{}, err
	}
	m := notify.MailConfig{
		Host:     strings.TrimSpace(os.Getenv("SMTP_HOST")),
		Port:     port,
		Username: os.Getenv("SMTP_USERNAME"),
		Password: os.Getenv("SMTP_PASSWORD"),
		From:     strings.TrimSpace(os.Getenv("MAIL_FROM")),
		To:       splitCSV(os.Getenv("MAIL_TO")),
	}
	return m, m.Validate()
}

func minioFromEnv() (artifacts.MinIOConfig, error) {
	useSSL, err := boolEnv("MINIO_USE_SSL", true)
	if err != nil {
		return artifacts.MinIOConfig{}, err
	}
	m := artifacts.MinIOConfig{
		Endpoint:  strings.TrimSpace(os.Getenv("MINIO_ENDPOINT")),
		AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		SecretKey: os.Getenv("MINIO_SECRET_KEY"),
		Region:    getenv("MINIO_REGION", "us-east-1"),
		Bucket:    getenv("MINIO_BUCKET", "slotbooker"),
		Prefix:    getenv("MINIO_PREFIX", "runs"),
		UseSSL:    useSSL,
	}
	return m, m.Validate()
}

// Dashboard is what `slotbooker server` reads.
type Dashboard struct {
	ListenAddr     string
	DatabaseURL    string
	User           string
	PasswordHash   string
	CookieHashKey  []byte
	CookieBlockKey []byte
	ArtifactDir    string
}

func DashboardFromEnv() (Dashboard, error) {
	d := Dashboard{
		ListenAddr:   getenv("LISTEN_ADDR", ":8080"),
		DatabaseURL:  strings.TrimSpace(os.Getenv("DATABASE_URL")),
		User:         getenv("DASHBOARD_USER", "admin"),
		PasswordHash: strings.TrimSpace(os.Getenv("DASHBOARD_PASSWORD_HASH")),
		ArtifactDir:  getenv("ARTIFACT_DIR", "logs"),
	}
	if d.DatabaseURL == "" {
		return Dashboard{}, fmt.Errorf("DATABASE_URL is required")
	}
	if d.PasswordHash == "" {
		return Dashboard{}, fmt.Errorf("DASHBOARD_PASSWORD_HASH is required (see `slotbooker hash-password`)")
	}

	hashKey := os.Getenv("COOKIE_HASH_KEY")
	blockKey := os.Getenv("COOKIE_BLOCK_KEY")
	if hashKey == "" || blockKey == "" {
		return Dashboard{}, fmt.Errorf("COOKIE_HASH_KEY and COOKIE_BLOCK_KEY are required (see `slotbooker keys`)")
	}
	var err error
	if d.CookieHashKey, err = decodeB64(hashKey); err != nil {
		return Dashboard{}, fmt.Errorf("COOKIE_HASH_KEY: %w", err)
	}
	if d.CookieBlockKey, err = decodeB64(blockKey); err != nil {
		return Dashboard{}, fmt.Errorf("COOKIE_BLOCK_KEY: %w", err)
	}
	switch len(d.CookieBlockKey) {
	case 16, 24, 32:
	default:
		return Dashboard{}, fmt.Errorf("COOKIE_BLOCK_KEY must decode to 16, 24 or 32 bytes (got %d)", len(d.CookieBlockKey))
	}
	return d, nil
}

// decodeB64 accepts the value itself or a path to a file holding it, for
// secret mounts.
func decodeB64(s string) ([]byte, error) {
	if b, err := os.ReadFile(s); err == nil {
		s = string(b)
	}
	s = strings.TrimSpace(s)
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}

func getenv(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}

func intEnv(k string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", k, err)
	}
	return n, nil
}

func boolEnv(k string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", k, err)
	}
	return b, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
