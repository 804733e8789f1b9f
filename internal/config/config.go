package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/inhies/go-bytesize"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Server
	Port string `envconfig:"PORT" default:"8080"`
	Env  string `envconfig:"ENV" default:"development"` // development, staging, production

	// Database
	DatabaseURL string `envconfig:"DATABASE_URL"`
	AutoMigrate bool   `envconfig:"AUTO_MIGRATE" default:"true"`

	// Firebase
	FirebaseProjectID string `envconfig:"FIREBASE_PROJECT_ID"`

	// Admins that do not carry the admin custom claim yet
	AdminEmails []string `envconfig:"ADMIN_EMAILS"`

	// Uploads
	PublicBaseURL           string   `envconfig:"PUBLIC_BASE_URL" default:"http://localhost:8080"`
	UploadDir               string   `envconfig:"UPLOAD_DIR" default:"uploads"`
	StorageBucket           string   `envconfig:"STORAGE_BUCKET"`
	StorageCredentialsFile  string   `envconfig:"STORAGE_CREDENTIALS_FILE"`
	UploadMaxSize           ByteSize `envconfig:"UPLOAD_MAX_SIZE" default:"10MB"`
	UploadAllowedExtensions []string `envconfig:"UPLOAD_ALLOWED_EXTENSIONS" default:"pdf,jpg,jpeg,png"`
	UploadAllowedMIMETypes  []string `envconfig:"UPLOAD_ALLOWED_MIME_TYPES" default:"application/pdf,image/jpeg,image/png"`
	UploadVerifyPDF         bool     `envconfig:"UPLOAD_VERIFY_PDF" default:"true"`
	PassportMaxDimension    int      `envconfig:"PASSPORT_MAX_DIMENSION" default:"600"`

	// Mail
	SMTPHost     string `envconfig:"SMTP_HOST"`
	SMTPPort     string `envconfig:"SMTP_PORT" default:"587"`
	SMTPUsername string `envconfig:"SMTP_USERNAME"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
	MailFrom     string `envconfig:"MAIL_FROM" default:"KIUTH Recruitment <noreply@kiuth.edu.ng>"`

	// SMS gateway
	SMSAPIURL   string `envconfig:"SMS_API_URL" default:"https://www.bulksmsnigeria.com/api/v2/sms"`
	SMSAPIToken string `envconfig:"SMS_API_TOKEN"`
	SMSGateway  string `envconfig:"SMS_GATEWAY" default:"direct-corporate"`
	SMSSenderID string `envconfig:"SMS_SENDER_ID" default:"KIUTH"`
	SMSRetryMax int    `envconfig:"SMS_RETRY_MAX" default:"0"`

	OutboundTimeout time.Duration `envconfig:"OUTBOUND_TIMEOUT" default:"20s"`

	// Applications
	ReferencePrefix string `envconfig:"REFERENCE_PREFIX" default:"KIUTH"`
	ContactInbox    string `envconfig:"CONTACT_INBOX"`

	// RFC 3339; empty keeps recruitment open
	RecruitmentDeadlineRaw string     `envconfig:"RECRUITMENT_DEADLINE"`
	RecruitmentDeadline    *time.Time `ignored:"true"`

	// Notification dispatcher
	DispatchInterval    time.Duration `envconfig:"DISPATCH_INTERVAL" default:"30s"`
	DispatchBatchSize   int           `envconfig:"DISPATCH_BATCH_SIZE" default:"20"`
	DispatchWorkers     int           `envconfig:"DISPATCH_WORKERS" default:"4"`
	DispatchMaxAttempts int           `envconfig:"DISPATCH_MAX_ATTEMPTS" default:"6"`

	// Error reporting
	SentryDSN string `envconfig:"SENTRY_DSN"`

	// Rate Limiting
	RateLimitRPS int `envconfig:"RATE_LIMIT_RPS" default:"10"`

	// CORS
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5173,https://recruitment.kiuth.edu.ng"`
}

// ByteSize accepts human sizes such as "10MB" or "512KB".
type ByteSize int64

func (b *ByteSize) Decode(value string) error {
	parsed, err := bytesize.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid byte size %q: %w", value, err)
	}
	*b = ByteSize(parsed)
	return nil
}

func Load() (*Config, error) {
	// Load .env file if it exists (development only). Real env vars win.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("processing environment: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.UploadMaxSize <= 0 {
		return nil, fmt.Errorf("UPLOAD_MAX_SIZE must be positive")
	}

	if raw := strings.TrimSpace(cfg.RecruitmentDeadlineRaw); raw != "" {
		deadline, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("RECRUITMENT_DEADLINE must be RFC 3339: %w", err)
		}
		cfg.RecruitmentDeadline = &deadline
	}

	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	cfg.AdminEmails = normalizeList(cfg.AdminEmails)
	cfg.UploadAllowedExtensions = normalizeList(cfg.UploadAllowedExtensions)
	cfg.UploadAllowedMIMETypes = normalizeList(cfg.UploadAllowedMIMETypes)

	return &cfg, nil
}

func normalizeList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.ToLower(strings.TrimSpace(item))
		item = strings.TrimPrefix(item, ".")
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
