package mailer

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/docker/go-units"
	"gopkg.in/yaml.v3"
)

// Config holds the complete mailer configuration.
type Config struct {
	// Mail contains message defaults and send behavior.
	Mail MailConfig `yaml:"mail"`

	// Transports maps driver names to transport definitions.
	Transports map[string]TransportConfig `yaml:"transports"`

	// Templates contains template engine configuration.
	Templates TemplateConfig `yaml:"templates"`

	// RateLimit contains rate limiting configuration.
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// CircuitBreaker contains circuit breaker configuration.
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`

	// Monitoring contains observability configuration.
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

// MailConfig contains message defaults applied by Init and the send pipeline.
type MailConfig struct {
	// ContentType is the body content type of a fresh message.
	ContentType string `yaml:"content_type"`

	// Charset is the character set of a fresh message.
	Charset string `yaml:"charset"`

	// From is the default sender.
	From Address `yaml:"from"`

	// Debug makes Send return errors instead of swallowing them and logs
	// message headers before every dispatch.
	Debug bool `yaml:"debug"`

	// LeftDelimiter and RightDelimiter wrap placeholder names. Empty means "{" and "}".
	LeftDelimiter  string `yaml:"left_delimiter"`
	RightDelimiter string `yaml:"right_delimiter"`

	// Driver is the transport used when a send names none.
	Driver string `yaml:"driver"`

	// MaxAttachmentSize limits a single attachment, e.g. "25MiB". Empty disables the limit.
	MaxAttachmentSize string `yaml:"max_attachment_size"`

	// LineLength is the longest body line sent without quoted-printable encoding.
	LineLength int `yaml:"line_length"`
}

// TransportType identifies a transport driver implementation.
type TransportType string

const (
	// TransportSMTP delivers through an SMTP relay.
	TransportSMTP TransportType = "smtp"

	// TransportSendmail pipes messages to a local sendmail binary.
	TransportSendmail TransportType = "sendmail"

	// TransportAWSSES represents Amazon Simple Email Service.
	TransportAWSSES TransportType = "aws_ses"

	// TransportSendGrid represents the SendGrid email service.
	TransportSendGrid TransportType = "sendgrid"

	// TransportMailgun represents the Mailgun email service.
	TransportMailgun TransportType = "mailgun"

	// TransportLog writes messages to the mailer logger.
	TransportLog TransportType = "log"

	// TransportMemory keeps messages in memory.
	TransportMemory TransportType = "memory"
)

// String returns the string representation of the transport type.
func (tt TransportType) String() string {
	return string(tt)
}

// Valid checks if the transport type is supported.
func (tt TransportType) Valid() bool {
	switch tt {
	case TransportSMTP, TransportSendmail, TransportAWSSES, TransportSendGrid,
		TransportMailgun, TransportLog, TransportMemory:
		return true
	default:
		return false
	}
}

// TransportConfig defines one named transport.
type TransportConfig struct {
	// Type selects the driver implementation.
	Type TransportType `yaml:"type"`

	// Settings are passed to the driver, e.g. host, port, api_key.
	Settings TransportSettings `yaml:",inline"`
}

// TemplateConfig contains template engine configuration.
type TemplateConfig struct {
	// Enabled indicates whether View is available.
	Enabled bool `yaml:"enabled"`

	// Directory is the path to the directory containing email templates.
	Directory string `yaml:"directory"`

	// Extension lists the file extensions loaded from Directory.
	Extension []string `yaml:"extension"`

	// AllowUnsafeFunctions enables unsafe template functions that bypass auto-escaping.
	// WARNING: Only enable this if you trust all template content completely.
	AllowUnsafeFunctions bool `yaml:"allow_unsafe_functions"`
}

// RateLimitConfig contains rate limiting configuration.
type RateLimitConfig struct {
	// Enabled installs a ThrottlerPlugin on every send.
	Enabled bool `yaml:"enabled"`

	// Rate is the number of messages per period.
	Rate int `yaml:"rate"`

	// Period is the time period for the rate limit.
	Period time.Duration `yaml:"period"`

	// Burst is the maximum number of messages that can be sent immediately.
	Burst int `yaml:"burst"`

	// PerRecipient charges one token per recipient instead of one per message.
	PerRecipient bool `yaml:"per_recipient"`
}

// CircuitBreakerConfig contains circuit breaker configuration.
type CircuitBreakerConfig struct {
	// Enabled installs a CircuitBreakerPlugin on every send.
	Enabled bool `yaml:"enabled"`

	// FailureThreshold is the number of failures that opens the circuit.
	FailureThreshold int `yaml:"failure_threshold"`

	// SuccessThreshold is the number of successes needed to close the circuit.
	SuccessThreshold int `yaml:"success_threshold"`

	// Timeout is how long the circuit stays open before a trial send.
	Timeout time.Duration `yaml:"timeout"`

	// ResetTimeout is how long to wait before resetting failure counts.
	ResetTimeout time.Duration `yaml:"reset_timeout"`
}

// MonitoringConfig contains observability configuration.
type MonitoringConfig struct {
	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`

	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled makes the builder use the global OpenTelemetry tracer provider.
	Enabled bool `yaml:"enabled"`

	// ServiceName is recorded on every send span.
	ServiceName string `yaml:"service_name"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the logging level (debug, info, warn, error).
	Level string `yaml:"level"`

	// Format is the log format (json, console).
	Format string `yaml:"format"`

	// Output is where to write logs (stdout, stderr, or file path).
	Output string `yaml:"output"`

	// Writer overrides Output when set.
	Writer io.Writer `yaml:"-"`
}

// DefaultConfig returns a configuration with sensible defaults. Messages go to
// the "log" driver until a real transport is configured.
func DefaultConfig() Config {
	return Config{
		Mail: MailConfig{
			ContentType:       "text/html",
			Charset:           "UTF-8",
			Driver:            string(TransportLog),
			MaxAttachmentSize: "25MiB",
			LineLength:        998,
		},
		Transports: map[string]TransportConfig{
			string(TransportLog): {Type: TransportLog, Settings: TransportSettings{}},
		},
		Templates: TemplateConfig{
			Enabled:              true,
			Extension:            []string{".html", ".txt"},
			AllowUnsafeFunctions: false, // Secure by default
		},
		RateLimit: RateLimitConfig{
			Enabled: false,
			Rate:    100,
			Period:  time.Minute,
			Burst:   10,
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:          false,
			FailureThreshold: 5,
			SuccessThreshold: 3,
			Timeout:          60 * time.Second,
			ResetTimeout:     300 * time.Second,
		},
		Monitoring: MonitoringConfig{
			Tracing: TracingConfig{
				Enabled:     true,
				ServiceName: "mailer",
			},
			Logging: LoggingConfig{
				Level:  "info",
				Format: "json",
				Output: "stderr",
			},
		},
	}
}

// Validate checks if the configuration is valid and complete.
func (c *Config) Validate() error {
	if c.Mail.LineLength < 0 {
		return &ValidationError{
			Field:   "mail.line_length",
			Message: "line length must not be negative",
			Value:   c.Mail.LineLength,
		}
	}

	if _, err := c.maxAttachmentBytes(); err != nil {
		return &ValidationError{
			Field:   "mail.max_attachment_size",
			Message: err.Error(),
			Value:   c.Mail.MaxAttachmentSize,
		}
	}

	for name, tc := range c.Transports {
		if !tc.Type.Valid() {
			return &ValidationError{
				Field:   "transports." + name + ".type",
				Message: "invalid or unsupported transport type: " + string(tc.Type),
			}
		}
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.Rate <= 0 {
			return &ValidationError{
				Field:   "rate_limit.rate",
				Message: "rate must be greater than 0",
			}
		}
		if c.RateLimit.Period <= 0 {
			return &ValidationError{
				Field:   "rate_limit.period",
				Message: "period must be greater than 0",
			}
		}
		if c.RateLimit.Burst <= 0 {
			return &ValidationError{
				Field:   "rate_limit.burst",
				Message: "burst must be greater than 0",
			}
		}
	}

	if c.CircuitBreaker.Enabled && c.CircuitBreaker.FailureThreshold < 1 {
		return &ValidationError{
			Field:   "circuit_breaker.failure_threshold",
			Message: "failure threshold must be at least 1",
		}
	}

	return nil
}

// maxAttachmentBytes parses Mail.MaxAttachmentSize. Zero means unlimited.
func (c *Config) maxAttachmentBytes() (int64, error) {
	if strings.TrimSpace(c.Mail.MaxAttachmentSize) == "" {
		return 0, nil
	}
	n, err := units.RAMInBytes(c.Mail.MaxAttachmentSize)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("size must not be negative")
	}
	return n, nil
}

// delimiters returns the configured placeholder delimiters.
func (c *Config) delimiters() Delimiters {
	return Delimiters{Left: c.Mail.LeftDelimiter, Right: c.Mail.RightDelimiter}
}

// LoadConfig reads a YAML file on top of DefaultConfig and then applies
// MAILER_* environment overrides.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// LoadConfigFromEnv builds a configuration from DefaultConfig and MAILER_*
// environment variables only.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) error {
	m := &cfg.Mail
	if v := os.Getenv("MAILER_CONTENT_TYPE"); v != "" {
		m.ContentType = v
	}
	if v := os.Getenv("MAILER_CHARSET"); v != "" {
		m.Charset = v
	}
	if v := os.Getenv("MAILER_FROM_ADDRESS"); v != "" {
		m.From.Email = v
	}
	if v := os.Getenv("MAILER_FROM_NAME"); v != "" {
		m.From.Name = v
	}
	if v := os.Getenv("MAILER_DRIVER"); v != "" {
		m.Driver = v
	}
	if v := os.Getenv("MAILER_LEFT_DELIMITER"); v != "" {
		m.LeftDelimiter = v
	}
	if v := os.Getenv("MAILER_RIGHT_DELIMITER"); v != "" {
		m.RightDelimiter = v
	}
	if v := os.Getenv("MAILER_MAX_ATTACHMENT_SIZE"); v != "" {
		m.MaxAttachmentSize = v
	}
	if v := os.Getenv("MAILER_DEBUG"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parsing MAILER_DEBUG: %w", err)
		}
		m.Debug = b
	}
	if v := os.Getenv("MAILER_LINE_LENGTH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing MAILER_LINE_LENGTH: %w", err)
		}
		m.LineLength = n
	}
	if v := os.Getenv("MAILER_LOG_LEVEL"); v != "" {
		cfg.Monitoring.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("MAILER_LOG_FORMAT"); v != "" {
		cfg.Monitoring.Logging.Format = strings.ToLower(v)
	}
	return nil
}
