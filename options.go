package mailer

import (
	"io"
	"time"
)

// Option is a functional option for configuring a Builder.
type Option func(*Config)

// WithTransport defines a named transport and makes it the default driver.
func WithTransport(name string, transportType TransportType, settings TransportSettings) Option {
	return func(c *Config) {
		if c.Transports == nil {
			c.Transports = make(map[string]TransportConfig)
		}
		if settings == nil {
			settings = TransportSettings{}
		}
		c.Transports[name] = TransportConfig{Type: transportType, Settings: settings}
		c.Mail.Driver = name
	}
}

// WithDriver sets the transport used when a send names none.
func WithDriver(name string) Option {
	return func(c *Config) {
		c.Mail.Driver = name
	}
}

// WithFrom sets the default sender.
func WithFrom(address, name string) Option {
	return func(c *Config) {
		c.Mail.From = Address{Email: address, Name: name}
	}
}

// WithDebug toggles debug mode.
func WithDebug(enabled bool) Option {
	return func(c *Config) {
		c.Mail.Debug = enabled
	}
}

// WithDelimiters sets the default placeholder delimiters.
func WithDelimiters(left, right string) Option {
	return func(c *Config) {
		c.Mail.LeftDelimiter = left
		c.Mail.RightDelimiter = right
	}
}

// WithContentType sets the default body content type and charset.
func WithContentType(contentType, charset string) Option {
	return func(c *Config) {
		c.Mail.ContentType = contentType
		c.Mail.Charset = charset
	}
}

// WithMaxAttachmentSize limits the size of a single attachment, e.g. "10MB".
func WithMaxAttachmentSize(size string) Option {
	return func(c *Config) {
		c.Mail.MaxAttachmentSize = size
	}
}

// WithTemplates enables template functionality and sets the template directory.
func WithTemplates(directory string) Option {
	return func(c *Config) {
		c.Templates.Enabled = true
		c.Templates.Directory = directory
	}
}

// WithRateLimit configures rate limiting.
func WithRateLimit(rate int, period time.Duration, burst int) Option {
	return func(c *Config) {
		c.RateLimit.Enabled = true
		c.RateLimit.Rate = rate
		c.RateLimit.Period = period
		c.RateLimit.Burst = burst
	}
}

// WithCircuitBreaker configures circuit breaker behavior.
func WithCircuitBreaker(failureThreshold, successThreshold int, timeout time.Duration) Option {
	return func(c *Config) {
		c.CircuitBreaker.Enabled = true
		c.CircuitBreaker.FailureThreshold = failureThreshold
		c.CircuitBreaker.SuccessThreshold = successThreshold
		c.CircuitBreaker.Timeout = timeout
	}
}

// WithoutTracing disables distributed tracing.
func WithoutTracing() Option {
	return func(c *Config) {
		c.Monitoring.Tracing.Enabled = false
	}
}

// WithLogging configures logging.
func WithLogging(level, format, output string) Option {
	return func(c *Config) {
		c.Monitoring.Logging.Level = level
		c.Monitoring.Logging.Format = format
		c.Monitoring.Logging.Output = output
	}
}

// WithLogWriter sends log output to w.
func WithLogWriter(w io.Writer) Option {
	return func(c *Config) {
		c.Monitoring.Logging.Writer = w
	}
}

// WithSMTP defines an "smtp" transport and selects it.
func WithSMTP(host, port string) Option {
	return WithTransport("smtp", TransportSMTP, TransportSettings{
		"host": host,
		"port": port,
	})
}

// WithSMTPAuth defines an authenticated "smtp" transport and selects it.
func WithSMTPAuth(host, port, username, password string) Option {
	return WithTransport("smtp", TransportSMTP, TransportSettings{
		"host":     host,
		"port":     port,
		"username": username,
		"password": password,
	})
}

// WithSendmail defines a "sendmail" transport using the given binary.
func WithSendmail(path string) Option {
	return WithTransport("sendmail", TransportSendmail, TransportSettings{
		"path": path,
	})
}

// WithAWSSES defines an "aws_ses" transport for region.
func WithAWSSES(region string) Option {
	return WithTransport("aws_ses", TransportAWSSES, TransportSettings{
		"region": region,
	})
}

// WithSendGrid defines a "sendgrid" transport.
func WithSendGrid(apiKey string) Option {
	return WithTransport("sendgrid", TransportSendGrid, TransportSettings{
		"api_key": apiKey,
	})
}

// WithMailgun defines a "mailgun" transport.
func WithMailgun(apiKey, domain string) Option {
	return WithTransport("mailgun", TransportMailgun, TransportSettings{
		"api_key": apiKey,
		"domain":  domain,
	})
}

// WithMailgunEU defines a "mailgun" transport for the EU region.
func WithMailgunEU(apiKey, domain string) Option {
	return WithTransport("mailgun", TransportMailgun, TransportSettings{
		"api_key":  apiKey,
		"domain":   domain,
		"base_url": "https://api.eu.mailgun.net",
	})
}
