package phoenix

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

const (
	DefaultTimeout          = 10 * time.Second
	DefaultMaxRetryAttempts = 3
	DefaultBaseBackoff      = 100 * time.Millisecond
	DefaultUserAgent        = "mg-gateway/phoenix-client"
)

// Config is fixed at construction. Zero values take the defaults above.
type Config struct {
	// BaseURL is the API root, e.g. http://localhost:4000/api. A trailing
	// slash is stripped.
	BaseURL string
	// Timeout bounds a single attempt, not the whole call.
	Timeout          time.Duration
	MaxRetryAttempts int
	BaseBackoff      time.Duration
	// RetryServerErrors retries 5xx responses with the same backoff as
	// transport failures. Off by default: a 5xx ends the call.
	RetryServerErrors bool
	UserAgent         string
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxRetryAttempts < 1 {
		c.MaxRetryAttempts = DefaultMaxRetryAttempts
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = DefaultBaseBackoff
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	return c
}

// Doer performs one HTTP round trip. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Recorder receives per-attempt and per-call observations.
type Recorder interface {
	ObserveAttempt(op string, status int, err error, d time.Duration)
	ObserveRetry(op string, attempt int, delay time.Duration)
	ObserveCall(op string, err error, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveAttempt(string, int, error, time.Duration) {}
func (nopRecorder) ObserveRetry(string, int, time.Duration)          {}
func (nopRecorder) ObserveCall(string, error, time.Duration)         {}

type Option func(*Client)

func WithHTTPClient(d Doer) Option {
	return func(c *Client) {
		if d != nil {
			c.http = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(c *Client) {
		if r != nil {
			c.rec = r
		}
	}
}

// WithSleeper replaces the backoff sleep. Tests use it to record delays.
func WithSleeper(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		if fn != nil {
			c.sleep = fn
		}
	}
}
