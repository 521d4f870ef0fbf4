package lrclib

import (
	"net/http"
	"strings"
	"time"
)

// Config holds client configuration.
type Config struct {
	HTTPClient *http.Client // Optional: HTTP client (defaults to a client with a 10s timeout)
	BaseURL    string       // Optional: API base URL (defaults to DefaultBaseURL, used for testing)
	UserAgent  string       // Optional: User-Agent header (defaults to DefaultUserAgent)
	MaxRetries int          // Optional: attempts per request (defaults to 3)
	Logger     Logger       // Optional: Logger interface for debug logging
}

// Logger is an optional interface for logging.
type Logger interface {
	// Debugf logs a debug message with format and arguments.
	Debugf(format string, args ...interface{})
}

// Client is the entry point for LRCLIB API operations.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	maxRetries int
	backoff    time.Duration
	logger     Logger
}

const (
	// DefaultBaseURL is the public LRCLIB endpoint.
	DefaultBaseURL = "https://lrclib.net"

	// DefaultUserAgent identifies the client as LRCLIB asks of API users.
	DefaultUserAgent = "lyricsync/1.0 (+https://github.com/jfmyers9/lyricsync)"

	defaultTimeout = 10 * time.Second
)

// NewClient creates a new LRCLIB API client.
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		userAgent:  userAgent,
		maxRetries: maxRetries,
		backoff:    500 * time.Millisecond,
		logger:     cfg.Logger,
	}
}

// logDebugf logs a debug message if a logger is configured.
func (c *Client) logDebugf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Debugf(format, args...)
	}
}
