package common

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

const (
	// DefaultTimeoutSecond is the per-request timeout used when none is configured.
	DefaultTimeoutSecond = 30
)

// ClientConfig holds the configuration of an OrbitDB gateway client.
// The client copies it on construction, later changes have no effect.
type ClientConfig struct {
	// BaseURL of the gateway, e.g. "http://localhost:3000". Endpoints are
	// appended with a single "/" and no further normalization.
	BaseURL string
	// Headers are sent with every request.
	Headers map[string]string
	// TimeoutSecond bounds every single HTTP call (not the lifetime of event streams).
	TimeoutSecond int
	// UseDBCache makes repeated opens of the same database name return the same handle.
	UseDBCache bool
}

// DefaultClientConfig returns the configuration used by the gateway's own tooling.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL:       baseURL,
		Headers:       map[string]string{},
		TimeoutSecond: DefaultTimeoutSecond,
		UseDBCache:    true,
	}
}

// Validate checks if the configuration is usable
func (c *ClientConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base url is required")
	}
	parsed, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("base url must use http or https scheme, got: %q", parsed.Scheme)
	}
	if c.TimeoutSecond < 0 {
		return fmt.Errorf("timeout must not be negative, got: %d", c.TimeoutSecond)
	}
	return nil
}

// Timeout returns the per-request timeout (DefaultTimeoutSecond if unset).
func (c *ClientConfig) Timeout() time.Duration {
	if c.TimeoutSecond == 0 {
		return DefaultTimeoutSecond * time.Second
	}
	return time.Duration(c.TimeoutSecond) * time.Second
}

// Clone returns a deep copy of the configuration
func (c ClientConfig) Clone() ClientConfig {
	headers := make(map[string]string, len(c.Headers))
	for k, v := range c.Headers {
		headers[k] = v
	}
	c.Headers = headers
	return c
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Base URL", c.BaseURL)
	addField("Timeout", c.Timeout().String())
	addField("DB Cache", fmt.Sprintf("%t", c.UseDBCache))

	// Headers
	if len(c.Headers) > 0 {
		addSection("Headers")
		keys := make([]string, 0, len(c.Headers))
		for k := range c.Headers {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			addField(k, c.Headers[k])
		}
	}

	return sb.String()
}
