package ratelimit

import (
	"strings"
	"time"
)

// EndpointConfig represents rate limiting configuration for a specific endpoint.
type EndpointConfig struct {
	Path   string  // Endpoint path pattern (supports prefix matching)
	Method string  // HTTP method (GET, POST, etc.)
	RPS    float64 // Sustained requests per second, 0 means unlimited
	Burst  int     // Bucket size (defaults to 1 if 0)
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultRPS      float64
	DefaultBurst    int
	CleanupInterval time.Duration
	IdleTTL         time.Duration
	Whitelist       map[string]bool
	Blacklist       map[string]bool
	EndpointConfigs []EndpointConfig
}

// NewConfig builds a configuration with the given per-client default rate.
// A non-positive rps disables limiting.
func NewConfig(rps float64, burst int) *Config {
	if burst <= 0 {
		burst = 1
	}
	return &Config{
		Enabled:         rps > 0,
		DefaultRPS:      rps,
		DefaultBurst:    burst,
		CleanupInterval: 5 * time.Minute,
		IdleTTL:         time.Hour,
		Whitelist:       make(map[string]bool),
		Blacklist:       make(map[string]bool),
		EndpointConfigs: DefaultEndpointConfigs(),
	}
}

// DefaultEndpointConfigs returns the default endpoint-specific configurations.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		// Cascading deletes touch every row under the root
		{Path: "/pipelines/", Method: "DELETE", RPS: 0.5, Burst: 5},
		{Path: "/jobs/", Method: "DELETE", RPS: 0.5, Burst: 5},
		{Path: "/candidates/", Method: "DELETE", RPS: 1, Burst: 10},

		// Definition writes
		{Path: "/pipelines", Method: "POST", RPS: 1, Burst: 10},
		{Path: "/pipelines/", Method: "PUT", RPS: 1, Burst: 10},
		{Path: "/jobs", Method: "POST", RPS: 2, Burst: 10},
	}
}

// ParseIPList parses a comma-separated list of IP addresses into a map.
func ParseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	if list == "" {
		return result
	}

	for _, ip := range strings.Split(list, ",") {
		ip = strings.TrimSpace(ip)
		if ip != "" {
			result[ip] = true
		}
	}

	return result
}
