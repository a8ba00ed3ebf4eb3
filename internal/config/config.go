// Package config provides configuration loading and validation.
package config

// Config holds the server configuration.
type Config struct {
	// Mode is the operating mode: prod or dev.
	Mode string `json:"mode" toml:"mode"`

	// ExternalOrigin is the public origin (scheme + host + port) for this instance.
	// Example: "https://portal.example.com"
	ExternalOrigin string `json:"external_origin" toml:"external_origin"`

	// ListenAddr is the address to listen on.
	// Example: ":9400"
	ListenAddr string `json:"listen_addr" toml:"listen_addr"`

	// Server holds server-specific settings.
	Server ServerConfig `json:"server" toml:"server"`

	// TLS configuration.
	TLS TLSConfig `json:"tls" toml:"tls"`

	// OutboundHTTP configuration for the SMS provider client.
	OutboundHTTP OutboundHTTPConfig `json:"outbound_http" toml:"outbound_http"`

	// Auth holds password and invitation settings.
	Auth AuthConfig `json:"auth" toml:"auth"`

	// OTP holds OTP challenge and SMS provider settings.
	OTP OTPConfig `json:"otp" toml:"otp"`

	// Store holds persistence settings.
	Store StoreConfig `json:"store" toml:"store"`

	// Storage holds document blob storage settings.
	Storage StorageConfig `json:"storage" toml:"storage"`

	// Cache holds cache driver settings.
	Cache CacheConfig `json:"cache" toml:"cache"`

	// RateLimit holds rate limiting settings for auth endpoints.
	RateLimit RateLimitConfig `json:"rate_limit" toml:"rate_limit"`

	// Logging holds log output settings.
	Logging LoggingConfig `json:"logging" toml:"logging"`
}

// ServerConfig holds server-specific settings.
type ServerConfig struct {
	// TrustedProxies are CIDRs whose X-Forwarded-For headers are honored.
	TrustedProxies []string `json:"trusted_proxies" toml:"trusted_proxies"`
}

// TLSConfig holds TLS-related settings.
type TLSConfig struct {
	// Mode is one of: off, static, selfsigned, acme
	Mode string `json:"mode" toml:"mode"`

	// CertFile and KeyFile for static mode
	CertFile string `json:"cert_file" toml:"cert_file"`
	KeyFile  string `json:"key_file" toml:"key_file"`

	// HTTPPort for HTTP listener (used for ACME challenges and redirects)
	HTTPPort int `json:"http_port" toml:"http_port"`

	// HTTPSPort for HTTPS listener
	HTTPSPort int `json:"https_port" toml:"https_port"`

	// SelfSignedDir is where generated self-signed certs are stored
	SelfSignedDir string `json:"self_signed_dir" toml:"self_signed_dir"`

	// ACME settings for acme mode
	ACME ACMEConfig `json:"acme" toml:"acme"`
}

// ACMEConfig holds ACME/Let's Encrypt settings.
type ACMEConfig struct {
	Email      string `json:"email" toml:"email"`
	Domain     string `json:"domain" toml:"domain"`
	Directory  string `json:"directory" toml:"directory"`
	StorageDir string `json:"storage_dir" toml:"storage_dir"`
	UseStaging bool   `json:"use_staging" toml:"use_staging"`
}

// OutboundHTTPConfig holds settings for outbound HTTP requests.
type OutboundHTTPConfig struct {
	// SSRFMode is one of: strict, off
	SSRFMode string `json:"ssrf_mode" toml:"ssrf_mode"`

	// TimeoutMS is the overall request timeout in milliseconds
	TimeoutMS int `json:"timeout_ms" toml:"timeout_ms"`

	// ConnectTimeoutMS is the connection timeout in milliseconds
	ConnectTimeoutMS int `json:"connect_timeout_ms" toml:"connect_timeout_ms"`

	// MaxRedirects is the maximum number of redirects to follow
	MaxRedirects int `json:"max_redirects" toml:"max_redirects"`

	// MaxResponseBytes is the maximum response body size
	MaxResponseBytes int64 `json:"max_response_bytes" toml:"max_response_bytes"`

	// InsecureSkipVerify disables TLS verification (dev-only)
	InsecureSkipVerify bool `json:"insecure_skip_verify" toml:"insecure_skip_verify"`
}

// AuthConfig holds password and invitation settings.
type AuthConfig struct {
	// PasswordMinLength is the minimum accepted password length.
	PasswordMinLength int `json:"password_min_length" toml:"password_min_length"`

	// BcryptCost is the bcrypt cost factor for password hashing.
	BcryptCost int `json:"bcrypt_cost" toml:"bcrypt_cost"`
}

// OTPConfig holds OTP challenge and SMS provider settings.
type OTPConfig struct {
	// Provider is one of: msg91, log
	Provider string `json:"provider" toml:"provider"`

	// AuthKey is the MSG91 API auth key.
	AuthKey string `json:"auth_key" toml:"auth_key"`

	// TemplateID is the MSG91 OTP template id.
	TemplateID string `json:"template_id" toml:"template_id"`

	// ExpirySeconds is the challenge lifetime.
	ExpirySeconds int `json:"expiry_seconds" toml:"expiry_seconds"`

	// MaxAttempts is the number of wrong codes before lockout.
	MaxAttempts int `json:"max_attempts" toml:"max_attempts"`

	// CountryCode is prefixed to 10-digit mobile numbers.
	CountryCode string `json:"country_code" toml:"country_code"`
}

// StoreConfig holds persistence settings.
type StoreConfig struct {
	// Driver is one of: sqlite, memory
	Driver string `json:"driver" toml:"driver"`

	// DataDir is the directory for the sqlite database file.
	DataDir string `json:"data_dir" toml:"data_dir"`
}

// StorageConfig holds document blob storage settings.
type StorageConfig struct {
	// DocumentsDir is where uploaded document blobs are written.
	DocumentsDir string `json:"documents_dir" toml:"documents_dir"`
}

// CacheConfig holds cache driver settings.
type CacheConfig struct {
	// Driver is one of: memory, valkey
	Driver string `json:"driver" toml:"driver"`

	// Drivers holds per-driver config tables, keyed by driver name.
	Drivers map[string]any `json:"drivers" toml:"drivers"`
}

// RateLimitConfig holds rate limiting settings for auth endpoints.
type RateLimitConfig struct {
	Enabled bool `json:"enabled" toml:"enabled"`

	// RequestsPerWindow is the maximum requests allowed per window per client.
	RequestsPerWindow int64 `json:"requests_per_window" toml:"requests_per_window"`

	// WindowSeconds is the rate limit window length.
	WindowSeconds int `json:"window_seconds" toml:"window_seconds"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	// Level is one of: debug, info, warn, error
	Level string `json:"level" toml:"level"`
}

// Redacted returns a copy of the config safe for startup logging.
func (c *Config) Redacted() Config {
	out := *c
	if out.OTP.AuthKey != "" {
		out.OTP.AuthKey = "[redacted]"
	}
	if out.Cache.Drivers != nil {
		drivers := make(map[string]any, len(out.Cache.Drivers))
		for name, dc := range out.Cache.Drivers {
			if m, ok := dc.(map[string]any); ok {
				mc := make(map[string]any, len(m))
				for k, v := range m {
					if k == "password" {
						mc[k] = "[redacted]"
						continue
					}
					mc[k] = v
				}
				drivers[name] = mc
				continue
			}
			drivers[name] = dc
		}
		out.Cache.Drivers = drivers
	}
	return out
}
