// config loads the application's settings from a yaml file with an env
// overlay. Value sources, highest priority first: explicit path (the
// -config flag), the CONFIG_PATH env var, ./local.yaml, then env vars
// alone.
package config

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the application's root configuration.
type Config struct {
	Env      string        `yaml:"env" env:"ENV" env-default:"local"`
	LogLevel string        `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	Server   ServerConfig  `yaml:"server"`
	Auth     AuthConfig    `yaml:"auth"`
	Session  SessionConfig `yaml:"session"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `yaml:"host" env:"SERVER_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"SERVER_PORT" env-default:"3000"`

	// PublicURL is the externally reachable base URL of the app, used to
	// build the provider redirect URLs. No trailing slash.
	PublicURL string `yaml:"public_url" env:"PUBLIC_URL" env-default:"http://localhost:3000"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, s.Port)
}

// AuthConfig holds the OIDC provider registration.
type AuthConfig struct {
	// Issuer is the provider's issuer URL, e.g. the Auth0 tenant domain
	// with an https scheme.
	Issuer       string        `yaml:"issuer" env:"AUTH_ISSUER" env-required:"true"`
	ClientID     string        `yaml:"client_id" env:"AUTH_CLIENT_ID" env-required:"true"`
	ClientSecret string        `yaml:"client_secret" env:"AUTH_CLIENT_SECRET" env-required:"true"`
	Scopes       []string      `yaml:"scopes" env:"AUTH_SCOPES" env-default:"profile,email"`
	CallbackPath string        `yaml:"callback_path" env:"AUTH_CALLBACK_PATH" env-default:"/auth/callback"`
	LoginTTL     time.Duration `yaml:"login_ttl" env:"AUTH_LOGIN_TTL" env-default:"3m"`
	ProviderCA   string        `yaml:"provider_ca" env:"AUTH_PROVIDER_CA"`
}

// SessionConfig holds the browser session settings.
type SessionConfig struct {
	CookieName string        `yaml:"cookie_name" env:"SESSION_COOKIE_NAME" env-default:"oidcweb_session"`
	Secret     string        `yaml:"secret" env:"SESSION_SECRET" env-required:"true"`
	TTL        time.Duration `yaml:"ttl" env:"SESSION_TTL" env-default:"8h"`
	Secure     bool          `yaml:"secure" env:"SESSION_SECURE" env-default:"false"`
}

// RedirectURL returns the callback URL registered with the provider.
func (c *Config) RedirectURL() string {
	return strings.TrimSuffix(c.Server.PublicURL, "/") + c.Auth.CallbackPath
}

// PostLogoutURL returns the fixed URL the provider sends the user to after
// a logout, which is always the application's home page.
func (c *Config) PostLogoutURL() string {
	return strings.TrimSuffix(c.Server.PublicURL, "/") + "/"
}

// MustLoad wraps Load and panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load loads configuration in priority order: explicit path, CONFIG_PATH,
// ./local.yaml, env vars only. When a file is read, env vars are overlaid
// on top of it.
func Load(path string) (*Config, error) {
	var cfg Config

	tryRead := func(p string) (*Config, error) {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", p, err)
		}
		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to overlay env: %w", err)
		}
		return &cfg, nil
	}

	if path != "" {
		return tryRead(path)
	}

	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return tryRead(envPath)
	}

	if _, err := os.Stat("local.yaml"); err == nil {
		return tryRead("local.yaml")
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide -config, CONFIG_PATH, local.yaml or env vars: %w", err)
	}
	return &cfg, nil
}
