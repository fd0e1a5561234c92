package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"
)

// Provider is the static configuration for one debrid service.
type Provider struct {
	Name      string `json:"name"`
	Host      string `json:"host,omitempty"`
	AuthHost  string `json:"auth_host,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	RateLimit string `json:"rate_limit,omitempty"` // 250/minute or 10/second
	Proxy     string `json:"proxy,omitempty"`
	Enabled   bool   `json:"enabled"`
}

type Server struct {
	Bind string `json:"bind,omitempty"`
}

type Config struct {
	LogLevel          string     `json:"log_level,omitempty"`
	LogDir            string     `json:"log_dir,omitempty"`
	CacheTTL          string     `json:"cache_ttl,omitempty"` // availability record lifetime
	PreferredProvider string     `json:"preferred_provider,omitempty"`
	Providers         []Provider `json:"providers,omitempty"`
	Server            Server     `json:"server,omitempty"`

	path string
}

const defaultCacheTTL = 5 * time.Minute

var defaultHosts = map[string]struct{ host, authHost, clientID string }{
	"realdebrid": {
		host:     "https://api.real-debrid.com/rest/1.0",
		authHost: "https://api.real-debrid.com/oauth/v2",
		clientID: "X245A4XAIBGVM",
	},
	"alldebrid": {
		host: "https://api.alldebrid.com/v4",
	},
	"premiumize": {
		host:     "https://www.premiumize.me/api",
		authHost: "https://www.premiumize.me/authorize",
		clientID: "ferrite",
	},
}

// Load reads the config file at path and fills in provider defaults.
// A missing file yields a default config bound to that path.
func Load(path string) (*Config, error) {
	c := &Config{
		LogLevel: "info",
		Server:   Server{Bind: ":8282"},
		path:     path,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			c.applyDefaults()
			return c, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	c.path = path
	c.applyDefaults()

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if len(c.Providers) == 0 {
		for _, name := range []string{"realdebrid", "alldebrid", "premiumize"} {
			c.Providers = append(c.Providers, Provider{Name: name})
		}
	}
	for i, p := range c.Providers {
		d, ok := defaultHosts[p.Name]
		if !ok {
			continue
		}
		if p.Host == "" {
			c.Providers[i].Host = d.host
		}
		if p.AuthHost == "" {
			c.Providers[i].AuthHost = d.authHost
		}
		if p.ClientID == "" {
			c.Providers[i].ClientID = d.clientID
		}
	}
}

func (c *Config) validate() error {
	seen := make(map[string]struct{}, len(c.Providers))
	for _, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("provider name is required")
		}
		if _, ok := seen[p.Name]; ok {
			return fmt.Errorf("duplicate provider: %s", p.Name)
		}
		seen[p.Name] = struct{}{}
	}
	return nil
}

// GetProvider returns the configuration for a named provider, if present.
func (c *Config) GetProvider(name string) (Provider, bool) {
	for _, p := range c.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return Provider{}, false
}

func (c *Config) GetCacheTTL() time.Duration {
	if c.CacheTTL == "" {
		return defaultCacheTTL
	}
	d, err := time.ParseDuration(c.CacheTTL)
	if err != nil || d <= 0 {
		return defaultCacheTTL
	}
	return d
}

// Save writes the config back to the path it was loaded from.
func (c *Config) Save() error {
	if c.path == "" {
		return fmt.Errorf("config path not set")
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0644)
}
