package cli

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	maxWalkDepth = 25
)

// Config represents the quorm configuration from quorm.yaml.
type Config struct {
	// MetadataDir holds the entity definition files.
	MetadataDir string `mapstructure:"metadata_dir"`

	// FiscalYearShift is the fiscal year start offset in months from
	// January (3 means the fiscal year starts in April).
	FiscalYearShift int `mapstructure:"fiscal_year_shift"`

	Database DatabaseConfig `mapstructure:"database"`
	Compose  ComposeConfig  `mapstructure:"compose"`
	ACL      ACLConfig      `mapstructure:"acl"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Driver selects the backend: "mysql" or "postgres".
	Driver   string `mapstructure:"driver"`
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

// ComposeConfig holds query composition settings.
type ComposeConfig struct {
	// MaxTextColumnLength truncates text columns in wildcard selects.
	// Zero disables truncation.
	MaxTextColumnLength int `mapstructure:"max_text_column_length"`

	// TimeZone is the default IANA zone for date-relative filters.
	TimeZone string `mapstructure:"timezone"`
}

// ACLConfig holds permission cache settings.
type ACLConfig struct {
	// CacheDir persists per-user permission tables. Empty keeps the
	// cache in memory only.
	CacheDir string `mapstructure:"cache_dir"`
}

// LoadConfig discovers and loads configuration with proper precedence:
// flags > env > config file > defaults.
//
// Returns the loaded config, the path to the config file (empty if none
// found), and any error encountered.
func LoadConfig(explicitConfigPath string) (*Config, string, error) {
	v := viper.New()

	// 1. Set defaults first (lowest precedence)
	setDefaults(v)

	// 2. Set up environment variable binding
	v.SetEnvPrefix("QUORM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 3. Find and load config file
	configPath, err := findConfigFile(explicitConfigPath)
	if err != nil {
		return nil, "", err
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, configPath, fmt.Errorf("reading config file: %w", err)
		}
	}

	// 4. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, configPath, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, configPath, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("metadata_dir", "metadata")
	v.SetDefault("fiscal_year_shift", 0)

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 0)
	v.SetDefault("database.name", "")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.sslmode", "prefer")

	v.SetDefault("compose.max_text_column_length", 0)
	v.SetDefault("compose.timezone", "UTC")

	v.SetDefault("acl.cache_dir", "")
}

// findConfigFile finds the config file to use.
// If explicitPath is provided, it validates the file exists.
// Otherwise, it walks up from cwd looking for quorm.yaml or quorm.yml,
// stopping at a .git directory or after maxWalkDepth levels.
func findConfigFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	// Auto-discovery: walk up to .git or maxWalkDepth
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w", err)
	}

	dir := cwd
	for i := 0; i < maxWalkDepth; i++ {
		// Try quorm.yaml then quorm.yml
		for _, name := range []string{"quorm.yaml", "quorm.yml"} {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}

		// Check for repo boundary (.git file or directory)
		gitPath := filepath.Join(dir, ".git")
		if _, err := os.Stat(gitPath); err == nil {
			break // Stop at repo root
		}

		// Move up
		parent := filepath.Dir(dir)
		if parent == dir {
			break // Reached filesystem root
		}
		dir = parent
	}

	return "", nil // No config found, use defaults
}

// DSN returns the driver name and connection string.
// If database.url is set, it's returned directly.
// Otherwise, builds a DSN from discrete fields in the driver's format.
func (c *Config) DSN() (driver, dsn string, err error) {
	db := c.Database

	driver = db.Driver
	if driver == "" {
		driver = "mysql"
	}
	if driver != "mysql" && driver != "postgres" {
		return "", "", fmt.Errorf("unsupported database.driver %q", driver)
	}

	if db.URL != "" {
		return driver, db.URL, nil
	}

	// Build DSN from discrete fields
	if db.Host == "" {
		return "", "", fmt.Errorf("database.host is required when database.url is not set")
	}
	if db.Name == "" {
		return "", "", fmt.Errorf("database.name is required when database.url is not set")
	}
	if db.User == "" {
		return "", "", fmt.Errorf("database.user is required when database.url is not set")
	}

	if driver == "mysql" {
		port := db.Port
		if port == 0 {
			port = 3306
		}
		auth := db.User
		if db.Password != "" {
			auth += ":" + db.Password
		}
		return driver, fmt.Sprintf("%s@tcp(%s:%d)/%s?parseTime=true", auth, db.Host, port, db.Name), nil
	}

	// Build postgres:// URL
	port := db.Port
	if port == 0 {
		port = 5432
	}
	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", db.Host, port),
		Path:   "/" + db.Name,
	}

	if db.Password != "" {
		u.User = url.UserPassword(db.User, db.Password)
	} else {
		u.User = url.User(db.User)
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	return driver, u.String(), nil
}
