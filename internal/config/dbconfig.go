package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// DBConfig is the store credentials file. YAML parses the JSON form as well.
type DBConfig struct {
	Type     string `yaml:"db_type"` // postgresql, postgres or sqlite
	User     string `yaml:"db_user"`
	Password string `yaml:"db_pass"`
	Name     string `yaml:"db_name"` // database name, or file path for sqlite
	Host     string `yaml:"db_host"`
	Port     int    `yaml:"db_port"`
	SSL      string `yaml:"db_ssl"` // true/false or a libpq sslmode
}

func LoadDBConfig(path string) (DBConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return DBConfig{}, fmt.Errorf("read db config: %w", err)
	}
	var c DBConfig
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return DBConfig{}, fmt.Errorf("parse db config %s: %w", path, err)
	}
	if _, err := c.Driver(); err != nil {
		return DBConfig{}, err
	}
	if c.Name == "" {
		return DBConfig{}, fmt.Errorf("db config %s: db_name is required", path)
	}
	return c, nil
}

func (c DBConfig) Driver() (string, error) {
	switch c.Type {
	case "", "postgres", "postgresql":
		return DriverPostgres, nil
	case "sqlite", "sqlite3":
		return DriverSQLite, nil
	}
	return "", fmt.Errorf("unsupported db_type %q", c.Type)
}

// DSN builds the connection string for the configured driver.
func (c DBConfig) DSN() string {
	if d, _ := c.Driver(); d == DriverSQLite {
		return c.Name
	}
	host := c.Host
	if host == "" {
		host = "localhost"
	}
	port := c.Port
	if port == 0 {
		port = 5432
	}
	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(host, strconv.Itoa(port)),
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": {c.sslMode()}}.Encode(),
	}
	if c.User != "" {
		u.User = url.UserPassword(c.User, c.Password)
	}
	return u.String()
}

func (c DBConfig) sslMode() string {
	switch c.SSL {
	case "", "false", "False", "disable":
		return "disable"
	case "true", "True":
		return "require"
	}
	return c.SSL
}

// Apply points cfg at the store described by c.
func (c DBConfig) Apply(cfg *Config) {
	cfg.DatabaseDriver, _ = c.Driver()
	cfg.DatabaseURL = c.DSN()
}
