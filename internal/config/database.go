package config

import (
	"fmt"
	"time"
)

// DatabaseConfig names the source MySQL instance a backup/restore runs
// against, grounded on the teacher's internal/database/config.go.
type DatabaseConfig struct {
	Host     string        `yaml:"host" mapstructure:"host"`
	Port     int           `yaml:"port" mapstructure:"port"`
	User     string        `yaml:"user" mapstructure:"user"`
	Password string        `yaml:"password" mapstructure:"password"`
	Database string        `yaml:"database" mapstructure:"database"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

func (c *DatabaseConfig) SetDefaults() {
	if c.Port == 0 {
		c.Port = 3306
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
}

func (c *DatabaseConfig) Validate() error {
	var errs ValidationErrors
	if c.Host == "" {
		errs.Add("host", "database host is required", c.Host)
	}
	if c.User == "" {
		errs.Add("user", "database user is required", c.User)
	}
	if c.Database == "" {
		errs.Add("database", "database name is required", c.Database)
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs.Add("port", "port must be between 1 and 65535", c.Port)
	}
	if c.Timeout < 0 {
		errs.Add("timeout", "timeout cannot be negative", c.Timeout)
	}
	if errs.HasErrors() {
		return errs
	}
	return nil
}

// DSN builds a go-sql-driver/mysql data source name with parseTime enabled,
// required for the extractor's time.Time scanning.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&timeout=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.Timeout)
}
