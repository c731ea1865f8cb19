package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	PLC     PLCConfig     `mapstructure:"plc"`
	Printer PrinterConfig `mapstructure:"printer"`
	Cloud   CloudConfig   `mapstructure:"cloud"`
	Polling PollingConfig `mapstructure:"polling"`
	Auth    AuthConfig    `mapstructure:"auth"`
}

type ServerConfig struct {
	HTTPPort        int           `mapstructure:"http_port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type PLCConfig struct {
	Host       string        `mapstructure:"host"`
	Port       int           `mapstructure:"port"`
	SlaveID    uint8         `mapstructure:"slave_id"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Attempts   int           `mapstructure:"attempts"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

type PrinterConfig struct {
	Host         string        `mapstructure:"host"`
	PortHead1    int           `mapstructure:"port_head1"`
	PortHead2    int           `mapstructure:"port_head2"`
	Timeout      time.Duration `mapstructure:"timeout"`
	CommandDelay time.Duration `mapstructure:"command_delay"`
	Attempts     int           `mapstructure:"attempts"`
	RetryDelay   time.Duration `mapstructure:"retry_delay"`
	ReadAck      bool          `mapstructure:"read_ack"`
}

type CloudConfig struct {
	URL        string        `mapstructure:"url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Attempts   int           `mapstructure:"attempts"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

type PollingConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// Auth Configuration
type AuthConfig struct {
	JWTSecretEnv string        `mapstructure:"jwt_secret_env"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Defaults setzen
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("plc.host", "10.100.1.20")
	v.SetDefault("plc.port", 502)
	v.SetDefault("plc.slave_id", 1)
	v.SetDefault("plc.timeout", "5s")
	v.SetDefault("plc.attempts", 3)
	v.SetDefault("plc.retry_delay", "1s")

	v.SetDefault("printer.host", "10.100.1.10")
	v.SetDefault("printer.port_head1", 43110)
	v.SetDefault("printer.port_head2", 43111)
	v.SetDefault("printer.timeout", "10s")
	v.SetDefault("printer.command_delay", "100ms")
	v.SetDefault("printer.attempts", 2)
	v.SetDefault("printer.retry_delay", "1s")
	v.SetDefault("printer.read_ack", false)

	v.SetDefault("cloud.url", "")
	v.SetDefault("cloud.timeout", "10s")
	v.SetDefault("cloud.attempts", 3)
	v.SetDefault("cloud.retry_delay", "2s")

	v.SetDefault("polling.interval", "1s")

	// Auth Defaults
	v.SetDefault("auth.jwt_secret_env", "JWT_SECRET")
	v.SetDefault("auth.token_ttl", "60m")

	// Environment Variables automatisch binden (Viper Feature)
	v.AutomaticEnv()
	v.SetEnvPrefix("OBC") // Environment Variables mit Prefix OBC_
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		// Datei ist optional, Defaults + Environment reichen dann
		if !os.IsNotExist(err) {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Server.HTTPPort < 1 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d out of range", c.Server.HTTPPort)
	}
	if c.PLC.Host == "" {
		return fmt.Errorf("plc.host must not be empty")
	}
	if c.PLC.Port < 1 || c.PLC.Port > 65535 {
		return fmt.Errorf("plc.port %d out of range", c.PLC.Port)
	}
	if c.PLC.SlaveID < 1 || c.PLC.SlaveID > 247 {
		return fmt.Errorf("plc.slave_id %d out of range", c.PLC.SlaveID)
	}
	if c.Printer.Host == "" {
		return fmt.Errorf("printer.host must not be empty")
	}
	for _, port := range []int{c.Printer.PortHead1, c.Printer.PortHead2} {
		if port < 1 || port > 65535 {
			return fmt.Errorf("printer port %d out of range", port)
		}
	}
	if c.Printer.PortHead1 == c.Printer.PortHead2 {
		return fmt.Errorf("printer heads must use distinct ports, got %d twice", c.Printer.PortHead1)
	}
	if c.Cloud.URL != "" {
		if _, err := url.ParseRequestURI(c.Cloud.URL); err != nil {
			return fmt.Errorf("cloud.url is not a valid URL: %w", err)
		}
	}
	if c.Polling.Interval < 100*time.Millisecond {
		return fmt.Errorf("polling.interval %s below 100ms floor", c.Polling.Interval)
	}
	return nil
}

// JWT Secret aus Environment Variable laden
func (a *AuthConfig) GetJWTSecret() string {
	envVar := a.JWTSecretEnv
	if envVar == "" {
		envVar = "JWT_SECRET" // Fallback
	}

	secret := os.Getenv(envVar)
	if secret == "" {
		// Development Fallback (MIT WARNING!)
		return "dev-secret-change-in-production-min-32-chars"
	}
	return secret
}

// Helper um zu prüfen ob Production-Ready
func (a *AuthConfig) IsProductionReady() bool {
	secret := a.GetJWTSecret()
	return secret != "dev-secret-change-in-production-min-32-chars" && len(secret) >= 32
}
