package config

import (
	"bytes"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Security SecurityConfig `mapstructure:"security"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Email    EmailConfig    `mapstructure:"email"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig HTTP server settings
type ServerConfig struct {
	Port        string `mapstructure:"port"`
	Mode        string `mapstructure:"mode"` // debug | release | test
	FrontendURL string `mapstructure:"frontend_url"`
}

// DatabaseConfig store settings. Driver is "mysql" or "sqlite".
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	Charset  string `mapstructure:"charset"`
	Path     string `mapstructure:"path"` // sqlite file
}

// JWTConfig token settings
type JWTConfig struct {
	Secret      string        `mapstructure:"secret"`
	ExpireHours int           `mapstructure:"expire_hours"`
	ExpireTime  time.Duration `mapstructure:"-"`
}

// SecurityConfig password hashing and login throttling
type SecurityConfig struct {
	BcryptCost     int `mapstructure:"bcrypt_cost"`
	LoginPerMinute int `mapstructure:"login_per_minute"`
	LoginBurst     int `mapstructure:"login_burst"`
}

// UploadConfig signature image ingestion
type UploadConfig struct {
	Mode           string `mapstructure:"mode"` // disk | inline
	Dir            string `mapstructure:"dir"`
	MaxFileBytes   int64  `mapstructure:"max_file_bytes"`
	MaxBase64Bytes int    `mapstructure:"max_base64_bytes"`
}

// EmailConfig SMTP settings used for password reset mails
type EmailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	ResetURL string `mapstructure:"reset_url"`
}

// LogConfig logger settings
type LogConfig struct {
	Mode string `mapstructure:"mode"` // development | production
}

var (
	// GlobalConfig loaded configuration
	GlobalConfig *Config
)

// LoadConfig loads configuration.
// Precedence: environment > external file > embedded defaults.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if err := v.ReadConfig(bytes.NewReader(DefaultConfigYAML)); err != nil {
		return nil, fmt.Errorf("lettura configurazione interna fallita: %w", err)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.MergeInConfig(); err != nil {
			log.Printf("attenzione: impossibile leggere %s: %v", configPath, err)
		} else {
			log.Printf("configurazione esterna caricata: %s", configPath)
		}
	} else {
		externalViper := viper.New()
		externalViper.SetConfigName("config")
		externalViper.SetConfigType("yaml")
		externalViper.AddConfigPath(".")
		externalViper.AddConfigPath("./config")
		externalViper.AddConfigPath("/etc/rendiconto")
		externalViper.AddConfigPath("$HOME/.rendiconto")

		if err := externalViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(externalViper.AllSettings()); err != nil {
				log.Printf("attenzione: merge configurazione esterna fallito: %v", err)
			} else {
				log.Printf("configurazione esterna caricata: %s", externalViper.ConfigFileUsed())
			}
		}
	}

	v.SetEnvPrefix("RENDICONTO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configurazione fallito: %w", err)
	}
	cfg.applyDefaults()

	GlobalConfig = &cfg
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	// 7 days
	if c.JWT.ExpireHours <= 0 {
		c.JWT.ExpireHours = 168
	}
	c.JWT.ExpireTime = time.Duration(c.JWT.ExpireHours) * time.Hour

	if c.Security.BcryptCost <= 0 {
		c.Security.BcryptCost = 12
	}
	if c.Security.LoginPerMinute <= 0 {
		c.Security.LoginPerMinute = 10
	}
	if c.Security.LoginBurst <= 0 {
		c.Security.LoginBurst = 5
	}
	if c.Upload.MaxFileBytes <= 0 {
		c.Upload.MaxFileBytes = 2 << 20
	}
	if c.Upload.MaxBase64Bytes <= 0 {
		c.Upload.MaxBase64Bytes = 5 << 20
	}
	if c.Upload.Mode == "" {
		c.Upload.Mode = "disk"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
}

// MustLoadConfig loads configuration or panics
func MustLoadConfig(configPath string) *Config {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		panic(fmt.Sprintf("caricamento configurazione fallito: %v", err))
	}
	return cfg
}

// GetConfig returns the loaded configuration
func GetConfig() *Config {
	if GlobalConfig == nil {
		panic("configurazione non inizializzata, chiamare LoadConfig")
	}
	return GlobalConfig
}

// IsRelease reports whether the server runs in release mode
func IsRelease() bool {
	return GlobalConfig != nil && GlobalConfig.Server.Mode == "release"
}

// PrintConfig logs the active configuration without secrets
func PrintConfig() {
	if GlobalConfig == nil {
		return
	}
	log.Printf("configurazione attiva:")
	log.Printf("  server: %s (mode: %s)", GlobalConfig.Server.Port, GlobalConfig.Server.Mode)
	if GlobalConfig.Database.Driver == "sqlite" {
		log.Printf("  database: sqlite %s", GlobalConfig.Database.Path)
	} else {
		log.Printf("  database: %s@%s:%s/%s",
			GlobalConfig.Database.Username,
			GlobalConfig.Database.Host,
			GlobalConfig.Database.Port,
			GlobalConfig.Database.DBName)
	}
	log.Printf("  upload firme: %s (%s)", GlobalConfig.Upload.Mode, GlobalConfig.Upload.Dir)
	log.Printf("  email: %v", GlobalConfig.Email.Enabled)
}
