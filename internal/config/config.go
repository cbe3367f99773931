package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server" toml:"server"`
	Database DatabaseConfig `yaml:"database" toml:"database"`
	Storage  StorageConfig  `yaml:"storage" toml:"storage"`
	Analysis AnalysisConfig `yaml:"analysis" toml:"analysis"`
	Camera   CameraConfig   `yaml:"camera" toml:"camera"`
	// Auth maps identity -> api key
	Auth map[string]string `yaml:"auth" toml:"auth"`
}

type ServerConfig struct {
	Port        int      `yaml:"port" toml:"port"`
	CORSOrigins []string `yaml:"corsOrigins" toml:"cors_origins"`
	// RateLimit is the bucket size per identity; refilled at RateRefill tokens/s.
	RateLimit  int `yaml:"rateLimit" toml:"rate_limit"`
	RateRefill int `yaml:"rateRefill" toml:"rate_refill"`
}

// DatabaseConfig uses a tagged union: Driver decides which fields are read.
type DatabaseConfig struct {
	Driver   string `yaml:"driver" toml:"driver"` // mysql | postgres | sqlite
	Host     string `yaml:"host" toml:"host"`
	Port     int    `yaml:"port" toml:"port"`
	User     string `yaml:"user" toml:"user"`
	Password string `yaml:"password" toml:"password"`
	Name     string `yaml:"name" toml:"name"`
	SSLMode  string `yaml:"sslMode" toml:"ssl_mode"`
	Path     string `yaml:"path" toml:"path"` // sqlite only
	Migrate  bool   `yaml:"migrate" toml:"migrate"`
}

// StorageConfig uses a tagged union: Type decides which fields are read.
type StorageConfig struct {
	Type       string `yaml:"type" toml:"type"` // minio | s3 | azure | memory
	Endpoint   string `yaml:"endpoint" toml:"endpoint"`
	AccessKey  string `yaml:"accessKey" toml:"access_key"`
	SecretKey  string `yaml:"secretKey" toml:"secret_key"`
	BucketName string `yaml:"bucketName" toml:"bucket_name"`
	Region     string `yaml:"region" toml:"region"`
	UseSSL     bool   `yaml:"useSSL" toml:"use_ssl"`
	// PublicBaseURL overrides the URL prefix handed to the analysis function.
	PublicBaseURL string `yaml:"publicBaseURL" toml:"public_base_url"`
}

type AnalysisConfig struct {
	Provider    string        `yaml:"provider" toml:"provider"` // openai | function
	APIKey      string        `yaml:"apiKey" toml:"api_key"`
	Model       string        `yaml:"model" toml:"model"`
	BaseURL     string        `yaml:"baseURL" toml:"base_url"`
	FunctionURL string        `yaml:"functionURL" toml:"function_url"`
	Timeout     time.Duration `yaml:"timeout" toml:"timeout"`
}

type CameraConfig struct {
	// Snapshots maps a facing ("environment", "user") to a JPEG snapshot URL.
	Snapshots map[string]string `yaml:"snapshots" toml:"snapshots"`
	Timeout   time.Duration     `yaml:"timeout" toml:"timeout"`
}

// Load baca file config (.yaml/.yml atau .toml)
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data by extension, applies env overrides and defaults, and validates.
func Parse(data []byte, ext string) (*Config, error) {
	var cfg Config
	switch strings.ToLower(ext) {
	case ".toml":
		if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("decoding toml: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("decoding yaml: %w", err)
		}
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && c.Analysis.APIKey == "" {
		c.Analysis.APIKey = v
	}
	if v := os.Getenv("DATABASE_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("STORAGE_SECRET_KEY"); v != "" {
		c.Storage.SecretKey = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.RateLimit == 0 {
		c.Server.RateLimit = 30
	}
	if c.Server.RateRefill == 0 {
		c.Server.RateRefill = 1
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "plantscan.db"
	}
	if c.Storage.Type == "" {
		c.Storage.Type = "minio"
	}
	if c.Analysis.Provider == "" {
		c.Analysis.Provider = "openai"
	}
	if c.Analysis.Timeout == 0 {
		c.Analysis.Timeout = 60 * time.Second
	}
	if c.Camera.Timeout == 0 {
		c.Camera.Timeout = 5 * time.Second
	}
}

// Validate checks the tagged unions carry what their type needs.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "postgres":
		if c.Database.Host == "" || c.Database.Name == "" {
			return fmt.Errorf("database.host and database.name are required for %s", c.Database.Driver)
		}
	case "sqlite":
	default:
		return fmt.Errorf("unknown database driver: %s", c.Database.Driver)
	}

	switch c.Storage.Type {
	case "minio", "s3", "azure":
		if c.Storage.BucketName == "" {
			return fmt.Errorf("storage.bucketName is required for %s", c.Storage.Type)
		}
	case "memory":
	default:
		return fmt.Errorf("unknown storage type: %s", c.Storage.Type)
	}
	if c.Storage.PublicBaseURL != "" {
		if _, err := url.ParseRequestURI(c.Storage.PublicBaseURL); err != nil {
			return fmt.Errorf("storage.publicBaseURL: %w", err)
		}
	}

	switch c.Analysis.Provider {
	case "openai":
		if c.Analysis.APIKey == "" {
			return fmt.Errorf("analysis.apiKey (or OPENAI_API_KEY) is required for openai")
		}
	case "function":
		if c.Analysis.FunctionURL == "" {
			return fmt.Errorf("analysis.functionURL is required for function provider")
		}
	default:
		return fmt.Errorf("unknown analysis provider: %s", c.Analysis.Provider)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", c.Server.Port)
	}
	return nil
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC&multiStatements=true",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// Helper untuk build DSN Postgres
func (c *Config) PostgresDSN() string {
	ssl := c.Database.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Database.User, c.Database.Password),
		Host:     fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
		Path:     "/" + c.Database.Name,
		RawQuery: "sslmode=" + ssl,
	}
	return u.String()
}
