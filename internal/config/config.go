package config

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
)

// LocalContentConfig configures the default filesystem-backed content
// store.
type LocalContentConfig struct {
	BasePath string `mapstructure:"base_path"`
}

// S3ContentConfig configures the S3-backed content store.
type S3ContentConfig struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	Prefix          string `mapstructure:"prefix"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	SessionToken    string `mapstructure:"session_token"`
	CacheDir        string `mapstructure:"cache_dir"`
}

// AzureContentConfig configures the Azure Blob-backed content store.
type AzureContentConfig struct {
	AccountURL    string `mapstructure:"account_url"`
	Container     string `mapstructure:"container"`
	Prefix        string `mapstructure:"prefix"`
	SharedKeyName string `mapstructure:"shared_key_name"`
	SharedKey     string `mapstructure:"shared_key"`
	CacheDir      string `mapstructure:"cache_dir"`
}

// GCSContentConfig configures the Google Cloud Storage-backed content
// store.
type GCSContentConfig struct {
	Bucket   string `mapstructure:"bucket"`
	Prefix   string `mapstructure:"prefix"`
	CacheDir string `mapstructure:"cache_dir"`
}

// B2ContentConfig configures the Backblaze B2-backed content store.
type B2ContentConfig struct {
	AccountID string `mapstructure:"account_id"`
	AppKey    string `mapstructure:"app_key"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	CacheDir  string `mapstructure:"cache_dir"`
}

// ContentStoreConfig selects and configures one content-addressed backend
// (spec.md §6, SPEC_FULL.md §4.15).
type ContentStoreConfig struct {
	Kind  string              `mapstructure:"kind"` // "local", "s3", "azure", "gcs", "b2"
	Local LocalContentConfig  `mapstructure:"local"`
	S3    S3ContentConfig     `mapstructure:"s3"`
	Azure AzureContentConfig  `mapstructure:"azure"`
	GCS   GCSContentConfig    `mapstructure:"gcs"`
	B2    B2ContentConfig     `mapstructure:"b2"`
}

// AdminConfig gates the admin/event-stream API (spec.md §6, §4.9).
type AdminConfig struct {
	EnabledAuthToken string `mapstructure:"enabled_auth_token"`
}

// Config is wsusd's process configuration (SPEC_FULL.md §4.9).
type Config struct {
	ListenAddr  string `mapstructure:"listen_addr"`
	TLSCertFile string `mapstructure:"tls_cert_file"`
	TLSKeyFile  string `mapstructure:"tls_key_file"`

	MetadataSourcePath string `mapstructure:"metadata_source_path"`

	ContentStore     ContentStoreConfig `mapstructure:"content_store"`
	ContentHTTPRoot  string             `mapstructure:"content_http_root"`

	ServerPropertiesPath string `mapstructure:"server_properties_path"`

	DataDir         string `mapstructure:"data_dir"`
	AuditLogPath    string `mapstructure:"audit_log_path"`
	AuditMaxSizeMB  int    `mapstructure:"audit_max_size_mb"`
	AuditMaxBackups int    `mapstructure:"audit_max_backups"`

	LogFormat string `mapstructure:"log_format"`
	LogLevel  string `mapstructure:"log_level"`

	Admin AdminConfig `mapstructure:"admin"`
}

func Default() *Config {
	return &Config{
		ListenAddr:      ":8530",
		ContentStore:    ContentStoreConfig{Kind: "local", Local: LocalContentConfig{BasePath: "/var/lib/wsusd/content"}},
		ContentHTTPRoot: "http://localhost:8530",
		AuditMaxSizeMB:  50,
		AuditMaxBackups: 3,
		LogFormat:       "text",
		LogLevel:        "info",
	}
}

func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("wsusd")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(configDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("WSUSD")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func Save(cfg *Config) error {
	return SaveTo(cfg, "")
}

func SaveTo(cfg *Config, cfgFile string) error {
	viper.Set("listen_addr", cfg.ListenAddr)
	viper.Set("tls_cert_file", cfg.TLSCertFile)
	viper.Set("tls_key_file", cfg.TLSKeyFile)
	viper.Set("metadata_source_path", cfg.MetadataSourcePath)
	viper.Set("content_store", cfg.ContentStore)
	viper.Set("content_http_root", cfg.ContentHTTPRoot)
	viper.Set("server_properties_path", cfg.ServerPropertiesPath)
	viper.Set("data_dir", cfg.DataDir)
	viper.Set("audit_log_path", cfg.AuditLogPath)
	viper.Set("audit_max_size_mb", cfg.AuditMaxSizeMB)
	viper.Set("audit_max_backups", cfg.AuditMaxBackups)
	viper.Set("log_format", cfg.LogFormat)
	viper.Set("log_level", cfg.LogLevel)
	viper.Set("admin", cfg.Admin)

	var cfgPath string
	if cfgFile != "" {
		cfgPath = cfgFile
		dir := filepath.Dir(cfgPath)
		if dir != "." {
			if err := os.MkdirAll(dir, 0700); err != nil {
				return err
			}
		}
	} else {
		cfgPath = filepath.Join(configDir(), "wsusd.yaml")
		if err := os.MkdirAll(configDir(), 0700); err != nil {
			return err
		}
	}

	if err := viper.WriteConfigAs(cfgPath); err != nil {
		return err
	}

	// Restrict config file to owner-only access (may contain content
	// backend credentials and the admin bearer token).
	return os.Chmod(cfgPath, 0600)
}

// GetDataDir returns the directory wsusd writes its audit log and any
// local caches under, falling back to an OS-appropriate default when
// DataDir is unset.
func (c *Config) GetDataDir() string {
	if c != nil && c.DataDir != "" {
		return c.DataDir
	}
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "wsusd")
	case "darwin":
		return "/Library/Application Support/wsusd"
	default:
		return "/var/lib/wsusd"
	}
}

func configDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "wsusd")
	case "darwin":
		return "/Library/Application Support/wsusd"
	default:
		return "/etc/wsusd"
	}
}
