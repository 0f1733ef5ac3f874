package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

// Config represents the main configuration for ssd.
type Config struct {
	LogDir     string           `toml:"log_dir" validate:"required"`
	Catalog    CatalogConfig    `toml:"catalog"`
	Ledger     LedgerConfig     `toml:"ledger"`
	Archives   ArchivesConfig   `toml:"archives_app"`
	FileServer FileServerConfig `toml:"file_server"`
	Filters    FiltersConfig    `toml:"filters"`
	Scratch    ScratchConfig    `toml:"scratch"`
}

// CatalogConfig describes the file catalog queried for duplicates.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type CatalogConfig struct {
	Type     string   `toml:"type" validate:"oneof=postgres sqlite"`
	Host     string   `toml:"host,omitempty" validate:"required_if=Type postgres"`
	Port     int      `toml:"port,omitempty"`
	Name     string   `toml:"name,omitempty" validate:"required_if=Type postgres"`
	User     string   `toml:"user,omitempty" validate:"required_if=Type postgres"`
	Password string   `toml:"password,omitempty" validate:"required_if=Type postgres"`
	SSLMode  string   `toml:"sslmode,omitempty"`
	Path     string   `toml:"path,omitempty" validate:"required_if=Type sqlite"` // only used for type=sqlite
	Timeout  Duration `toml:"timeout,omitempty"`
}

// LedgerConfig describes where the ledger lives remotely and where its
// staging copy is kept.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type LedgerConfig struct {
	Type string `toml:"type" validate:"oneof=filesystem s3 memory"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	Dir string `toml:"dir,omitempty" validate:"required_if=Type filesystem"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty" validate:"required_if=Type s3"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"`
	S3KeyID    string `toml:"s3_access_key_id,omitempty"`
	S3Secret   string `toml:"s3_secret_access_key,omitempty"`

	StagingDir         string           `toml:"staging_dir" validate:"required"`
	Filename           string           `toml:"filename,omitempty"`
	CheckpointInterval Duration         `toml:"checkpoint_interval,omitempty"`
	Encryption         EncryptionConfig `toml:"encryption"`
}

// EncryptionConfig holds paths to the age key pair used to encrypt the
// remote ledger copy.
type EncryptionConfig struct {
	Type           string `toml:"type" validate:"omitempty,oneof=none age test"` // "none" (default), "age" or "test"
	PublicKeyPath  string `toml:"public_key_path,omitempty" validate:"required_if=Type age"`
	PrivateKeyPath string `toml:"private_key_path,omitempty" validate:"required_if=Type age"`
}

// ArchivesConfig holds the records application that accepts deletion edits.
type ArchivesConfig struct {
	URL                string   `toml:"url" validate:"required"`
	User               string   `toml:"user" validate:"required"`
	Password           string   `toml:"password" validate:"required"`
	Timeout            Duration `toml:"timeout,omitempty"`
	InsecureSkipVerify bool     `toml:"insecure_skip_verify"`
}

// FileServerConfig holds where the shared file server is mounted locally.
type FileServerConfig struct {
	Mount string `toml:"mount" validate:"required"`
}

// FiltersConfig selects which duplicates are never offered for review.
type FiltersConfig struct {
	Enabled         []string `toml:"enabled"`
	ExcludePatterns []string `toml:"exclude_patterns"`
	MinSize         int64    `toml:"min_size"`
}

// ScratchConfig configures where files are copied for viewing.
type ScratchConfig struct {
	Type string `toml:"type" validate:"omitempty,oneof=filesystem memory"` // "filesystem" (default) or "memory"
	Dir  string `toml:"dir,omitempty"`
}

// Duration is a time.Duration written as a string such as "10m" or "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// NewConfig creates a new Config with defaults rooted at baseDir.
func NewConfig(baseDir string) *Config {
	return &Config{
		LogDir: filepath.Join(baseDir, "log"),
		Catalog: CatalogConfig{
			Type:    "postgres",
			Port:    5432,
			SSLMode: "prefer",
			Timeout: Duration{30 * time.Second},
		},
		Ledger: LedgerConfig{
			Type:               "filesystem",
			StagingDir:         filepath.Join(baseDir, "staging"),
			Filename:           "sweep_db.sqlite",
			CheckpointInterval: Duration{10 * time.Minute},
			Encryption: EncryptionConfig{
				Type:           "none",
				PublicKeyPath:  filepath.Join(baseDir, "keys", "ledger.pub"),
				PrivateKeyPath: filepath.Join(baseDir, "keys", "ledger.key"),
			},
		},
		Archives: ArchivesConfig{
			Timeout:            Duration{30 * time.Second},
			InsecureSkipVerify: true,
		},
		Filters: FiltersConfig{
			Enabled: []string{"cad_support_files", "system_files"},
		},
		Scratch: ScratchConfig{Type: "filesystem"},
	}
}

var validate = validator.New()

// Validate checks that every required setting is present. The error lists
// every missing or invalid field.
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating config: %w", err)
	}
	var problems []string
	for _, fe := range verrs {
		problems = append(problems, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(problems, ", "))
}

// envOverrides maps the original tool's environment variables onto config fields.
var envOverrides = map[string]func(*Config, string){
	"ARCHIVES_DB_HOST":      func(c *Config, v string) { c.Catalog.Host = v },
	"ARCHIVES_DB_NAME":      func(c *Config, v string) { c.Catalog.Name = v },
	"ARCHIVES_DB_USER":      func(c *Config, v string) { c.Catalog.User = v },
	"ARCHIVES_DB_PASSWORD":  func(c *Config, v string) { c.Catalog.Password = v },
	"ARCHIVES_APP_URL":      func(c *Config, v string) { c.Archives.URL = v },
	"ARCHIVES_APP_USER":     func(c *Config, v string) { c.Archives.User = v },
	"ARCHIVES_APP_PASSWORD": func(c *Config, v string) { c.Archives.Password = v },
	"SWEEP_DB_LOCATION":     func(c *Config, v string) { c.Ledger.Dir = v },
	"FILE_SERVER_MOUNT":     func(c *Config, v string) { c.FileServer.Mount = v },
}

// ApplyEnv overlays non-empty environment values onto cfg.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	for key, set := range envOverrides {
		if v, ok := lookup(key); ok && v != "" {
			set(cfg, v)
		}
	}
}

// Manager handles reading and writing configuration.
type Manager struct {
	// BaseDir roots the defaults that fill settings the file leaves out.
	BaseDir string
}

// Read decodes a Config from the provided reader on top of NewConfig(m.BaseDir).
func (m *Manager) Read(r io.Reader) (*Config, error) {
	cfg := NewConfig(m.BaseDir)
	if _, err := toml.NewDecoder(r).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path. Missing settings
// take their NewConfig(baseDir) values.
func ReadFromFile(path, baseDir string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{BaseDir: baseDir}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// The file holds database and API credentials.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
