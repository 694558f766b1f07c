package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for smart-claimer.
type Config struct {
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Server     ServerConfig     `toml:"server"`
	Database   DatabaseConfig   `toml:"database"`
	Jira       JiraConfig       `toml:"jira"`
	MetaApp    MetaAppConfig    `toml:"metaapp"`
	OpenAI     OpenAIConfig     `toml:"openai"`
	Whisper    WhisperConfig    `toml:"whisper"`
	Vault      VaultConfig      `toml:"vault"`
	Encryption EncryptionConfig `toml:"encryption"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr         string   `toml:"addr"`
	ReadTimeout  Duration `toml:"read_timeout"`
	WriteTimeout Duration `toml:"write_timeout"`
}

// DatabaseConfig represents configuration for the local Entry Store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// JiraConfig configures the JIRA REST client and the metadata cache in front of it.
type JiraConfig struct {
	URL   string `toml:"url"`
	Auth  string `toml:"auth"` // "basic" (default) or "oauth2"
	User  string `toml:"user,omitempty"`
	Token string `toml:"token,omitempty"`

	// OAuth2 client credentials (only used when Auth == "oauth2")
	ClientID     string   `toml:"client_id,omitempty"`
	ClientSecret string   `toml:"client_secret,omitempty"`
	TokenURL     string   `toml:"token_url,omitempty"`
	Scopes       []string `toml:"scopes,omitempty"`

	Timeout      Duration `toml:"timeout"`
	CacheTTL     Duration `toml:"cache_ttl"`
	CacheSize    int      `toml:"cache_size"`
	LookbackDays int      `toml:"lookback_days"`
	MaxResults   int      `toml:"max_results"`
}

// Enabled reports whether enough is configured to talk to JIRA.
func (c JiraConfig) Enabled() bool {
	return c.URL != ""
}

// MetaAppConfig represents configuration for the external CRM.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type MetaAppConfig struct {
	Type string `toml:"type"` // "postgres", "memory", or "" for disabled

	// PostgreSQL-specific fields (only used when Type == "postgres")
	Host     string `toml:"host,omitempty"`
	Port     int    `toml:"port,omitempty"`
	User     string `toml:"user,omitempty"`
	Password string `toml:"password,omitempty"`
	Name     string `toml:"name,omitempty"`
	Schema   string `toml:"schema,omitempty"`
	SSLMode  string `toml:"ssl_mode,omitempty"`

	ImportLimit int      `toml:"import_limit"`
	Timeout     Duration `toml:"timeout"`
}

// DSN returns the PostgreSQL connection string.
func (c MetaAppConfig) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, sslMode)
}

// OpenAIConfig configures the AI completion proxy.
type OpenAIConfig struct {
	APIKey        string   `toml:"api_key,omitempty"`
	BaseURL       string   `toml:"base_url"`
	Model         string   `toml:"model"`
	MaxTokens     int      `toml:"max_tokens"`
	Temperature   float64  `toml:"temperature"`
	DefaultPrompt string   `toml:"default_prompt"`
	Timeout       Duration `toml:"timeout"`
}

// WhisperConfig is passed through to the browser, which talks to the
// transcription service directly.
type WhisperConfig struct {
	APIURL           string  `toml:"api_url"`
	Language         string  `toml:"language"`
	Prompt           string  `toml:"prompt"`
	Temperature      float64 `toml:"temperature"`
	MaxRecordingTime int     `toml:"max_recording_time"` // seconds
}

// VaultConfig represents configuration for the snapshot vault.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type VaultConfig struct {
	Type string `toml:"type"` // "memory", "s3", or "filesystem"
	Name string `toml:"name"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket string `toml:"s3_bucket,omitempty"`
	S3Prefix string `toml:"s3_prefix,omitempty"`
	S3Region string `toml:"s3_region,omitempty"`
	// Optional; the default AWS credential chain is used when empty.
	S3Endpoint        string `toml:"s3_endpoint,omitempty"`
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`
	S3PathStyle       bool   `toml:"s3_path_style,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSVaultRoot string `toml:"fs_vault_root,omitempty"`
}

// EncryptionConfig holds paths to the age key pair used for snapshots.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default) or "none"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// Duration is a time.Duration written as a Go duration string ("10s").
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

const (
	defaultAssistPrompt = "Pomôž mi napísať lepší popis práce na základe poskytnutých informácií o JIRA úlohe " +
		"a aktuálneho popisu. Buď konkrétny a technický."
	defaultWhisperPrompt = "Popis práce, technické úlohy, programovanie v softverovej a datovej firme."
)

// NewConfig creates a new Config rooted at baseDir with default values.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Server: ServerConfig{
			Addr:         "127.0.0.1:8000",
			ReadTimeout:  Duration{15 * time.Second},
			WriteTimeout: Duration{60 * time.Second},
		},
		Database: DatabaseConfig{Type: "sqlite", DataDir: filepath.Join(baseDir, "db")},
		Jira: JiraConfig{
			Auth:         "basic",
			Timeout:      Duration{10 * time.Second},
			CacheTTL:     Duration{5 * time.Minute},
			CacheSize:    64,
			LookbackDays: 30,
			MaxResults:   100,
		},
		MetaApp: MetaAppConfig{
			Port:        5432,
			Schema:      "metaapp_metaapp_crm",
			ImportLimit: 100,
			Timeout:     Duration{15 * time.Second},
		},
		OpenAI: OpenAIConfig{
			BaseURL:       "https://api.openai.com/v1",
			Model:         "gpt-4o-mini",
			MaxTokens:     500,
			Temperature:   0.7,
			DefaultPrompt: defaultAssistPrompt,
			Timeout:       Duration{30 * time.Second},
		},
		Whisper: WhisperConfig{
			APIURL:           "http://whisper-api:3001/transcribe",
			Language:         "sk",
			Prompt:           defaultWhisperPrompt,
			Temperature:      0.2,
			MaxRecordingTime: 300,
		},
		Vault: VaultConfig{
			Type:        "filesystem",
			Name:        "local",
			FSVaultRoot: filepath.Join(baseDir, "vault"),
		},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "claimer.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "claimer.key"),
		},
	}
}

// ApplyEnv overrides secrets and endpoints from the environment.
// lookup is usually os.LookupEnv; empty values are ignored.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("JIRA_URL", &c.Jira.URL)
	str("JIRA_USER", &c.Jira.User)
	str("JIRA_TOKEN", &c.Jira.Token)
	str("METAAPP_DB_HOST", &c.MetaApp.Host)
	str("METAAPP_DB_USER", &c.MetaApp.User)
	str("METAAPP_DB_PASSWORD", &c.MetaApp.Password)
	str("METAAPP_DB_NAME", &c.MetaApp.Name)
	str("OPENAI_API_KEY", &c.OpenAI.APIKey)
	str("OPENAI_MODEL", &c.OpenAI.Model)
	str("WHISPER_API_URL", &c.Whisper.APIURL)
	str("WHISPER_LANGUAGE", &c.Whisper.Language)

	if v, ok := lookup("METAAPP_DB_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("METAAPP_DB_PORT: %w", err)
		}
		c.MetaApp.Port = port
	}
	// Setting a host through the environment implies a real CRM.
	if c.MetaApp.Type == "" && c.MetaApp.Host != "" {
		c.MetaApp.Type = "postgres"
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// The file may carry credentials.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
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

// Init writes cfg to a new config file at path. It refuses to overwrite.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
