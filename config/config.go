// Package config loads the handbook catalog and service settings from a
// YAML, TOML or JSON file plus environment variables.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fwojciec/handbook"
	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file used when HANDBOOK_CONFIG is unset.
const DefaultPath = "handbooks.yaml"

// Environment variables read by Load.
const (
	EnvConfig       = "HANDBOOK_CONFIG"
	EnvAPIKey       = "GEMINI_API_KEY"
	EnvLegacyAPIKey = "GOOGLE_GENERATIVE_AI_API_KEY"
	EnvPort         = "PORT"
)

// Snapshot backends.
const (
	SnapshotFile   = "file"
	SnapshotSQLite = "sqlite"
	SnapshotNone   = "none"
)

// Ingest engines.
const (
	EnginePDF     = "pdf"
	EnginePoppler = "poppler"
)

// Duration is a time.Duration written as a string such as "90s" or "5m".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Config is the complete service configuration.
type Config struct {
	// Institution prefixes faculty names in prompts, e.g. a university name.
	Institution string `yaml:"institution" toml:"institution" json:"institution"`

	Server    ServerConfig     `yaml:"server" toml:"server" json:"server"`
	Snapshots SnapshotConfig   `yaml:"snapshots" toml:"snapshots" json:"snapshots"`
	Ingest    IngestConfig     `yaml:"ingest" toml:"ingest" json:"ingest"`
	Model     ModelConfig      `yaml:"model" toml:"model" json:"model"`
	Answer    AnswerConfig     `yaml:"answer" toml:"answer" json:"answer"`
	Documents []DocumentConfig `yaml:"documents" toml:"documents" json:"documents" validate:"required,min=1,dive"`

	// APIKey is read from the environment only.
	APIKey string `yaml:"-" toml:"-" json:"-"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port         int      `yaml:"port" toml:"port" json:"port" validate:"gte=0,lte=65535"`
	AllowOrigins []string `yaml:"allow_origins" toml:"allow_origins" json:"allow_origins"`
	ReadTimeout  Duration `yaml:"read_timeout" toml:"read_timeout" json:"read_timeout" validate:"gte=0"`
	WriteTimeout Duration `yaml:"write_timeout" toml:"write_timeout" json:"write_timeout" validate:"gte=0"`
}

// Addr returns the listen address for Port.
func (c ServerConfig) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// SnapshotConfig selects where flattened corpora are persisted.
type SnapshotConfig struct {
	Backend string `yaml:"backend" toml:"backend" json:"backend" validate:"oneof=file sqlite none"`
	Dir     string `yaml:"dir" toml:"dir" json:"dir"`
	DBPath  string `yaml:"db_path" toml:"db_path" json:"db_path"`
}

// IngestConfig configures PDF ingestion.
type IngestConfig struct {
	Engine      string   `yaml:"engine" toml:"engine" json:"engine" validate:"oneof=pdf poppler"`
	Timeout     Duration `yaml:"timeout" toml:"timeout" json:"timeout" validate:"gte=0"`
	Concurrency int      `yaml:"concurrency" toml:"concurrency" json:"concurrency" validate:"gte=0"`
}

// ModelConfig configures the language model client.
type ModelConfig struct {
	Name              string   `yaml:"name" toml:"name" json:"name"`
	RequestsPerMinute float64  `yaml:"requests_per_minute" toml:"requests_per_minute" json:"requests_per_minute" validate:"gte=0"`
	Burst             int      `yaml:"burst" toml:"burst" json:"burst" validate:"gte=0"`
	MaxWait           Duration `yaml:"max_wait" toml:"max_wait" json:"max_wait" validate:"gte=0"`
	Timeout           Duration `yaml:"timeout" toml:"timeout" json:"timeout" validate:"gte=0"`
}

// AnswerConfig bounds what is sent to the model.
type AnswerConfig struct {
	MaxContextChars int `yaml:"max_context_chars" toml:"max_context_chars" json:"max_context_chars" validate:"gte=0"`
	ContextLines    int `yaml:"context_lines" toml:"context_lines" json:"context_lines" validate:"gte=0"`
	MaxHistory      int `yaml:"max_history" toml:"max_history" json:"max_history"`
}

// DocumentConfig describes one handbook.
type DocumentConfig struct {
	ID          string             `yaml:"id" toml:"id" json:"id" validate:"required,excludesall=/\\"`
	Name        string             `yaml:"name" toml:"name" json:"name" validate:"required"`
	Source      string             `yaml:"source" toml:"source" json:"source" validate:"required"`
	Language    string             `yaml:"language" toml:"language" json:"language"`
	Departments []DepartmentConfig `yaml:"departments" toml:"departments" json:"departments" validate:"dive"`
}

// DepartmentConfig describes a department of a faculty.
type DepartmentConfig struct {
	ID   string `yaml:"id" toml:"id" json:"id" validate:"required"`
	Name string `yaml:"name" toml:"name" json:"name" validate:"required"`
}

// Path returns the config file path selected by the environment.
func Path(getenv func(string) string) string {
	if p := getenv(EnvConfig); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads the config file at path, applies defaults and environment
// overrides, resolves relative paths against the file's directory and
// validates the result.
func Load(path string, getenv func(string) string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, handbook.Errorf(handbook.ENOTFOUND, "config file %s not found", path)
	} else if err != nil {
		return nil, err
	}

	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, err
	}

	cfg.applyEnv(getenv)
	cfg.applyDefaults()
	cfg.resolvePaths(filepath.Dir(path))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes config data in the format named by ext (".yaml", ".yml",
// ".toml" or ".json"). It does not apply defaults.
func Parse(data []byte, ext string) (*Config, error) {
	var cfg Config
	var err error
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	case ".json":
		err = json.Unmarshal(data, &cfg)
	default:
		return nil, handbook.Errorf(handbook.EINVALID, "unsupported config format %q", ext)
	}
	if err != nil {
		return nil, handbook.Errorf(handbook.EINVALID, "parse config: %v", err)
	}
	return &cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	c.APIKey = getenv(EnvAPIKey)
	if c.APIKey == "" {
		c.APIKey = getenv(EnvLegacyAPIKey)
	}
	if p, err := strconv.Atoi(getenv(EnvPort)); err == nil {
		c.Server.Port = p
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = Duration(30 * time.Second)
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = Duration(180 * time.Second)
	}
	if c.Snapshots.Backend == "" {
		c.Snapshots.Backend = SnapshotFile
	}
	if c.Snapshots.Dir == "" {
		c.Snapshots.Dir = "snapshots"
	}
	if c.Snapshots.DBPath == "" {
		c.Snapshots.DBPath = "handbook.db"
	}
	if c.Ingest.Engine == "" {
		c.Ingest.Engine = EnginePDF
	}
	if c.Ingest.Timeout == 0 {
		c.Ingest.Timeout = Duration(5 * time.Minute)
	}
	if c.Ingest.Concurrency == 0 {
		c.Ingest.Concurrency = 4
	}
	if c.Model.Name == "" {
		c.Model.Name = "gemini-2.5-flash"
	}
	if c.Model.RequestsPerMinute == 0 {
		c.Model.RequestsPerMinute = 10
	}
	if c.Model.Burst == 0 {
		c.Model.Burst = 2
	}
	if c.Model.MaxWait == 0 {
		c.Model.MaxWait = Duration(10 * time.Second)
	}
	if c.Model.Timeout == 0 {
		c.Model.Timeout = Duration(60 * time.Second)
	}
	if c.Answer.MaxContextChars == 0 {
		c.Answer.MaxContextChars = handbook.DefaultMaxContextChars
	}
	if c.Answer.ContextLines == 0 {
		c.Answer.ContextLines = handbook.DefaultContextLines
	}
}

func (c *Config) resolvePaths(dir string) {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	c.Snapshots.Dir = resolve(c.Snapshots.Dir)
	if c.Snapshots.DBPath != ":memory:" {
		c.Snapshots.DBPath = resolve(c.Snapshots.DBPath)
	}
	for i := range c.Documents {
		c.Documents[i].Source = resolve(c.Documents[i].Source)
	}
}

// Validate checks field constraints and builds the catalog to catch
// duplicate identifiers.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag())
			}
			return handbook.Errorf(handbook.EINVALID, "invalid config: %s", strings.Join(msgs, "; "))
		}
		return err
	}
	_, err := c.Catalog()
	return err
}

// Catalog builds the handbook catalog from the configured documents.
func (c *Config) Catalog() (*handbook.Catalog, error) {
	descs := make([]handbook.Descriptor, len(c.Documents))
	for i, d := range c.Documents {
		depts := make([]handbook.Department, len(d.Departments))
		for j, dept := range d.Departments {
			depts[j] = handbook.Department{ID: dept.ID, Name: dept.Name}
		}
		descs[i] = handbook.Descriptor{
			ID:          d.ID,
			Name:        d.Name,
			Source:      d.Source,
			Language:    d.Language,
			Departments: depts,
		}
	}
	return handbook.NewCatalog(descs)
}
