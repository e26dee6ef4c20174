package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Embedder backends.
const (
	EmbedderHash   = "hash"
	EmbedderOpenAI = "openai"
)

// Memory store backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config holds application configuration.
type Config struct {
	// ConfidenceThreshold gates auto-labeling: a prediction is persisted to the
	// pending store iff its confidence is >= this value. Must be in (0, 1].
	ConfidenceThreshold float64 `json:"confidence_threshold"`

	// VectorDimension is the embedding size D. Must match the embedder output exactly.
	VectorDimension int `json:"vector_dimension"`

	// Embedder selects the embedding backend: "hash" (offline) or "openai".
	Embedder string `json:"embedder,omitempty"`

	// OpenAIModel and OpenAIBaseURL configure the openai embedder.
	// The API key is never read from config files; use OPENAI_API_KEY.
	OpenAIModel   string `json:"openai_model,omitempty"`
	OpenAIBaseURL string `json:"openai_base_url,omitempty"`

	// MemoryBackend selects vector memory persistence: "file" or "sqlite".
	MemoryBackend string `json:"memory_backend,omitempty"`

	// MinTrainExamples is the smallest labeled dataset train will accept.
	MinTrainExamples int `json:"min_train_examples"`

	// LabelChars truncates text before it is written to the pending store.
	LabelChars int `json:"label_chars"`

	// SnippetChars truncates the text_snippet stored with each memory entry.
	SnippetChars int `json:"snippet_chars"`

	// MinIngestChars skips ingested documents shorter than this (0 = no minimum).
	MinIngestChars int `json:"min_ingest_chars,omitempty"`

	// LonelyLabelMin flags labels with fewer examples than this in doctor.
	LonelyLabelMin int `json:"lonely_label_min"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections
	// for the sqlite memory backend. 0 means use sql.DB default.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisabledTypes is a list of tool type names to disable entirely.
	// Known types: "classify", "memory", "dataset".
	DisabledTypes []string `json:"disabled_types,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		ConfidenceThreshold: 0.85,
		VectorDimension:     384,
		Embedder:            EmbedderHash,
		MemoryBackend:       BackendFile,
		MinTrainExamples:    10,
		LabelChars:          1500,
		SnippetChars:        500,
		LonelyLabelMin:      3,
		LogLevel:            "info",
	}
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if c.ConfidenceThreshold <= 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence_threshold must be in (0, 1], got %v", c.ConfidenceThreshold)
	}
	if c.VectorDimension <= 0 {
		return fmt.Errorf("vector_dimension must be positive, got %d", c.VectorDimension)
	}
	switch c.Embedder {
	case EmbedderHash, EmbedderOpenAI:
	default:
		return fmt.Errorf("embedder must be one of: %s, %s", EmbedderHash, EmbedderOpenAI)
	}
	switch c.MemoryBackend {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("memory_backend must be one of: %s, %s", BackendFile, BackendSQLite)
	}
	if c.MinTrainExamples < 2 {
		return fmt.Errorf("min_train_examples must be at least 2, got %d", c.MinTrainExamples)
	}
	if c.LabelChars < 0 || c.SnippetChars < 0 || c.MinIngestChars < 0 {
		return fmt.Errorf("character limits must not be negative")
	}
	return nil
}

// Paths lists the on-disk artifacts under a base directory.
type Paths struct {
	Base        string
	LabeledData string // main labeled dataset (text,label[,confidence])
	Pending     string // auto-labeled records awaiting merge (text,label)
	Model       string
	Index       string
	Metadata    string
	Database    string
}

// PathsFor returns the artifact layout rooted at baseDir.
func PathsFor(baseDir string) Paths {
	return Paths{
		Base:        baseDir,
		LabeledData: filepath.Join(baseDir, "labeled_data.csv"),
		Pending:     filepath.Join(baseDir, "auto_labeled_data.csv"),
		Model:       filepath.Join(baseDir, "model.msgpack"),
		Index:       filepath.Join(baseDir, "memory.index"),
		Metadata:    filepath.Join(baseDir, "memory.meta"),
		Database:    filepath.Join(baseDir, "memory.db"),
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.sift.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.sift) and repo (.sift) directories.
// Repo config is found by walking upward from startDir to find the nearest .sift/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .sift/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	if startDir == "" {
		return ""
	}
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".sift", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", configPath, err)
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.ConfidenceThreshold = overlay.ConfidenceThreshold
	if result.ConfidenceThreshold == 0 {
		result.ConfidenceThreshold = base.ConfidenceThreshold
	}
	result.VectorDimension = overlayInt(base.VectorDimension, overlay.VectorDimension)
	result.Embedder = overlayString(base.Embedder, overlay.Embedder)
	result.OpenAIModel = overlayString(base.OpenAIModel, overlay.OpenAIModel)
	result.OpenAIBaseURL = overlayString(base.OpenAIBaseURL, overlay.OpenAIBaseURL)
	result.MemoryBackend = overlayString(base.MemoryBackend, overlay.MemoryBackend)
	result.MinTrainExamples = overlayInt(base.MinTrainExamples, overlay.MinTrainExamples)
	result.LabelChars = overlayInt(base.LabelChars, overlay.LabelChars)
	result.SnippetChars = overlayInt(base.SnippetChars, overlay.SnippetChars)
	result.MinIngestChars = overlayInt(base.MinIngestChars, overlay.MinIngestChars)
	result.LonelyLabelMin = overlayInt(base.LonelyLabelMin, overlay.LonelyLabelMin)
	result.LogLevel = overlayString(base.LogLevel, overlay.LogLevel)
	result.DBMaxOpenConns = overlayInt(base.DBMaxOpenConns, overlay.DBMaxOpenConns)
	result.DBMaxIdleConns = overlayInt(base.DBMaxIdleConns, overlay.DBMaxIdleConns)

	// Arrays: merge and deduplicate
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	return result
}

func overlayInt(base, overlay int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

func overlayString(base, overlay string) string {
	if strings.TrimSpace(overlay) != "" {
		return strings.TrimSpace(overlay)
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
