package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override (HAZARD_SERVER_ADDR, ...).
const EnvPrefix = "HAZARD"

// Config holds all hazardscope configuration.
type Config struct {
	Server    ServerConfig             `mapstructure:"server"`
	Database  DatabaseConfig           `mapstructure:"database"`
	Models    ModelsConfig             `mapstructure:"models"`
	Data      DataConfig               `mapstructure:"data"`
	Retrieval RetrievalConfig          `mapstructure:"retrieval"`
	Backends  map[string]BackendConfig `mapstructure:"backends"`
	Output    OutputConfig             `mapstructure:"output"`
	Log       LogConfig                `mapstructure:"log"`
}

// ServerConfig holds HTTP boundary settings.
type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	ScratchDir     string        `mapstructure:"scratch_dir"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
	StatsCacheTTL  time.Duration `mapstructure:"stats_cache_ttl"`
	ShutdownGrace  time.Duration `mapstructure:"shutdown_grace"`
}

// DatabaseConfig selects the document store.
type DatabaseConfig struct {
	Driver        string        `mapstructure:"driver"` // "sqlite" or "mysql"
	DSN           string        `mapstructure:"dsn"`
	SlowThreshold time.Duration `mapstructure:"slow_threshold"`
}

// ModelsConfig locates the local ONNX models.
type ModelsConfig struct {
	ONNXLibrary string         `mapstructure:"onnx_library"`
	CLIP        CLIPConfig     `mapstructure:"clip"`
	Sentence    SentenceConfig `mapstructure:"sentence"`
}

// CLIPConfig describes the joint image/text embedding model.
type CLIPConfig struct {
	ImageModel    string `mapstructure:"image_model"`
	TextModel     string `mapstructure:"text_model"`
	Vocab         string `mapstructure:"vocab"`
	ContextLength int    `mapstructure:"context_length"`
	ImageSize     int    `mapstructure:"image_size"`
}

// SentenceConfig describes the text-only multilingual sentence embedder.
type SentenceConfig struct {
	Model      string `mapstructure:"model"`
	Vocab      string `mapstructure:"vocab"`
	Projection string `mapstructure:"projection"` // optional Dense layer (safetensors)
	Activation string `mapstructure:"activation"` // "identity" or "tanh"
	Lowercase  bool   `mapstructure:"lowercase"`
	MaxSeqLen  int    `mapstructure:"max_seq_len"`
}

// DataConfig locates the line-oriented reference text resources.
type DataConfig struct {
	CategoryFile    string `mapstructure:"category_file"`
	DescriptionFile string `mapstructure:"description_file"`
	ImageDir        string `mapstructure:"image_dir"`
}

// RetrievalConfig bounds prompt construction.
type RetrievalConfig struct {
	TopK    int `mapstructure:"top_k"`
	FewShot int `mapstructure:"few_shot"`
}

// BackendConfig is the endpoint/model/credential triple of one generative backend.
type BackendConfig struct {
	Protocol  string        `mapstructure:"protocol"` // "genai" or "openai"
	Endpoint  string        `mapstructure:"endpoint"`
	Model     string        `mapstructure:"model"`
	APIKey    string        `mapstructure:"api_key"`
	Timeout   time.Duration `mapstructure:"timeout"`
	MaxTokens int           `mapstructure:"max_tokens"`
}

// OutputConfig holds batch-mode result destinations.
type OutputConfig struct {
	Format      string `mapstructure:"format"` // "stdout", "file", "webhook"
	FilePath    string `mapstructure:"file_path"`
	FileMaxSize int64  `mapstructure:"file_max_size"`
	WebhookURL  string `mapstructure:"webhook_url"`
	Verbosity   string `mapstructure:"verbosity"` // "minimal", "standard", "full"
	Pretty      bool   `mapstructure:"pretty"`
	Concurrency int    `mapstructure:"concurrency"`
}

// LogConfig configures slog.
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// setDefaults registers every key so environment overrides resolve during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":5000")
	v.SetDefault("server.scratch_dir", "uploads")
	v.SetDefault("server.max_upload_bytes", 16<<20)
	v.SetDefault("server.stats_cache_ttl", 30*time.Second)
	v.SetDefault("server.shutdown_grace", 10*time.Second)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "hazardscope.db")
	v.SetDefault("database.slow_threshold", 200*time.Millisecond)

	v.SetDefault("models.onnx_library", "")
	v.SetDefault("models.clip.image_model", "models/clip/vision_model.onnx")
	v.SetDefault("models.clip.text_model", "models/clip/text_model.onnx")
	v.SetDefault("models.clip.vocab", "models/clip/vocab.txt")
	v.SetDefault("models.clip.context_length", 52)
	v.SetDefault("models.clip.image_size", 224)
	v.SetDefault("models.sentence.model", "models/sentence/model.onnx")
	v.SetDefault("models.sentence.vocab", "models/sentence/vocab.txt")
	v.SetDefault("models.sentence.projection", "models/sentence/2_Dense/model.safetensors")
	v.SetDefault("models.sentence.activation", "tanh")
	v.SetDefault("models.sentence.lowercase", false)
	v.SetDefault("models.sentence.max_seq_len", 128)

	v.SetDefault("data.category_file", "")
	v.SetDefault("data.description_file", "data/descriptions.txt")
	v.SetDefault("data.image_dir", "data/images")

	v.SetDefault("retrieval.top_k", 5)
	v.SetDefault("retrieval.few_shot", 3)

	v.SetDefault("backends.gemini.protocol", "genai")
	v.SetDefault("backends.gemini.endpoint", "")
	v.SetDefault("backends.gemini.model", "gemini-2.0-flash")
	v.SetDefault("backends.gemini.api_key", "")
	v.SetDefault("backends.gemini.timeout", 60*time.Second)
	v.SetDefault("backends.gemini.max_tokens", 1000)
	v.SetDefault("backends.gpt4o.protocol", "openai")
	v.SetDefault("backends.gpt4o.endpoint", "https://api.openai.com/v1")
	v.SetDefault("backends.gpt4o.model", "gpt-4o")
	v.SetDefault("backends.gpt4o.api_key", "")
	v.SetDefault("backends.gpt4o.timeout", 60*time.Second)
	v.SetDefault("backends.gpt4o.max_tokens", 1000)

	v.SetDefault("output.format", "stdout")
	v.SetDefault("output.file_path", "results.ndjson")
	v.SetDefault("output.file_max_size", 0)
	v.SetDefault("output.webhook_url", "")
	v.SetDefault("output.verbosity", "standard")
	v.SetDefault("output.pretty", false)
	v.SetDefault("output.concurrency", 2)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
}

// Load reads configuration from defaults, the optional YAML file at path,
// and HAZARD_* environment variables, in increasing precedence.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Conventional provider variables are honoured as a fallback.
	_ = v.BindEnv("backends.gemini.api_key", EnvPrefix+"_BACKENDS_GEMINI_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("backends.gpt4o.api_key", EnvPrefix+"_BACKENDS_GPT4O_API_KEY", "OPENAI_API_KEY")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Errorf("database.driver must be sqlite or mysql, got %q", c.Database.Driver))
	}
	if c.Retrieval.TopK < 0 || c.Retrieval.FewShot < 0 {
		errs = append(errs, errors.New("retrieval counts must be non-negative"))
	}
	if c.Server.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("server.max_upload_bytes must be positive"))
	}
	for name, b := range c.Backends {
		switch b.Protocol {
		case "genai", "openai":
		default:
			errs = append(errs, fmt.Errorf("backends.%s.protocol must be genai or openai, got %q", name, b.Protocol))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// ORTLibrary resolves the ONNX Runtime shared library path. Unless set
// explicitly, it is expected in the models root, one level above the
// image model's directory (models/libonnxruntime.so).
func (m ModelsConfig) ORTLibrary() string {
	if m.ONNXLibrary != "" {
		return m.ONNXLibrary
	}
	return filepath.Join(filepath.Dir(filepath.Dir(m.CLIP.ImageModel)), "libonnxruntime.so")
}
