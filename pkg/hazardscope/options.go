package hazardscope

import (
	"log/slog"
	"path/filepath"
)

type options struct {
	configFile string
	modelDir   string
	driver     string
	dsn        string
	apiKeys    map[string]string
	categories string
	logger     *slog.Logger
}

// Option configures a System.
type Option func(*options)

// WithConfigFile loads settings from a YAML file. Other options override it.
func WithConfigFile(path string) Option {
	return func(o *options) { o.configFile = path }
}

// WithModelDir sets the directory containing model files.
// Expects: clip/{vision_model.onnx,text_model.onnx,vocab.txt},
// sentence/{model.onnx,vocab.txt,2_Dense/model.safetensors} and
// libonnxruntime.so.
func WithModelDir(dir string) Option {
	return func(o *options) { o.modelDir = dir }
}

// WithDatabase selects the case library and result cache store:
// driver "sqlite" (dsn is a file path or ":memory:") or "mysql".
func WithDatabase(driver, dsn string) Option {
	return func(o *options) { o.driver, o.dsn = driver, dsn }
}

// WithAPIKey sets the credential of a generative backend ("gemini", "gpt4o").
// Backends without a key answer with direct classification only.
func WithAPIKey(backend, key string) Option {
	return func(o *options) {
		if o.apiKeys == nil {
			o.apiKeys = make(map[string]string)
		}
		o.apiKeys[backend] = key
	}
}

// WithCategoryFile loads the hazard category set from an `id:description` file.
func WithCategoryFile(path string) Option {
	return func(o *options) { o.categories = path }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// modelPaths lays out the expected files under dir.
func modelPaths(dir string) (clipImage, clipText, clipVocab, sentModel, sentVocab, sentProj string) {
	return filepath.Join(dir, "clip", "vision_model.onnx"),
		filepath.Join(dir, "clip", "text_model.onnx"),
		filepath.Join(dir, "clip", "vocab.txt"),
		filepath.Join(dir, "sentence", "model.onnx"),
		filepath.Join(dir, "sentence", "vocab.txt"),
		filepath.Join(dir, "sentence", "2_Dense", "model.safetensors")
}
