package hazardscope

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crimson-sun/hazardscope/internal/engine"
	"github.com/crimson-sun/hazardscope/internal/model"
)

const testModelDir = "../../models"

func skipWithoutModel(t *testing.T) {
	t.Helper()
	if _, err := os.Stat(filepath.Join(testModelDir, "clip", "vision_model.onnx")); os.IsNotExist(err) {
		t.Skip("ONNX models not available, skipping integration test")
	}
}

func TestResolveConfigOverrides(t *testing.T) {
	var o options
	for _, opt := range []Option{
		WithModelDir("/opt/models"),
		WithDatabase("sqlite", ":memory:"),
		WithAPIKey("gpt4o", "sk-test"),
		WithCategoryFile("cats.txt"),
	} {
		opt(&o)
	}

	cfg, err := resolveConfig(o)
	require.NoError(t, err)
	assert.Equal(t, "/opt/models/clip/vision_model.onnx", cfg.Models.CLIP.ImageModel)
	assert.Equal(t, "/opt/models/sentence/2_Dense/model.safetensors", cfg.Models.Sentence.Projection)
	assert.Equal(t, "/opt/models/libonnxruntime.so", cfg.Models.ORTLibrary())
	assert.Equal(t, ":memory:", cfg.Database.DSN)
	assert.Equal(t, "sk-test", cfg.Backends["gpt4o"].APIKey)
	assert.Equal(t, "openai", cfg.Backends["gpt4o"].Protocol)
	assert.Equal(t, "cats.txt", cfg.Data.CategoryFile)
}

func TestResolveConfigRejectsUnknownBackend(t *testing.T) {
	var o options
	WithAPIKey("claude", "x")(&o)
	_, err := resolveConfig(o)
	assert.ErrorIs(t, err, model.ErrUnsupportedBackend)
}

func TestResolveConfigRejectsBadDriver(t *testing.T) {
	var o options
	WithDatabase("postgres", "host=db")(&o)
	_, err := resolveConfig(o)
	assert.Error(t, err)
}

func TestNewBadModelDirReturnsError(t *testing.T) {
	_, err := New(WithModelDir("/nonexistent/path"), WithDatabase("sqlite", ":memory:"))
	assert.Error(t, err)
}

func TestResultFromReport(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	rep := engine.Report{
		Result: model.AnalysisResult{
			ID:             "analysis_20260301_080000_0a1b2c3d",
			CategoryID:     "3",
			Description:    "高处作业未系安全带",
			Confidence:     0.9,
			SimilarCases:   []string{"3-1.jpg"},
			AnalysisMethod: model.MethodFused,
			Model:          model.BackendGemini,
			CreatedAt:      now,
		},
		ImageHash: "abc",
		CacheHit:  true,
	}
	res := resultFromReport(rep)
	assert.Equal(t, "3", res.Type)
	assert.Equal(t, "abc", res.ImageHash)
	assert.True(t, res.CacheHit)
	assert.Equal(t, now, res.CreatedAt)

	res.SimilarCases[0] = "changed"
	assert.Equal(t, "3-1.jpg", rep.Result.SimilarCases[0])
}

func TestAnalyzeWithoutBackendKey(t *testing.T) {
	skipWithoutModel(t)
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("HAZARD_BACKENDS_GEMINI_API_KEY", "")

	s, err := New(WithModelDir(testModelDir), WithDatabase("sqlite", ":memory:"))
	require.NoError(t, err)
	defer s.Close()
	require.NotEmpty(t, s.Categories())

	img := filepath.Join(testModelDir, "..", "testdata", "site.jpg")
	if _, err := os.Stat(img); os.IsNotExist(err) {
		t.Skip("sample image not available")
	}
	res, err := s.Analyze(context.Background(), img, "")
	require.NoError(t, err)
	assert.Equal(t, model.MethodDirectClassification, res.AnalysisMethod)
	assert.Equal(t, DefaultBackend, res.Model)
}
