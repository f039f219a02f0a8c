package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	gocache "github.com/patrickmn/go-cache"

	"github.com/crimson-sun/hazardscope/internal/engine"
	"github.com/crimson-sun/hazardscope/internal/model"
)

const (
	statsKey    = "cache_stats"
	averagesKey = "similarity_averages"
)

// analyzeResponse is the analysis result with the cached similarities of
// every backend for the same image.
type analyzeResponse struct {
	model.AnalysisResult
	GeminiSimilarity model.SimilarityPair `json:"gemini_similarity"`
	GPT4oSimilarity  model.SimilarityPair `json:"gpt4o_similarity"`
}

func (s *Server) analyze(c echo.Context) error {
	fh, err := c.FormFile("image")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "no image uploaded"})
	}
	if fh.Filename == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "no file selected"})
	}
	backend := c.FormValue("model")
	if backend == "" {
		backend = model.DefaultBackend
	}
	if !model.IsSupportedBackend(backend) {
		return c.JSON(http.StatusBadRequest, errorResponse{
			Error: fmt.Sprintf("unsupported model %q, expected one of %s", backend, strings.Join(model.Backends, ", ")),
		})
	}

	path, err := s.stage(fh)
	if err != nil {
		s.log.Error("staging upload failed", "filename", fh.Filename, "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "analysis failed: " + err.Error()})
	}
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.log.Warn("removing staged upload", "path", path, "error", err)
		}
	}()

	ctx := c.Request().Context()
	rep, err := s.analyzer.AnalyzeFile(ctx, path, backend)
	if err != nil {
		status := http.StatusInternalServerError
		if engine.IsUserError(err) {
			status = http.StatusBadRequest
		}
		s.log.Warn("analysis failed", "filename", fh.Filename, "backend", backend, "error", err)
		return c.JSON(status, errorResponse{Error: "analysis failed: " + err.Error()})
	}
	if !rep.CacheHit && s.stats != nil {
		s.stats.Flush()
	}

	pairs := s.cache.CrossBackend(ctx, rep.ImageHash)
	return c.JSON(http.StatusOK, analyzeResponse{
		AnalysisResult:   rep.Result,
		GeminiSimilarity: pairs[model.BackendGemini],
		GPT4oSimilarity:  pairs[model.BackendGPT4o],
	})
}

// stage copies an upload into the scratch directory under a random name.
func (s *Server) stage(fh *multipart.FileHeader) (path string, err error) {
	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	path = filepath.Join(s.scratch, uuid.NewString()+ext)
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err = io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", err
	}
	if err = dst.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

func (s *Server) cacheStats(c echo.Context) error {
	if v, ok := s.cached(statsKey); ok {
		return c.JSON(http.StatusOK, v)
	}
	stats, err := s.cache.Stats(c.Request().Context())
	if err != nil {
		s.log.Error("cache stats failed", "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "cache stats failed: " + err.Error()})
	}
	s.remember(statsKey, stats)
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) similarityAverages(c echo.Context) error {
	if v, ok := s.cached(averagesKey); ok {
		return c.JSON(http.StatusOK, v)
	}
	avgs, err := s.cache.SimilarityAverages(c.Request().Context())
	if err != nil {
		s.log.Error("similarity averages failed", "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "similarity averages failed: " + err.Error()})
	}
	s.remember(averagesKey, avgs)
	return c.JSON(http.StatusOK, avgs)
}

func (s *Server) healthCheck(c echo.Context) error {
	if s.health != nil {
		if err := s.health.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) cached(key string) (any, bool) {
	if s.stats == nil {
		return nil, false
	}
	return s.stats.Get(key)
}

func (s *Server) remember(key string, v any) {
	if s.stats != nil {
		s.stats.Set(key, v, gocache.DefaultExpiration)
	}
}
