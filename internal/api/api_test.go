package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crimson-sun/hazardscope/internal/engine"
	"github.com/crimson-sun/hazardscope/internal/model"
)

type fakeAnalyzer struct {
	mu       sync.Mutex
	err      error
	cacheHit bool
	paths    []string
	contents [][]byte
	backends []string
}

func (f *fakeAnalyzer) AnalyzeFile(ctx context.Context, path, backend string) (engine.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, _ := os.ReadFile(path)
	f.paths = append(f.paths, path)
	f.contents = append(f.contents, data)
	f.backends = append(f.backends, backend)
	if f.err != nil {
		return engine.Report{}, f.err
	}
	return engine.Report{
		Result: model.AnalysisResult{
			ID:                 "analysis_20250101_000000_abcd1234",
			CategoryID:         "7",
			Description:        "钢丝绳断丝",
			Suggestion:         "更换钢丝绳",
			Confidence:         0.88,
			SimilarCases:       []string{},
			AnalysisMethod:     model.MethodFused,
			Model:              backend,
			SemanticSimilarity: 0.61,
			LexicalSimilarity:  0.34,
		},
		ImageHash: "deadbeef",
		CacheHit:  f.cacheHit,
	}, nil
}

type fakeCache struct {
	mu         sync.Mutex
	statsCalls int
	avgCalls   int
	err        error
}

func (f *fakeCache) Stats(context.Context) (model.CacheStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statsCalls++
	if f.err != nil {
		return model.CacheStats{}, f.err
	}
	return model.CacheStats{Total: 3, ByModel: map[string]int64{"gemini": 2, "gpt4o": 1}}, nil
}

func (f *fakeCache) SimilarityAverages(context.Context) (map[string]model.SimilarityAverage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.avgCalls++
	if f.err != nil {
		return nil, f.err
	}
	return map[string]model.SimilarityAverage{
		"gemini": {SemanticAvg: 0.5, LexicalAvg: 0.25, Count: 2},
		"gpt4o":  {},
	}, nil
}

func (f *fakeCache) CrossBackend(_ context.Context, hash string) map[string]model.SimilarityPair {
	return map[string]model.SimilarityPair{
		"gemini": {Semantic: 0.61, Lexical: 0.34},
		"gpt4o":  {},
	}
}

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("database is locked") }

func newTestServer(t *testing.T, a Analyzer, c ResultCache, mutate ...func(*Options)) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	opts := Options{ScratchDir: dir, MaxUploadBytes: 1 << 20, StatsTTL: time.Minute}
	for _, m := range mutate {
		m(&opts)
	}
	s, err := New(a, c, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s, dir
}

func uploadRequest(t *testing.T, field, filename string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if field != "" {
		part, err := w.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func scratchEntries(t *testing.T, dir string) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return entries
}

func TestAnalyzeSuccess(t *testing.T) {
	a := &fakeAnalyzer{}
	s, dir := newTestServer(t, a, &fakeCache{})

	rec := serve(s, uploadRequest(t, "image", "Site.JPG", []byte("jpeg-bytes"), map[string]string{"model": "gpt4o"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "7", body["type"])
	assert.Equal(t, "gpt4o", body["model"])
	assert.Equal(t, 0.61, body["bert_similarity"])
	assert.Equal(t, 0.34, body["tfidf_similarity"])
	assert.Equal(t, map[string]any{"bert": 0.61, "tfidf": 0.34}, body["gemini_similarity"])
	assert.Equal(t, map[string]any{"bert": 0.0, "tfidf": 0.0}, body["gpt4o_similarity"])
	assert.Contains(t, body, "similar_cases")
	assert.Contains(t, body, "standard_description")

	require.Len(t, a.paths, 1)
	assert.Equal(t, []byte("jpeg-bytes"), a.contents[0])
	assert.Equal(t, ".jpg", filepath.Ext(a.paths[0]))
	assert.Equal(t, dir, filepath.Dir(a.paths[0]))
	assert.Empty(t, scratchEntries(t, dir), "staged upload not removed")
}

func TestAnalyzeDefaultsToGemini(t *testing.T) {
	a := &fakeAnalyzer{}
	s, _ := newTestServer(t, a, &fakeCache{})

	rec := serve(s, uploadRequest(t, "image", "a.png", []byte("x"), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{model.BackendGemini}, a.backends)
}

func TestAnalyzeBadRequests(t *testing.T) {
	tests := []struct {
		name string
		req  func(t *testing.T) *http.Request
	}{
		{"no file", func(t *testing.T) *http.Request {
			return uploadRequest(t, "", "", nil, map[string]string{"model": "gemini"})
		}},
		{"wrong field", func(t *testing.T) *http.Request {
			return uploadRequest(t, "file", "a.jpg", []byte("x"), nil)
		}},
		{"empty filename", func(t *testing.T) *http.Request {
			return uploadRequest(t, "image", "", []byte("x"), nil)
		}},
		{"unsupported model", func(t *testing.T) *http.Request {
			return uploadRequest(t, "image", "a.jpg", []byte("x"), map[string]string{"model": "llava"})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &fakeAnalyzer{}
			s, dir := newTestServer(t, a, &fakeCache{})

			rec := serve(s, tt.req(t))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, decodeError(t, rec))
			assert.Empty(t, a.paths)
			assert.Empty(t, scratchEntries(t, dir))
		})
	}
}

func TestAnalyzeFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"corrupt image", fmt.Errorf("imaging: %w: unexpected EOF", model.ErrDecode), http.StatusBadRequest},
		{"pipeline error", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, dir := newTestServer(t, &fakeAnalyzer{err: tt.err}, &fakeCache{})

			rec := serve(s, uploadRequest(t, "image", "a.jpg", []byte("x"), nil))
			assert.Equal(t, tt.want, rec.Code)
			assert.Contains(t, decodeError(t, rec), "analysis failed")
			assert.Empty(t, scratchEntries(t, dir), "staged upload not removed on error")
		})
	}
}

func TestAnalyzeBodyLimit(t *testing.T) {
	a := &fakeAnalyzer{}
	s, _ := newTestServer(t, a, &fakeCache{}, func(o *Options) { o.MaxUploadBytes = 512 })

	rec := serve(s, uploadRequest(t, "image", "big.jpg", bytes.Repeat([]byte{0xff}, 4096), nil))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.NotEmpty(t, decodeError(t, rec))
	assert.Empty(t, a.paths)
}

func TestStatsAreCachedUntilFreshAnalysis(t *testing.T) {
	c := &fakeCache{}
	s, _ := newTestServer(t, &fakeAnalyzer{}, c)

	for i := 0; i < 2; i++ {
		rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/cache/stats", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"total":3,"by_model":{"gemini":2,"gpt4o":1}}`, rec.Body.String())
	}
	assert.Equal(t, 1, c.statsCalls)

	rec := serve(s, uploadRequest(t, "image", "a.jpg", []byte("x"), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	serve(s, httptest.NewRequest(http.MethodGet, "/api/cache/stats", nil))
	assert.Equal(t, 2, c.statsCalls)
}

func TestCacheHitKeepsStats(t *testing.T) {
	c := &fakeCache{}
	s, _ := newTestServer(t, &fakeAnalyzer{cacheHit: true}, c)

	serve(s, httptest.NewRequest(http.MethodGet, "/api/cache/stats", nil))
	serve(s, uploadRequest(t, "image", "a.jpg", []byte("x"), nil))
	serve(s, httptest.NewRequest(http.MethodGet, "/api/cache/stats", nil))
	assert.Equal(t, 1, c.statsCalls)
}

func TestSimilarityAverages(t *testing.T) {
	c := &fakeCache{}
	s, _ := newTestServer(t, &fakeAnalyzer{}, c, func(o *Options) { o.StatsTTL = 0 })

	for i := 0; i < 2; i++ {
		rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/similarity/averages", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{
			"gemini": {"bert_avg": 0.5, "tfidf_avg": 0.25, "count": 2},
			"gpt4o": {"bert_avg": 0, "tfidf_avg": 0, "count": 0}
		}`, rec.Body.String())
	}
	assert.Equal(t, 2, c.avgCalls)
}

func TestStatsErrors(t *testing.T) {
	s, _ := newTestServer(t, &fakeAnalyzer{}, &fakeCache{err: errors.New("no such table")})

	for _, path := range []string{"/api/cache/stats", "/api/similarity/averages"} {
		rec := serve(s, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code, path)
		assert.Contains(t, decodeError(t, rec), "no such table")
	}
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, &fakeAnalyzer{}, &fakeCache{})
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	s, _ = newTestServer(t, &fakeAnalyzer{}, &fakeCache{}, func(o *Options) { o.Health = downPinger{} })
	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsAndNotFound(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("hazardscope_analyses_total 0\n"))
	})
	s, _ := newTestServer(t, &fakeAnalyzer{}, &fakeCache{}, func(o *Options) { o.Metrics = metrics })

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hazardscope_analyses_total")

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, decodeError(t, rec))
}
