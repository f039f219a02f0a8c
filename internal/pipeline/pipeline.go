package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/crimson-sun/hazardscope/internal/engine"
	"github.com/crimson-sun/hazardscope/internal/engine/imaging"
	"github.com/crimson-sun/hazardscope/internal/logging"
	"github.com/crimson-sun/hazardscope/internal/output"
)

const defaultConcurrency = 2

// Analyzer runs the full analysis for one image file.
type Analyzer interface {
	AnalyzeFile(ctx context.Context, path, backend string) (engine.Report, error)
}

// Summary counts the outcome of a batch.
type Summary struct {
	Analyzed  int            `json:"analyzed"`
	CacheHits int            `json:"cache_hits"`
	Failed    int            `json:"failed"`
	ByMethod  map[string]int `json:"by_method"`
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithConcurrency bounds how many images are analyzed at once. Default: 2.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithLogger sets the logger; nil means slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.log = logging.OrDefault(l) }
}

// Pipeline connects an analyzer and an output into a batch processor.
type Pipeline struct {
	analyzer    Analyzer
	output      output.Output
	concurrency int
	log         *slog.Logger
}

// New creates a Pipeline from the given components.
func New(a Analyzer, out output.Output, opts ...Option) *Pipeline {
	p := &Pipeline{
		analyzer:    a,
		output:      out,
		concurrency: defaultConcurrency,
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run analyzes every image named by paths against backend. Directories are
// walked recursively for files with a supported image extension. A file that
// fails to analyze or to write is counted and logged; only context
// cancellation or an unreadable path aborts the batch.
func (p *Pipeline) Run(ctx context.Context, paths []string, backend string) (Summary, error) {
	files, err := Expand(paths)
	if err != nil {
		return Summary{}, fmt.Errorf("pipeline: %w", err)
	}

	var (
		mu  sync.Mutex
		sum = Summary{ByMethod: make(map[string]int)}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for _, path := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			rep, err := p.analyzer.AnalyzeFile(gctx, path, backend)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				p.log.Warn("analysis failed", "path", path, "backend", backend, "error", err)
				mu.Lock()
				sum.Failed++
				mu.Unlock()
				return nil
			}

			rec := output.Record{
				AnalysisResult: rep.Result,
				Source:         path,
				ImageHash:      rep.ImageHash,
				CacheHit:       rep.CacheHit,
			}
			writeErr := p.output.Write(gctx, rec)

			mu.Lock()
			defer mu.Unlock()
			if writeErr != nil {
				p.log.Warn("output write failed", "path", path, "error", writeErr)
				sum.Failed++
				return nil
			}
			sum.Analyzed++
			sum.ByMethod[rep.Result.AnalysisMethod]++
			if rep.CacheHit {
				sum.CacheHits++
			}
			return nil
		})
	}

	err = g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	p.log.Info("batch finished",
		"files", len(files), "analyzed", sum.Analyzed,
		"cache_hits", sum.CacheHits, "failed", sum.Failed)
	if err != nil {
		return sum, fmt.Errorf("pipeline: %w", err)
	}
	return sum, nil
}

// Close shuts down the output.
func (p *Pipeline) Close() error {
	return p.output.Close()
}

// Expand resolves files and directories into a sorted, de-duplicated list
// of image files. Explicit file arguments are kept whatever their extension
// so the analyzer can report them.
func Expand(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}
	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(root)
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && imaging.AllowedExtensions[strings.ToLower(filepath.Ext(path))] {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)
	return files, nil
}
