// Package ingest loads labeled exemplar images into the case library.
package ingest

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/crimson-sun/hazardscope/internal/engine/embedder"
	"github.com/crimson-sun/hazardscope/internal/engine/imaging"
	"github.com/crimson-sun/hazardscope/internal/engine/taxonomy"
	"github.com/crimson-sun/hazardscope/internal/logging"
	"github.com/crimson-sun/hazardscope/internal/metrics"
	"github.com/crimson-sun/hazardscope/internal/model"
)

// Ingest outcomes, also used as metric labels.
const (
	OutcomeLoaded  = "loaded"
	OutcomeUpdated = "updated"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// ImageEncoder embeds an image into the joint image/text space.
type ImageEncoder interface {
	EmbedImage(img image.Image) ([]float32, error)
}

// CaseWriter persists exemplars.
type CaseWriter interface {
	UpsertCase(ctx context.Context, c model.ExemplarCase) (updated bool, err error)
}

// Stats counts per-file outcomes of a run.
type Stats struct {
	Loaded  int `json:"loaded"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Total returns the number of files considered.
func (s Stats) Total() int { return s.Loaded + s.Updated + s.Skipped + s.Failed }

// Option configures an Ingester.
type Option func(*Ingester)

// WithDescriptions sets per-image descriptions keyed "<category>-<sequence>".
func WithDescriptions(d map[string]string) Option {
	return func(i *Ingester) { i.descriptions = d }
}

// WithMaxFileSize overrides the per-file size limit.
func WithMaxFileSize(n int64) Option {
	return func(i *Ingester) { i.maxSize = n }
}

// WithMetrics counts ingested files by outcome.
func WithMetrics(m *metrics.PipelineMetrics) Option {
	return func(i *Ingester) { i.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(i *Ingester) { i.log = l }
}

// Ingester embeds exemplar images and upserts them by filename.
type Ingester struct {
	enc          ImageEncoder
	store        CaseWriter
	taxonomy     *taxonomy.Taxonomy
	descriptions map[string]string
	maxSize      int64
	metrics      *metrics.PipelineMetrics
	log          *slog.Logger
}

// New creates an Ingester.
func New(enc ImageEncoder, store CaseWriter, tax *taxonomy.Taxonomy, opts ...Option) *Ingester {
	i := &Ingester{
		enc:      enc,
		store:    store,
		taxonomy: tax,
		maxSize:  imaging.DefaultMaxFileSize,
	}
	for _, opt := range opts {
		opt(i)
	}
	i.log = logging.OrDefault(i.log)
	return i
}

// ParseFilename splits "<category>-<sequence>.<ext>" into its parts.
func ParseFilename(name string) (category, sequence string, ok bool) {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	parts := strings.Split(stem, "-")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// Run ingests every image file directly under dir. Per-file failures are
// counted and logged; only an unreadable directory or a cancelled context
// stops the run.
func (i *Ingester) Run(ctx context.Context, dir string) (Stats, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Stats{}, fmt.Errorf("ingest: %w", err)
	}

	var stats Stats
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if e.IsDir() || !imaging.AllowedExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}

		outcome, err := i.File(ctx, filepath.Join(dir, e.Name()))
		switch outcome {
		case OutcomeLoaded:
			stats.Loaded++
		case OutcomeUpdated:
			stats.Updated++
		case OutcomeSkipped:
			stats.Skipped++
		default:
			stats.Failed++
		}
		i.metrics.RecordIngest(outcome)
		if err != nil {
			i.log.Warn("exemplar not ingested", "file", e.Name(), "outcome", outcome, "error", err)
		} else {
			i.log.Debug("exemplar ingested", "file", e.Name(), "outcome", outcome)
		}
	}

	i.log.Info("ingestion complete",
		"dir", dir,
		"loaded", stats.Loaded,
		"updated", stats.Updated,
		"skipped", stats.Skipped,
		"failed", stats.Failed)
	return stats, nil
}

// File ingests a single exemplar image and reports its outcome.
func (i *Ingester) File(ctx context.Context, path string) (string, error) {
	name := filepath.Base(path)
	category, sequence, ok := ParseFilename(name)
	if !ok {
		return OutcomeSkipped, fmt.Errorf("filename %q is not <category>-<sequence>.<ext>", name)
	}
	if ok, reason := imaging.Check(path, i.maxSize); !ok {
		return OutcomeFailed, fmt.Errorf("invalid image: %s", reason)
	}

	img, err := imaging.Load(path)
	if err != nil {
		return OutcomeFailed, err
	}
	vec, err := i.enc.EmbedImage(img)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("%w: %w", model.ErrEmbedding, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return OutcomeFailed, err
	}

	categoryDesc := i.taxonomy.Description(category)
	if categoryDesc == "" {
		categoryDesc = "隐患类型" + category
	}
	c := model.ExemplarCase{
		Filename:            name,
		CategoryID:          category,
		SequenceID:          sequence,
		Embedding:           embedder.Normalize(vec),
		Description:         i.description(category, sequence),
		CategoryDescription: categoryDesc,
		Suggestion:          i.suggestion(category, categoryDesc),
		ImagePath:           path,
		FileSize:            info.Size(),
		FileType:            strings.ToLower(filepath.Ext(name)),
	}

	updated, err := i.store.UpsertCase(ctx, c)
	if err != nil {
		return OutcomeFailed, err
	}
	if updated {
		return OutcomeUpdated, nil
	}
	return OutcomeLoaded, nil
}

func (i *Ingester) description(category, sequence string) string {
	if d, ok := i.descriptions[category+"-"+sequence]; ok && d != "" {
		return d
	}
	return fmt.Sprintf("隐患类型%s的示例图片", category)
}

func (i *Ingester) suggestion(category, categoryDesc string) string {
	if c, ok := i.taxonomy.Get(category); ok && c.Remediation != "" {
		return c.Remediation
	}
	return fmt.Sprintf("针对%s，请立即整改相关安全隐患，确保符合安全规范要求", categoryDesc)
}
