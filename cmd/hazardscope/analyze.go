package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/crimson-sun/hazardscope/internal/app"
	"github.com/crimson-sun/hazardscope/internal/config"
	"github.com/crimson-sun/hazardscope/internal/model"
	"github.com/crimson-sun/hazardscope/internal/output"
	"github.com/crimson-sun/hazardscope/internal/output/async"
	"github.com/crimson-sun/hazardscope/internal/output/file"
	"github.com/crimson-sun/hazardscope/internal/output/multi"
	"github.com/crimson-sun/hazardscope/internal/output/stdout"
	"github.com/crimson-sun/hazardscope/internal/output/webhook"
	"github.com/crimson-sun/hazardscope/internal/pipeline"
)

type analyzeFlags struct {
	backend     string
	outputs     []string
	filePath    string
	webhookURL  string
	verbosity   string
	pretty      bool
	concurrency int
}

func analyzeCommand(g *globals) *cobra.Command {
	f := &analyzeFlags{}

	cmd := &cobra.Command{
		Use:   "analyze <file|dir>...",
		Short: "Analyze images and write one JSON record per image",
		Long: "Analyze the given image files, or every .png/.jpg/.jpeg file under the given\n" +
			"directories, and write the results to stdout, an NDJSON file or a webhook.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !model.IsSupportedBackend(f.backend) {
				return fmt.Errorf("%w: %q", model.ErrUnsupportedBackend, f.backend)
			}
			cfg := f.apply(cmd, g.cfg)

			out, err := buildOutput(cfg.Output, f.outputs)
			if err != nil {
				return err
			}

			a, err := app.Open(cmd.Context(), cfg, slog.Default())
			if err != nil {
				out.Close()
				return err
			}
			defer a.Close()

			p := pipeline.New(a.Engine, out,
				pipeline.WithConcurrency(cfg.Output.Concurrency),
				pipeline.WithLogger(slog.Default().With("component", "pipeline")),
			)
			sum, runErr := p.Run(cmd.Context(), args, f.backend)
			if err := p.Close(); err != nil {
				slog.Warn("closing outputs", "error", err)
			}
			if runErr != nil {
				return runErr
			}
			if sum.Analyzed == 0 && sum.Failed > 0 {
				return fmt.Errorf("all %d images failed", sum.Failed)
			}
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.backend, "model", "m", model.DefaultBackend, "Generative backend: "+strings.Join(model.Backends, ", "))
	fl.StringSliceVarP(&f.outputs, "output", "o", nil, "Destinations: stdout, file, webhook (overrides output.format)")
	fl.StringVar(&f.filePath, "file", "", "NDJSON report path for the file output")
	fl.StringVar(&f.webhookURL, "webhook", "", "URL for the webhook output")
	fl.StringVar(&f.verbosity, "verbosity", "", "Record detail: minimal, standard, full")
	fl.BoolVar(&f.pretty, "pretty", false, "Indent stdout JSON")
	fl.IntVarP(&f.concurrency, "concurrency", "j", 0, "Images analyzed in parallel")
	return cmd
}

// apply overlays explicitly set flags on the loaded configuration.
func (f *analyzeFlags) apply(cmd *cobra.Command, cfg config.Config) config.Config {
	fl := cmd.Flags()
	if fl.Changed("file") {
		cfg.Output.FilePath = f.filePath
	}
	if fl.Changed("webhook") {
		cfg.Output.WebhookURL = f.webhookURL
	}
	if fl.Changed("verbosity") {
		cfg.Output.Verbosity = f.verbosity
	}
	if fl.Changed("pretty") {
		cfg.Output.Pretty = f.pretty
	}
	if fl.Changed("concurrency") {
		cfg.Output.Concurrency = f.concurrency
	}
	return cfg
}

// buildOutput creates the requested destinations. The webhook runs behind
// an async buffer so slow endpoints do not stall analysis.
func buildOutput(cfg config.OutputConfig, names []string) (output.Output, error) {
	if len(names) == 0 {
		names = strings.Split(cfg.Format, ",")
	}
	verbosity, err := output.ParseVerbosity(cfg.Verbosity)
	if err != nil {
		return nil, err
	}

	var outs []output.Output
	fail := func(err error) (output.Output, error) {
		multi.New(outs...).Close()
		return nil, err
	}
	for _, name := range names {
		switch strings.TrimSpace(name) {
		case "stdout", "":
			outs = append(outs, stdout.New(verbosity, cfg.Pretty))
		case "file":
			var opts []file.Option
			if cfg.FileMaxSize > 0 {
				opts = append(opts, file.WithMaxSize(cfg.FileMaxSize))
			}
			fo, err := file.New(cfg.FilePath, verbosity, opts...)
			if err != nil {
				return fail(err)
			}
			outs = append(outs, fo)
		case "webhook":
			if cfg.WebhookURL == "" {
				return fail(fmt.Errorf("webhook output requires output.webhook_url or --webhook"))
			}
			wh := webhook.New(cfg.WebhookURL, webhook.WithVerbosity(verbosity))
			outs = append(outs, async.New(wh, async.WithDropOnFull()))
		default:
			return fail(fmt.Errorf("unknown output %q", name))
		}
	}
	if len(outs) == 1 {
		return outs[0], nil
	}
	return multi.New(outs...), nil
}
