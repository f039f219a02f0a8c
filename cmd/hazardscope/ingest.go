package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/crimson-sun/hazardscope/internal/app"
)

func ingestCommand(g *globals) *cobra.Command {
	var descriptions string

	cmd := &cobra.Command{
		Use:   "ingest [image-dir]",
		Short: "Load exemplar images into the case library",
		Long: "Embed every <category>-<sequence>.<ext> image in the directory (default data.image_dir)\n" +
			"and upsert it into the case library by filename.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := g.cfg
			dir := cfg.Data.ImageDir
			if len(args) == 1 {
				dir = args[0]
			}
			if cmd.Flags().Changed("descriptions") {
				cfg.Data.DescriptionFile = descriptions
			} else if _, err := os.Stat(cfg.Data.DescriptionFile); errors.Is(err, fs.ErrNotExist) {
				slog.Warn("description file not found, using default descriptions", "path", cfg.Data.DescriptionFile)
				cfg.Data.DescriptionFile = ""
			}

			a, err := app.Open(cmd.Context(), cfg, slog.Default())
			if err != nil {
				return err
			}
			defer a.Close()

			ing, err := a.Ingester(cfg.Data.DescriptionFile)
			if err != nil {
				return err
			}
			stats, err := ing.Run(cmd.Context(), dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded=%d updated=%d skipped=%d failed=%d\n",
				stats.Loaded, stats.Updated, stats.Skipped, stats.Failed)
			return nil
		},
	}
	cmd.Flags().StringVar(&descriptions, "descriptions", "", "category-sequence:description file (overrides data.description_file)")
	return cmd
}
