package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/RMahshie/arpe/internal/config"
	"github.com/RMahshie/arpe/internal/processing"
	"github.com/RMahshie/arpe/internal/storage"
	"github.com/RMahshie/arpe/pkg/models"
)

const (
	formatCSV  = "csv"
	formatJSON = "json"
)

type extractOptions struct {
	dir     string
	prefix  string
	format  string
	plot    bool
	workers int
}

func newExtractCmd() *cobra.Command {
	opts := &extractOptions{}
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract resonator parameters from a batch of .s2p files",
		Long: `Extract processes every .s2p file of a directory or of an S3 prefix and
writes one summary row per file to stdout. Files that fail keep their row with
a non-ok status; only an unreadable source fails the command.

Examples:
  arpe extract --dir ./sweeps
  arpe extract --prefix run1/ --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runExtract(ctx, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.dir, "dir", "", "Directory of .s2p files")
	cmd.Flags().StringVar(&opts.prefix, "prefix", "", "S3 key prefix (requires S3_BUCKET)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", formatCSV, "Output format: csv or json")
	cmd.Flags().BoolVar(&opts.plot, "plot", false, "Include plot series (json only)")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "Concurrent files (defaults to WORKERS)")
	cmd.MarkFlagsMutuallyExclusive("dir", "prefix")
	cmd.MarkFlagsOneRequired("dir", "prefix")
	return cmd
}

func runExtract(ctx context.Context, opts *extractOptions, out io.Writer) error {
	if opts.format != formatCSV && opts.format != formatJSON {
		return fmt.Errorf("unknown format %q, want csv or json", opts.format)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	files, err := loadFiles(ctx, cfg, opts)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no .s2p files found")
	}

	svcCfg := cfg.Service()
	svcCfg.IncludePlot = opts.plot && opts.format == formatJSON
	if opts.workers > 0 {
		svcCfg.Workers = opts.workers
	}
	batch, err := processing.NewExtractionService(svcCfg).ProcessBatch(ctx, files)
	if batch == nil {
		return err
	}
	if err != nil {
		log.Warn().Err(err).Msg("Batch interrupted, remaining files reported as cancelled")
	}

	if werr := writeBatch(out, batch, opts.format); werr != nil {
		return werr
	}
	return err
}

func loadFiles(ctx context.Context, cfg *config.Config, opts *extractOptions) ([]models.InputFile, error) {
	if opts.dir != "" {
		return storage.LoadDirectory(opts.dir)
	}
	if !cfg.S3Enabled() {
		return nil, errors.New("--prefix requires S3_BUCKET to be set")
	}
	s3Service, err := storage.NewS3Service(ctx, cfg.S3())
	if err != nil {
		return nil, err
	}
	return s3Service.LoadPrefix(ctx, opts.prefix)
}

func writeBatch(w io.Writer, batch *models.Batch, format string) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(batch)
	case formatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(models.SummaryHeader()); err != nil {
			return err
		}
		for _, row := range batch.Summary {
			if err := cw.Write(row.Record()); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	}
	return fmt.Errorf("unknown format %q", format)
}
