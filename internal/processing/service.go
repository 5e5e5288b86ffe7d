package processing

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/RMahshie/arpe/internal/metrics"
	"github.com/RMahshie/arpe/internal/resonator"
	"github.com/RMahshie/arpe/internal/touchstone"
	"github.com/RMahshie/arpe/pkg/models"
)

// ErrEmptyBatch is returned when a batch has no files.
var ErrEmptyBatch = errors.New("batch contains no files")

// DefaultWorkers is the pool size used when none is configured.
const DefaultWorkers = 4

// ExtractionService runs the extraction pipeline over batches of files
type ExtractionService interface {
	// ProcessBatch extracts every file and returns the results in input
	// order. When ctx is cancelled the files not yet started are reported as
	// cancelled and the batch is returned together with ctx.Err().
	ProcessBatch(ctx context.Context, files []models.InputFile) (*models.Batch, error)
	// ProcessFile extracts a single file, or reports it cancelled when ctx
	// is already done.
	ProcessFile(ctx context.Context, file models.InputFile) *models.ResonatorResult
}

// ServiceConfig holds the tunables of the extraction service
type ServiceConfig struct {
	Workers        int
	Resonator      resonator.Options
	IncludePlot    bool
	FitCurvePoints int
}

type extractionService struct {
	cfg ServiceConfig
	now func() time.Time
}

// NewExtractionService creates a new extraction service instance
func NewExtractionService(cfg ServiceConfig) ExtractionService {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.FitCurvePoints < 2 {
		cfg.FitCurvePoints = DefaultFitCurvePoints
	}
	return &extractionService{cfg: cfg, now: time.Now}
}

func (s *extractionService) ProcessBatch(ctx context.Context, files []models.InputFile) (*models.Batch, error) {
	if len(files) == 0 {
		return nil, ErrEmptyBatch
	}
	batchID := uuid.New()
	started := s.now()
	log.Info().Str("batchID", batchID.String()).Int("files", len(files)).Int("workers", s.cfg.Workers).Msg("Processing batch")

	results := make([]*models.ResonatorResult, len(files))
	g := new(errgroup.Group)
	g.SetLimit(s.cfg.Workers)
	for i, f := range files {
		// Files are only skipped between fits, never interrupted.
		if err := ctx.Err(); err != nil {
			results[i] = Cancelled(f.Name, err)
			continue
		}
		g.Go(func() error {
			results[i] = s.ProcessFile(ctx, f)
			return nil
		})
	}
	_ = g.Wait()

	batch := models.NewBatch(batchID, started, results)
	counts := batch.Counts()
	outcome := "completed"
	err := ctx.Err()
	if err != nil {
		outcome = "cancelled"
	}
	metrics.RecordBatch(outcome, len(files))
	log.Info().
		Str("batchID", batchID.String()).
		Int("ok", counts[models.StatusOK]).
		Int("lowConfidence", counts[models.StatusLowConfidence]).
		Int("bestEffort", counts[models.StatusBestEffort]).
		Int("parseErrors", counts[models.StatusParseError]).
		Int("cancelled", counts[models.StatusCancelled]).
		Dur("duration", s.now().Sub(started)).
		Msg("Batch finished")
	return batch, err
}

func (s *extractionService) ProcessFile(ctx context.Context, file models.InputFile) *models.ResonatorResult {
	if err := ctx.Err(); err != nil {
		return Cancelled(file.Name, err)
	}
	start := s.now()
	metrics.FileStarted()

	var result *models.ResonatorResult
	if file.Err != nil {
		log.Warn().Err(file.Err).Str("file", file.Name).Msg("Failed to read touchstone file")
		result = ParseFailure(file.Name, file.Err)
	} else if net, err := touchstone.Parse(file.Name, bytes.NewReader(file.Content)); err != nil {
		log.Warn().Err(err).Str("file", file.Name).Msg("Failed to parse touchstone file")
		result = ParseFailure(file.Name, err)
	} else {
		res := resonator.Extract(net.S11, net.S21, net.S22, s.cfg.Resonator)
		result = Aggregate(file.Name, net, res, AggregateOptions{
			IncludePlot:    s.cfg.IncludePlot,
			FitCurvePoints: s.cfg.FitCurvePoints,
		})
	}

	elapsed := s.now().Sub(start)
	metrics.RecordFile(string(result.Status), elapsed)
	log.Info().
		Str("file", file.Name).
		Str("status", string(result.Status)).
		Int("errors", len(result.Errors)).
		Dur("duration", elapsed).
		Msg("File processed")
	return result
}
