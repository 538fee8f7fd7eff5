package validation

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dusk-indust/stratigraph/internal/strata"
)

// ErrBatchRunning is returned when a batch is started while another runs.
var ErrBatchRunning = errors.New("validation: a batch is already running")

// BatchConfig controls how batches are chunked.
type BatchConfig struct {
	ChunkSize int           `json:"chunkSize" yaml:"chunkSize" toml:"chunk_size" validate:"gte=0"`
	Yield     time.Duration `json:"yield" yaml:"yield" toml:"yield" validate:"gte=0"`
}

func (c BatchConfig) withDefaults() BatchConfig {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 5
	}
	if c.Yield <= 0 {
		c.Yield = 10 * time.Millisecond
	}
	return c
}

type batchGuard struct {
	running atomic.Bool
}

// BatchItem is the outcome for one relation of a batch. Err is set when the
// relation could not be validated at all.
type BatchItem struct {
	RelationID string                  `json:"relationId"`
	Result     strata.ValidationResult `json:"result"`
	Err        string                  `json:"error,omitempty"`
}

// Progress reports a batch's position after each chunk.
type Progress struct {
	Done   int `json:"done"`
	Total  int `json:"total"`
	Failed int `json:"failed"`
}

// ProgressFunc receives progress after each chunk.
type ProgressFunc func(Progress)

// ValidateBatch runs every relation through the proposal pipeline, chunk by
// chunk, yielding between chunks. Items that fail do not stop the batch.
// Cancelling ctx stops it between chunks and returns the items completed so
// far with ctx's error. Only one batch runs at a time.
func (s *Service) ValidateBatch(ctx context.Context, rels []strata.Relation, progress ProgressFunc) ([]BatchItem, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrBatchRunning
	}
	defer s.running.Store(false)

	cfg := s.batch
	// One token per chunk; the first chunk starts immediately.
	limiter := rate.NewLimiter(rate.Every(cfg.Yield), 1)
	items := make([]BatchItem, 0, len(rels))
	p := Progress{Total: len(rels)}

	for start := 0; start < len(rels); start += cfg.ChunkSize {
		if err := limiter.Wait(ctx); err != nil {
			return items, fmt.Errorf("validation: batch stopped after %d of %d: %w", p.Done, p.Total, ctxErr(ctx, err))
		}
		end := min(start+cfg.ChunkSize, len(rels))
		for _, rel := range rels[start:end] {
			item := BatchItem{RelationID: rel.ID}
			res, err := s.ValidateNew(ctx, rel)
			if err != nil {
				item.Err = err.Error()
			} else {
				item.Result = res
			}
			if err != nil || !res.OK {
				p.Failed++
			}
			items = append(items, item)
			p.Done++
			batchItems.Inc()
		}
		if progress != nil {
			progress(p)
		}
	}
	s.logger.Info("batch complete", zap.Int("total", p.Total), zap.Int("failed", p.Failed))
	return items, nil
}

// ctxErr maps a limiter error to ctx's error. The limiter refuses early when
// the next token lies past ctx's deadline, before ctx itself expires.
func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if _, ok := ctx.Deadline(); ok {
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return err
}

// ProgressReporter fans batch progress out through a buffered channel.
type ProgressReporter struct {
	ch chan Progress
}

// NewProgressReporter creates a ProgressReporter with a buffer of 64 events.
func NewProgressReporter() *ProgressReporter {
	return &ProgressReporter{ch: make(chan Progress, 64)}
}

// Emit sends p without blocking; it is dropped when the buffer is full.
func (pr *ProgressReporter) Emit(p Progress) {
	select {
	case pr.ch <- p:
	default:
	}
}

// Subscribe returns the event channel.
func (pr *ProgressReporter) Subscribe() <-chan Progress {
	return pr.ch
}

// Close closes the event channel.
func (pr *ProgressReporter) Close() {
	close(pr.ch)
}

// FormatProgress renders p as a status line.
func FormatProgress(p Progress) string {
	switch {
	case p.Done >= p.Total && p.Failed == 0:
		return fmt.Sprintf("  ✓ %d/%d relations valid", p.Done, p.Total)
	case p.Done >= p.Total:
		return fmt.Sprintf("  ✗ %d/%d relations checked, %d rejected", p.Done, p.Total, p.Failed)
	default:
		return fmt.Sprintf("  ● %d/%d relations checked...", p.Done, p.Total)
	}
}
