package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dusk-indust/stratigraph/internal/strata"
)

// Compile-time check.
var _ Engine = (*FallbackEngine)(nil)

// FallbackEngine prefers primary and answers from secondary whenever primary
// is unreachable, slow or failing. The first degradation is logged once; later
// ones only count in metrics.
type FallbackEngine struct {
	primary   Engine
	secondary Engine
	timeout   time.Duration
	logger    *zap.Logger

	down atomic.Bool
	once sync.Once
}

// NewFallbackEngine wraps primary with secondary. timeout bounds each primary
// call; zero disables the bound.
func NewFallbackEngine(primary, secondary Engine, timeout time.Duration, logger *zap.Logger) *FallbackEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackEngine{primary: primary, secondary: secondary, timeout: timeout, logger: logger}
}

func (f *FallbackEngine) Name() string {
	if f.down.Load() {
		return f.secondary.Name()
	}
	return f.primary.Name()
}

// Init loads both engines. Only a secondary failure is returned; a primary
// failure takes primary out of rotation.
func (f *FallbackEngine) Init(ctx context.Context, nodeIDs []string, relations []strata.Relation) error {
	if err := f.secondary.Init(ctx, nodeIDs, relations); err != nil {
		return fmt.Errorf("init %s engine: %w", f.secondary.Name(), err)
	}
	if f.down.Load() {
		return nil
	}
	pctx, cancel := f.bound(ctx)
	defer cancel()
	if err := f.primary.Init(pctx, nodeIDs, relations); err != nil {
		f.down.Store(true)
		f.degrade(err)
	}
	return nil
}

// ValidateRelation asks primary first and secondary on any primary error.
// Cancellation of ctx itself is returned as is.
func (f *FallbackEngine) ValidateRelation(ctx context.Context, rel strata.Relation) (Verdict, error) {
	if !f.down.Load() {
		pctx, cancel := f.bound(ctx)
		v, err := f.primary.ValidateRelation(pctx, rel)
		cancel()
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil {
			return Verdict{}, ctx.Err()
		}
		if errors.Is(err, ErrUnavailable) {
			f.down.Store(true)
		}
		f.degrade(err)
	}
	return f.secondary.ValidateRelation(ctx, rel)
}

func (f *FallbackEngine) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, f.timeout)
}

func (f *FallbackEngine) degrade(err error) {
	engineFallbacks.Inc()
	f.once.Do(func() {
		f.logger.Warn("engine degraded, answering in process",
			zap.String("primary", f.primary.Name()),
			zap.String("secondary", f.secondary.Name()),
			zap.Error(err),
		)
	})
}

// Close closes both engines.
func (f *FallbackEngine) Close() error {
	return errors.Join(f.primary.Close(), f.secondary.Close())
}
