package validation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/stratigraph/internal/strata"
)

func TestValidateBatch(t *testing.T) {
	s := newSite(t)
	s.us("", "A", "B", "C")
	s.load(s.before("r1", "A", "B"))
	svc := s.service(WithBatch(BatchConfig{ChunkSize: 5, Yield: time.Millisecond}))

	var rels []strata.Relation
	for i := 0; i < 6; i++ {
		rels = append(rels, s.before(fmt.Sprintf("ok%d", i), "B", "C"))
	}
	rels = append(rels, s.before("bad", "B", "A"), strata.Relation{ID: "broken", AnteriorUsID: "A"})

	var seen []Progress
	items, err := svc.ValidateBatch(context.Background(), rels, func(p Progress) { seen = append(seen, p) })
	require.NoError(t, err)
	require.Len(t, items, 8)

	for _, it := range items[:6] {
		assert.True(t, it.Result.OK, it.RelationID)
	}
	assert.Equal(t, strata.ParadoxCycle, items[6].Result.ParadoxType)
	assert.NotEmpty(t, items[7].Err)

	require.Len(t, seen, 2)
	assert.Equal(t, Progress{Done: 5, Total: 8}, seen[0])
	assert.Equal(t, Progress{Done: 8, Total: 8, Failed: 2}, seen[1])
}

func TestValidateBatch_OneAtATime(t *testing.T) {
	svc := newSite(t).service()
	svc.running.Store(true)
	_, err := svc.ValidateBatch(context.Background(), nil, nil)
	require.ErrorIs(t, err, ErrBatchRunning)

	svc.running.Store(false)
	items, err := svc.ValidateBatch(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestValidateBatch_Cancelled(t *testing.T) {
	s := newSite(t)
	s.us("", "A", "B")
	svc := s.service(WithBatch(BatchConfig{ChunkSize: 1, Yield: time.Hour}))

	ctx, cancel := context.WithCancel(context.Background())
	rels := []strata.Relation{s.before("r1", "A", "B"), s.before("r2", "A", "B")}
	items, err := svc.ValidateBatch(ctx, rels, func(Progress) { cancel() })
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, items, 1, "the first chunk completes before cancellation is seen")

	// The guard is released afterwards.
	_, err = svc.ValidateBatch(context.Background(), nil, nil)
	require.NoError(t, err)
}

func TestValidateBatch_DeadlineBeforeNextChunk(t *testing.T) {
	s := newSite(t)
	s.us("", "A", "B")
	svc := s.service(WithBatch(BatchConfig{ChunkSize: 1, Yield: time.Hour}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	rels := []strata.Relation{s.before("r1", "A", "B"), s.before("r2", "A", "B")}
	items, err := svc.ValidateBatch(ctx, rels, nil)
	require.ErrorIs(t, err, context.DeadlineExceeded, "the limiter refuses before ctx expires")
	assert.Len(t, items, 1)
}

func TestFormatProgress(t *testing.T) {
	assert.Contains(t, FormatProgress(Progress{Done: 2, Total: 5}), "2/5 relations checked...")
	assert.Contains(t, FormatProgress(Progress{Done: 5, Total: 5}), "5/5 relations valid")
	assert.Contains(t, FormatProgress(Progress{Done: 5, Total: 5, Failed: 1}), "1 rejected")
}

func TestProgressReporter(t *testing.T) {
	pr := NewProgressReporter()
	pr.Emit(Progress{Done: 1, Total: 2})
	pr.Close()

	var got []Progress
	for p := range pr.Subscribe() {
		got = append(got, p)
	}
	assert.Equal(t, []Progress{{Done: 1, Total: 2}}, got)
}
