package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountBook_VarianceAndApproval(t *testing.T) {
	w := newTestWarehouse(t)
	seed(t, w, "X", "A1", 40)

	count, err := w.Counts.Schedule("STO-A", []string{"A1"})
	require.NoError(t, err)
	assert.Equal(t, CountStatusScheduled, count.Status)

	_, err = w.Counts.Submit(count.ID, "A1", "", 37)
	require.ErrorIs(t, err, ErrInvalidTransition, "count not started")

	count, err = w.Counts.Start(count.ID)
	require.NoError(t, err)
	require.Len(t, count.TaskIDs, 1)

	variance, err := w.Counts.Submit(count.ID, "A1", "", 37)
	require.NoError(t, err)
	assert.Equal(t, "X", variance.SKU, "single sku in bin is inferred")
	assert.Equal(t, 40, variance.Expected)
	assert.Equal(t, -3, variance.Delta)
	assert.InDelta(t, 7.5, variance.VarianceValue, 1e-9)
	assert.Equal(t, 40, onHand(t, w, "X", "A1"), "submission does not touch the ledger")

	count, err = w.Counts.Get(count.ID)
	require.NoError(t, err)
	assert.Equal(t, CountStatusPendingReview, count.Status)

	count, err = w.Counts.Approve(count.ID)
	require.NoError(t, err)
	assert.Equal(t, CountStatusCompleted, count.Status)
	assert.Equal(t, 37, onHand(t, w, "X", "A1"))
	assert.Equal(t, 37, zoneUsed(t, w, "STO-A"))

	task, err := w.Scheduler.Task(count.TaskIDs[0])
	require.NoError(t, err)
	assert.Equal(t, TaskStatusCompleted, task.Status)

	_, err = w.Counts.Approve(count.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	journal := w.Processor.Journal("X")
	last := journal[len(journal)-1]
	assert.Equal(t, MovementAdjustment, last.Type)
	assert.Equal(t, count.ID+":A1:X", last.ReferenceID)
}

func TestCountBook_WholeZoneAccuracy(t *testing.T) {
	w := newTestWarehouse(t)
	seed(t, w, "X", "A1", 40)

	count, err := w.Counts.Schedule("STO-A", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "A2", "A3"}, count.Bins)
	_, err = w.Counts.Start(count.ID)
	require.NoError(t, err)

	_, err = w.Counts.Submit(count.ID, "A2", "", 0)
	require.ErrorIs(t, err, ErrValidation, "empty bin needs an explicit sku")
	_, err = w.Counts.Submit(count.ID, "B1", "X", 1)
	require.ErrorIs(t, err, ErrValidation, "bin outside the count")

	_, err = w.Counts.Submit(count.ID, "A1", "X", 40)
	require.NoError(t, err)
	_, err = w.Counts.Submit(count.ID, "A2", "Y", 0)
	require.NoError(t, err)

	count, err = w.Counts.Get(count.ID)
	require.NoError(t, err)
	assert.Equal(t, CountStatusInProgress, count.Status)
	assert.Equal(t, 2, count.CountedBins)

	variance, err := w.Counts.Submit(count.ID, "A3", "Y", 2)
	require.NoError(t, err)
	assert.Equal(t, 0, variance.Expected)
	assert.InDelta(t, 20.0, variance.VarianceValue, 1e-9, "unit cost falls back to the catalog")

	// a recount during review replaces the earlier figure
	_, err = w.Counts.Submit(count.ID, "A3", "Y", 1)
	require.NoError(t, err)

	count, err = w.Counts.Get(count.ID)
	require.NoError(t, err)
	assert.Equal(t, CountStatusPendingReview, count.Status)
	assert.Equal(t, 3, count.CountedItems)
	assert.Equal(t, 1, count.VarianceItems)
	assert.InDelta(t, 10.0, count.VarianceValue, 1e-9)
	assert.InDelta(t, 2.0/3.0, count.Accuracy(), 1e-9)

	_, err = w.Counts.Approve(count.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, onHand(t, w, "Y", "A3"))
	assert.Equal(t, 40, onHand(t, w, "X", "A1"))
	assertInvariants(t, w)
}

func TestCountBook_ScheduleValidation(t *testing.T) {
	w := newTestWarehouse(t)

	_, err := w.Counts.Schedule("NOPE", nil)
	assert.ErrorIs(t, err, ErrZoneNotFound)

	_, err = w.Counts.Schedule("STO-A", []string{"B1"})
	assert.ErrorIs(t, err, ErrValidation)

	count, err := w.Counts.Schedule("STO-A", []string{"A2", "A1", "A2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "A2"}, count.Bins)
	assert.Equal(t, 2, count.TotalBins)

	assert.Zero(t, CycleCount{}.Accuracy())
}
