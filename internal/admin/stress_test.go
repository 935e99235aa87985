package admin

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunStressTestReportsAllOperations(t *testing.T) {
	store := newMemStore()

	report, err := RunStressTest(context.Background(), store, 25)
	require.NoError(t, err)

	assert.Equal(t, 25, report.Operations)
	assert.Zero(t, report.Failures)
	assert.Greater(t, report.WritesPerSecond(), 0.0)

	rows, err := store.ListTotals(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows, "synthetic stress rows must be cleaned up")
}

func TestRunStressTestSurfacesWriteFailures(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("store down")

	report, err := RunStressTest(context.Background(), store, 10)
	assert.Error(t, err)
	assert.Equal(t, 10, report.Failures)
}
