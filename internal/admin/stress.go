package admin

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/discord-voice-time/internal/logging"
	"github.com/discord-voice-time/internal/storage"
)

// stressUserCount is how many concurrent increments one stress pass issues.
const stressUserCount = 100

// StressReport summarizes one stress pass.
type StressReport struct {
	Operations int
	Failures   int
	Elapsed    time.Duration
}

// WritesPerSecond returns the observed write throughput.
func (r StressReport) WritesPerSecond() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Operations) / r.Elapsed.Seconds()
}

// RunStressTest fires n concurrent increment-and-upsert operations against
// the store, mirroring what the tracker does on every disconnect, then
// deletes the synthetic rows so the stress users never reach the
// reconciler. Returns an error if any write failed.
func RunStressTest(ctx context.Context, store storage.ActivityStore, n int) (StressReport, error) {
	logging.Infow("starting stress test", "operations", n)

	userIDs := make([]string, n)
	for i := range userIDs {
		userIDs[i] = fmt.Sprintf("stress_user_%d", i)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures int
	)

	start := time.Now()
	for _, id := range userIDs {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			delta := int64(rand.Intn(100) + 1)
			if _, err := store.IncrementTotal(ctx, userID, delta); err != nil {
				mu.Lock()
				failures++
				mu.Unlock()
				logging.Errorw("stress write failed", "user.id", userID, "error", err)
			}
		}(id)
	}
	wg.Wait()
	elapsed := time.Since(start)

	// Clean up test data to avoid polluting real totals.
	if err := store.DeleteTotals(ctx, userIDs...); err != nil {
		logging.Warnw("stress cleanup failed", "error", err)
	}

	report := StressReport{Operations: n, Failures: failures, Elapsed: elapsed}
	logging.Infow("stress test finished",
		"operations", report.Operations, "failures", report.Failures,
		"elapsed_s", report.Elapsed.Seconds(), "writes_per_s", report.WritesPerSecond())

	if failures > 0 {
		return report, fmt.Errorf("%d of %d stress writes failed", failures, n)
	}
	return report, nil
}
