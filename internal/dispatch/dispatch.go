// Package dispatch runs processing in the background so trigger surfaces can
// acknowledge immediately.
package dispatch

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"github.com/RobinCoderZhao/newsdigest/internal/processor"
)

// Runner is the unit of background work; satisfied by *processor.Processor.
type Runner interface {
	Run(ctx context.Context) (processor.Stats, error)
}

// Ack is returned to the caller the moment work is accepted.
type Ack struct {
	ProcessID string `json:"process_id"`
}

// AsyncDispatcher starts processing runs detached from the caller's request.
// Outcomes are logged, not returned; the caller only gets the process id to
// correlate log lines with.
type AsyncDispatcher struct {
	runner Runner
	budget time.Duration
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewAsyncDispatcher creates a dispatcher whose background runs are bounded
// by budget.
func NewAsyncDispatcher(runner Runner, budget time.Duration, logger *slog.Logger) *AsyncDispatcher {
	if budget <= 0 {
		budget = 10 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AsyncDispatcher{runner: runner, budget: budget, logger: logger}
}

// Dispatch accepts a processing run and returns immediately. The run gets a
// fresh context detached from the caller's, so the response cycle ending does
// not cancel the work.
func (d *AsyncDispatcher) Dispatch() Ack {
	ack := Ack{ProcessID: newProcessID()}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.budget)
		defer cancel()

		d.logger.Info("async processing started", "process_id", ack.ProcessID)
		stats, err := d.runner.Run(ctx)
		if err != nil {
			d.logger.Error("async processing failed",
				"process_id", ack.ProcessID, "stats", stats, "error", err)
			return
		}
		d.logger.Info("async processing finished",
			"process_id", ack.ProcessID,
			"processed", stats.Processed, "notified", stats.Notified, "failed", stats.Failed)
	}()

	return ack
}

// Wait blocks until all dispatched runs have finished. Used on shutdown and
// in tests.
func (d *AsyncDispatcher) Wait() {
	d.wg.Wait()
}

func newProcessID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return hex.EncodeToString([]byte(time.Now().Format("20060102150405.000")))
	}
	return hex.EncodeToString(b[:])
}
