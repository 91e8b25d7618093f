package wizard

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/clmpro/clmsetup/internal/logging"
)

// DefaultPersistTimeout bounds a single step write.
const DefaultPersistTimeout = 5 * time.Second

// Persister stores the user's current step. Implemented by the account
// authenticators.
type Persister interface {
	PersistStep(ctx context.Context, userID int64, step int) error
}

// PersisterFunc adapts a function to Persister.
type PersisterFunc func(ctx context.Context, userID int64, step int) error

// PersistStep implements Persister.
func (f PersisterFunc) PersistStep(ctx context.Context, userID int64, step int) error {
	return f(ctx, userID, step)
}

// stepWriter performs fire-and-forget step writes. A write that loses the
// race to a newer one is dropped so the stored step never moves backwards
// in time.
type stepWriter struct {
	p       Persister
	userID  int64
	timeout time.Duration
	log     *zap.Logger // nil means the global logger

	seq     uint64 // owned by the UI goroutine
	mu      sync.Mutex
	written uint64
	wg      sync.WaitGroup
}

func newStepWriter(p Persister, userID int64, timeout time.Duration) *stepWriter {
	return &stepWriter{p: p, userID: userID, timeout: timeout}
}

func (w *stepWriter) write(step int) {
	w.seq++
	seq := w.seq

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		w.mu.Lock()
		defer w.mu.Unlock()
		if seq < w.written {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		defer cancel()

		if err := w.p.PersistStep(ctx, w.userID, step); err != nil {
			log := w.log
			if log == nil {
				log = logging.GetLogger()
			}
			log.Warn("Failed to persist wizard step",
				zap.Int64("user_id", w.userID),
				zap.Int("step", step),
				zap.Error(err),
			)
			return
		}
		w.written = seq
	}()
}

func (w *stepWriter) wait() {
	w.wg.Wait()
}
