// Package jobs holds the scheduled background work of the service.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// EmptyReservationSweeper deletes past reservations that hold no users.
type EmptyReservationSweeper interface {
	SweepEmpty(ctx context.Context, batch int) (int, error)
}

const (
	sweepBatch   = 100
	sweepTimeout = 5 * time.Minute
)

// Sweeper removes empty reservations whose date has passed.  Reservations
// emptied by RemoveUsers stay as placeholders until their day is over.
type Sweeper struct {
	target EmptyReservationSweeper
	logger *zap.Logger
	batch  int
}

func NewSweeper(target EmptyReservationSweeper, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{target: target, logger: logger, batch: sweepBatch}
}

// Run sweeps batch after batch until a batch comes back short, and returns
// the number of reservations deleted.
func (s *Sweeper) Run(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := s.target.SweepEmpty(ctx, s.batch)
		total += n
		if err != nil {
			s.logger.Error("empty reservation sweep failed", zap.Int("deleted", total), zap.Error(err))
			return total, err
		}
		if n < s.batch || ctx.Err() != nil {
			break
		}
	}
	s.logger.Info("empty reservation sweep done", zap.Int("deleted", total))
	return total, nil
}

// Schedule registers the sweeper on a new cron scheduler.  Overlapping
// runs are skipped and panics are recovered.  The caller starts and
// stops the returned scheduler.
func Schedule(spec string, s *Sweeper) (*cron.Cron, error) {
	l := cronLogger{s.logger.Sugar()}
	c := cron.New(cron.WithLogger(l), cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)))
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		_, _ = s.Run(ctx)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// cronLogger routes cron's own messages to zap.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
