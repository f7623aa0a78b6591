// Package outbox dispatches committed delivery events to the hub. Writing the
// event in the same transaction as the message keeps append-and-notify one
// logical unit; dispatching after commit keeps the hub off the append path.
package outbox

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hordelabs/horde/internal/event"
	"github.com/hordelabs/horde/internal/repository"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, env *event.Envelope)
}

type Publisher interface {
	Publish(ctx context.Context, env *event.Envelope) error
}

type Worker struct {
	Repo      repository.Repository
	Hub       Dispatcher
	Router    Publisher // optional cross-instance relay
	BatchSize int
	PollDelay time.Duration
	Log       *zap.Logger
}

func (w *Worker) Start(ctx context.Context) {
	log := w.logger()
	log.Info("outbox worker started")

	for {
		select {
		case <-ctx.Done():
			log.Info("outbox worker stopping")
			return
		default:
			n, err := w.processBatch(ctx)
			if err != nil {
				log.Error("outbox batch failed", zap.Error(err))
				w.sleep(ctx, time.Second)
				continue
			}
			if n == 0 {
				w.sleep(ctx, w.PollDelay)
			}
		}
	}
}

// processBatch dispatches one batch of pending events. A crash between
// dispatch and mark re-dispatches the batch on restart; duplicate pushes are
// harmless because clients re-fetch authoritative state on every event.
func (w *Worker) processBatch(ctx context.Context) (int, error) {
	events, err := w.Repo.FetchPendingOutbox(ctx, w.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	log := w.logger()
	ids := make([]int64, 0, len(events))

	for _, e := range events {
		env, err := event.Unmarshal(e.Payload)
		if err != nil {
			log.Error("skipping malformed outbox event",
				zap.Int64("id", e.ID),
				zap.Error(err),
			)
			ids = append(ids, e.ID)
			continue
		}

		w.Hub.Dispatch(ctx, env)
		if w.Router != nil {
			if err := w.Router.Publish(ctx, env); err != nil {
				log.Warn("cross-instance relay failed",
					zap.String("conversation_id", env.ConversationID),
					zap.Error(err),
				)
			}
		}
		ids = append(ids, e.ID)
	}

	if err := w.Repo.MarkOutboxProcessed(ctx, ids); err != nil {
		return 0, err
	}
	return len(ids), nil
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (w *Worker) logger() *zap.Logger {
	if w.Log == nil {
		return zap.NewNop()
	}
	return w.Log
}
