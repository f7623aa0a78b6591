package hub

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hordelabs/horde/internal/event"
)

const routerChannel = "horde:delivery"

// Router relays delivery events between instances over redis pub/sub so a
// push reaches subscribers connected to a different process. The relay is
// best-effort, exactly like the push path it feeds.
type Router struct {
	client     *redis.Client
	instanceID string
	log        *zap.Logger
}

func NewRouter(client *redis.Client, instanceID string, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{client: client, instanceID: instanceID, log: log}
}

// Publish broadcasts the event to peer instances, tagged with the origin so
// the publishing instance can skip its own copy.
func (r *Router) Publish(ctx context.Context, env *event.Envelope) error {
	tagged := *env
	tagged.Origin = r.instanceID
	payload, err := tagged.Marshal()
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, routerChannel, payload).Err()
}

// Subscribe consumes peer events and hands them to dispatch, skipping events
// this instance published itself.
func (r *Router) Subscribe(ctx context.Context, dispatch func(context.Context, *event.Envelope)) {
	pubsub := r.client.Subscribe(ctx, routerChannel)

	go func() {
		defer pubsub.Close()
		r.log.Info("router subscribed", zap.String("channel", routerChannel))

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				r.log.Info("router subscription stopping: context canceled")
				return
			case msg, ok := <-ch:
				if !ok {
					r.log.Warn("router pubsub channel closed")
					return
				}
				env, err := event.Unmarshal([]byte(msg.Payload))
				if err != nil {
					r.log.Error("router received malformed event", zap.Error(err))
					continue
				}
				if env.Origin == r.instanceID {
					continue
				}
				dispatch(ctx, env)
			}
		}
	}()
}
