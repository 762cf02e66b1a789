// Package fanout tells other server instances that a division changed, over
// redis pub/sub, so they drop their cached snapshot and push right away.
package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"branchqueue/internal/queue"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultChannel = "branchqueue:division-changed"

type message struct {
	Origin     string           `json:"origin"`
	DivisionID uint             `json:"division_id"`
	Kind       queue.ChangeKind `json:"kind"`
}

// RemoteChange is called for changes made by another instance.
type RemoteChange func(ctx context.Context, divisionID uint)

type Fanout struct {
	rdb     *redis.Client
	channel string
	origin  string
	log     *zap.Logger
}

func New(rdb *redis.Client, channel string, log *zap.Logger) *Fanout {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Fanout{rdb: rdb, channel: channel, origin: uuid.NewString(), log: log}
}

// OnQueueChange publishes the changed division.
func (f *Fanout) OnQueueChange(ctx context.Context, change queue.Change) {
	raw, err := json.Marshal(message{Origin: f.origin, DivisionID: change.DivisionID, Kind: change.Kind})
	if err != nil {
		f.log.Error("encode fanout message", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := f.rdb.Publish(ctx, f.channel, raw).Err(); err != nil {
		f.log.Warn("publish division change", zap.Uint("division_id", change.DivisionID), zap.Error(err))
	}
}

// Run delivers changes of other instances to fn until ctx is cancelled.
func (f *Fanout) Run(ctx context.Context, fn RemoteChange) error {
	sub := f.rdb.Subscribe(ctx, f.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", f.channel, err)
	}
	f.log.Info("division change fanout started", zap.String("channel", f.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var m message
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				f.log.Warn("ignoring malformed fanout message", zap.Error(err))
				continue
			}
			if m.Origin == f.origin {
				continue
			}
			fn(ctx, m.DivisionID)
		}
	}
}
