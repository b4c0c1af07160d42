package audit

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-cms/internal/config"
	"github.com/stemsi/exstem-cms/internal/model"
)

const feedBuffer = 64

// Feed relays events published by RedisStore to live subscribers.
type Feed struct {
	rdb     *redis.Client
	channel string
	log     zerolog.Logger
}

func NewFeed(rdb *redis.Client, log zerolog.Logger) *Feed {
	return &Feed{
		rdb:     rdb,
		channel: config.CacheKey.SecurityFeedChannel(),
		log:     log.With().Str("component", "security_feed").Logger(),
	}
}

// Subscribe streams decoded events until ctx ends or the returned close
// function is called. The channel is closed when the subscription ends.
func (f *Feed) Subscribe(ctx context.Context) (<-chan model.SecurityEvent, func() error) {
	pubsub := f.rdb.Subscribe(ctx, f.channel)
	out := make(chan model.SecurityEvent, feedBuffer)

	go func() {
		defer close(out)
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var e model.SecurityEvent
				if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
					f.log.Warn().Err(err).Msg("Skipping malformed security event")
					continue
				}
				select {
				case out <- e:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, pubsub.Close
}
