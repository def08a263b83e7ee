package ws

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
)

// SubscribeRedisLotEvents fans-out messages coming from any instance
// to the in-process Hub.
func SubscribeRedisLotEvents(ctx context.Context, rdb *redis.Client, hub *Hub) {
	pubsub := rdb.PSubscribe(ctx, "lot:*:events")
	defer pubsub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-pubsub.Channel():
			if !ok {
				return
			}
			// channel format: "lot:<lotID>:events"
			parts := strings.Split(m.Channel, ":")
			if len(parts) != 3 {
				continue
			}
			hub.Broadcast(parts[1], []byte(m.Payload))
		}
	}
}
