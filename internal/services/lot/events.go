package lot

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	EventBidAccepted = "lots/bid_accepted"
	EventLotClosed   = "lots/closed"
)

type BidAcceptedEvent struct {
	LotID    string    `json:"lotId"`
	BidderID string    `json:"bidderId"`
	Amount   int64     `json:"amount"`
	EndTime  time.Time `json:"endTime"`
}

type LotClosedEvent struct {
	LotID      string `json:"lotId"`
	FinalPrice int64  `json:"finalPrice"`
}

// EventPublisher fans lot events out to live subscribers. Publishing is
// best-effort and never influences the triggering operation.
type EventPublisher interface {
	Publish(ctx context.Context, lotID, event string, body any)
}

type redisPublisher struct {
	rdc *redis.Client
}

func NewRedisPublisher(rdc *redis.Client) EventPublisher {
	return &redisPublisher{rdc: rdc}
}

// Publish sends an envelope to "lot:<id>:events"; the ws fan-out pattern
// subscription picks it up on every instance.
func (p *redisPublisher) Publish(ctx context.Context, lotID, event string, body any) {
	payload, err := json.Marshal(map[string]any{
		"event": event,
		"body":  body,
	})
	if err != nil {
		zap.L().Warn("event_marshal", zap.String("event", event), zap.Error(err))
		return
	}
	if err := p.rdc.Publish(ctx, "lot:"+lotID+":events", payload).Err(); err != nil {
		zap.L().Warn("event_publish",
			zap.String("lot_id", lotID),
			zap.String("event", event),
			zap.Error(err))
	}
}
