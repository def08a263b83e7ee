package bidstream

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"lotservice/internal/lots"
)

// Submitter is the slice of the lot service the consumer needs.
type Submitter interface {
	SubmitBid(ctx context.Context, bid lots.Bid) (*lots.Lot, error)
}

// Consumer tails the inbound bid stream through a consumer group. Entries
// are acknowledged only once the bid decision is final: committed, or
// rejected for a reason a redelivery cannot fix. Anything transient (a
// conflict that exhausted its retries, a store outage) stays pending and is
// reprocessed from the pending list on the next start.
type Consumer struct {
	rdc      *redis.Client
	svc      Submitter
	stream   string
	group    string
	consumer string
}

func New(rdc *redis.Client, svc Submitter, stream, group, consumer string) *Consumer {
	return &Consumer{
		rdc:      rdc,
		svc:      svc,
		stream:   stream,
		group:    group,
		consumer: consumer,
	}
}

// Run blocks until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	err := c.rdc.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		zap.L().Error("bidstream.group_create", zap.Error(err))
		return
	}

	// "0" first to drain this consumer's pending entries from a previous
	// run, then ">" for new deliveries.
	id := "0"
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := c.rdc.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.group,
			Consumer: c.consumer,
			Streams:  []string{c.stream, id},
			Count:    100,
			Block:    2000 * time.Millisecond,
		}).Result()
		if err != nil && err != redis.Nil {
			if ctx.Err() != nil {
				return
			}
			zap.L().Warn("bidstream.xreadgroup", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if len(res) == 0 || len(res[0].Messages) == 0 {
			id = ">"
			continue
		}

		for _, m := range res[0].Messages {
			if c.process(ctx, m) {
				if err := c.rdc.XAck(ctx, c.stream, c.group, m.ID).Err(); err != nil {
					zap.L().Warn("bidstream.xack",
						zap.String("entry", m.ID), zap.Error(err))
				}
			}
		}
	}
}

// process submits one stream entry and reports whether it may be acked.
func (c *Consumer) process(ctx context.Context, m redis.XMessage) bool {
	bid, err := parseBid(m)
	if err != nil {
		// Malformed entries are logged and dropped, never retried.
		zap.L().Warn("bidstream.malformed",
			zap.String("entry", m.ID), zap.Error(err))
		return true
	}

	_, err = c.svc.SubmitBid(ctx, bid)
	if err == nil || terminal(err) {
		return true
	}
	zap.L().Warn("bidstream.retryable",
		zap.String("entry", m.ID),
		zap.String("lot_id", bid.LotID),
		zap.Error(err))
	return false
}

// terminal reports whether a rejection is final for this exact bid. A
// redelivered duplicate of an already-committed bid lands here too, which
// is what makes the ack-after-commit scheme safe under replays.
func terminal(err error) bool {
	return lots.IsValidation(err) ||
		errors.Is(err, lots.ErrLotNotFound) ||
		errors.Is(err, lots.ErrLotClosed) ||
		errors.Is(err, lots.ErrAuctionEnded) ||
		errors.Is(err, lots.ErrBidBelowStart) ||
		errors.Is(err, lots.ErrBidNotHigher) ||
		errors.Is(err, lots.ErrBidBelowIncrement) ||
		errors.Is(err, lots.ErrDuplicateBid) ||
		errors.Is(err, lots.ErrIdentityUnavailable)
}

func parseBid(m redis.XMessage) (lots.Bid, error) {
	lotID, ok := m.Values["lot_id"].(string)
	if !ok || lotID == "" {
		return lots.Bid{}, errors.New("missing lot_id")
	}
	bidderID, ok := m.Values["bidder_id"].(string)
	if !ok || bidderID == "" {
		return lots.Bid{}, errors.New("missing bidder_id")
	}
	rawAmount, ok := m.Values["amount"].(string)
	if !ok {
		return lots.Bid{}, errors.New("missing amount")
	}
	amount, err := strconv.ParseInt(rawAmount, 10, 64)
	if err != nil {
		return lots.Bid{}, errors.New("amount is not an integer")
	}
	rawTs, ok := m.Values["timestamp"].(string)
	if !ok {
		return lots.Bid{}, errors.New("missing timestamp")
	}
	ts, err := time.Parse(time.RFC3339, rawTs)
	if err != nil {
		return lots.Bid{}, errors.New("timestamp is not RFC3339")
	}

	return lots.Bid{
		Amount:    amount,
		BidderID:  bidderID,
		LotID:     lotID,
		Timestamp: ts,
	}, nil
}
