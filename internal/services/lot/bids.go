package lot

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"lotservice/internal/lots"
)

// SubmitBid validates and applies a single bid. The decision is computed
// against a fresh read of the lot and committed with a version-conditioned
// replace; on a lost race the whole decision is retried against the latest
// state, up to maxReplaceRetries.
func (svc *lotService) SubmitBid(ctx context.Context, bid lots.Bid) (*lots.Lot, error) {
	if bid.Amount <= 0 {
		return nil, lots.ErrValidation("bid amount must be positive")
	}
	if bid.BidderID == "" {
		return nil, lots.ErrValidation("bidder id must not be empty")
	}
	if bid.LotID == "" {
		return nil, lots.ErrValidation("lot id must not be empty")
	}

	// The new bidder must resolve before anything commits; an unknown
	// bidder kills the bid outright.
	bidder, err := svc.users.Fetch(ctx, bid.BidderID)
	if err != nil {
		zap.L().Warn("bid_identity_failed",
			zap.String("lot_id", bid.LotID),
			zap.String("bidder_id", bid.BidderID),
			zap.Error(err))
		return nil, err
	}

	for attempt := 0; attempt < maxReplaceRetries; attempt++ {
		lot, err := svc.store.Get(ctx, bid.LotID)
		if err != nil {
			return nil, err
		}

		if err := decideBid(lot, bid); err != nil {
			zap.L().Warn("bid_rejected",
				zap.String("lot_id", lot.ID),
				zap.String("bidder", bidder.UserName),
				zap.Int64("amount", bid.Amount),
				zap.Error(err))
			return lot, err
		}

		var previous *lots.Bid
		if h := lot.HighestBid(); h != nil {
			cp := *h
			previous = &cp
		}

		expected := lot.Version
		lot.Bids = append([]lots.Bid{bid}, lot.Bids...)
		lots.SortBids(lot.Bids)
		if withinTrailingWindow(bid, lot) {
			lot.EndTime = lot.EndTime.Add(antiSnipeWindow)
		}

		err = svc.store.ConditionalReplace(ctx, expected, lot)
		if errors.Is(err, lots.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}

		zap.L().Info("bid_accepted",
			zap.String("lot_id", lot.ID),
			zap.String("bidder", bidder.UserName),
			zap.Int64("amount", bid.Amount),
			zap.Time("end_time", lot.EndTime))

		// Best-effort side effects; the bid is already committed.
		if previous != nil {
			svc.outbid.Notify(ctx, lot, *previous, bid)
		}
		svc.events.Publish(ctx, lot.ID, EventBidAccepted, BidAcceptedEvent{
			LotID:    lot.ID,
			BidderID: bid.BidderID,
			Amount:   bid.Amount,
			EndTime:  lot.EndTime,
		})
		return lot, nil
	}

	zap.L().Error("bid_conflict_exhausted",
		zap.String("lot_id", bid.LotID),
		zap.String("bidder_id", bid.BidderID))
	return nil, lots.ErrConflict
}

// decideBid applies the acceptance rules against the current lot state.
// Order matters: lifecycle first, then price rules.
func decideBid(lot *lots.Lot, bid lots.Bid) error {
	if !lot.Open {
		return lots.ErrLotClosed
	}
	if bid.Timestamp.After(lot.EndTime) {
		return lots.ErrAuctionEnded
	}
	if lot.HasBid(bid) {
		return lots.ErrDuplicateBid
	}
	if bid.Amount < lot.StartingPrice {
		return lots.ErrBidBelowStart
	}
	if highest := lot.HighestBid(); highest != nil {
		// Strictly greater-than; an equal amount never displaces the head.
		if bid.Amount <= highest.Amount {
			return lots.ErrBidNotHigher
		}
		if bid.Amount-highest.Amount < lot.MinimumBid {
			return lots.ErrBidBelowIncrement
		}
	}
	return nil
}

// withinTrailingWindow reports whether the bid landed inside the trailing
// anti-snipe window of the lot's current end time. The extension is
// measured from the current end time, so sustained late bidding keeps
// pushing the deadline with no upper bound.
func withinTrailingWindow(bid lots.Bid, lot *lots.Lot) bool {
	return bid.Timestamp.After(lot.EndTime.Add(-antiSnipeWindow))
}
