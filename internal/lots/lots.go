package lots

import (
	"sort"
	"time"
)

// Bid is immutable once accepted. Rejected bids are never persisted.
type Bid struct {
	Amount    int64     `json:"amount"`
	BidderID  string    `json:"bidderId"`
	LotID     string    `json:"lotId"`
	Timestamp time.Time `json:"timestamp"`
}

// Lot is the auction unit. The bids slice is kept sorted descending by
// amount; its head is the current highest bid. Version is bumped by the
// store on every conditional replace and must never be set by callers.
type Lot struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Location      string    `json:"location"`
	OnlineAuction bool      `json:"onlineAuction"`
	StartingPrice int64     `json:"startingPrice"`
	MinimumBid    int64     `json:"minimumBid"`
	Open          bool      `json:"open"`
	CreationTime  time.Time `json:"creationTime"`
	EndTime       time.Time `json:"endTime"`
	Bids          []Bid     `json:"bids"`
	Version       int64     `json:"version"`
}

// HighestBid returns the head of the descending-sorted bids slice,
// or nil when the lot has no bids yet.
func (l *Lot) HighestBid() *Bid {
	if len(l.Bids) == 0 {
		return nil
	}
	return &l.Bids[0]
}

// HasBid reports whether an identical bid was already accepted. Used to
// absorb redeliveries from the at-least-once bid stream.
func (l *Lot) HasBid(b Bid) bool {
	for _, existing := range l.Bids {
		if existing.BidderID == b.BidderID &&
			existing.Amount == b.Amount &&
			existing.Timestamp.Equal(b.Timestamp) {
			return true
		}
	}
	return false
}

// SortBids restores the descending-by-amount invariant.
func SortBids(bids []Bid) {
	sort.SliceStable(bids, func(i, j int) bool {
		return bids[i].Amount > bids[j].Amount
	})
}

// Validate checks the creation-time invariants of a lot document.
func (l *Lot) Validate(now time.Time) error {
	switch {
	case l.Name == "":
		return ErrValidation("lot name must not be empty")
	case l.Location == "":
		return ErrValidation("lot location must not be empty")
	case l.StartingPrice < 0:
		return ErrValidation("starting price must not be negative")
	case l.MinimumBid < 0:
		return ErrValidation("minimum bid increment must not be negative")
	case l.CreationTime.After(now):
		return ErrValidation("lot creation time must not be in the future")
	case l.EndTime.Before(l.CreationTime):
		return ErrValidation("lot end time must not be before creation time")
	}
	return nil
}
