package lots

import "errors"

var (
	ErrLotNotFound = errors.New("lot not found")

	// Conflict means a conditional replace lost its optimistic race and
	// the bounded retries were exhausted. Retryable by the caller.
	ErrConflict = errors.New("lot version conflict")

	ErrLotClosed     = errors.New("lot is closed")
	ErrAuctionEnded  = errors.New("bid placed after lot end time")
	ErrBidBelowStart = errors.New("bid below starting price")
	// ErrBidNotHigher also covers equal amounts: acceptance is strictly
	// greater-than, a re-submitted tie with the current price is rejected.
	ErrBidNotHigher      = errors.New("bid must be higher than current highest bid")
	ErrBidBelowIncrement = errors.New("bid increment below lot minimum")
	ErrDuplicateBid      = errors.New("identical bid already accepted")

	ErrIdentityUnavailable   = errors.New("bidder identity could not be resolved")
	ErrDownstreamUnavailable = errors.New("downstream service unavailable")
	ErrNoBids                = errors.New("lot closed with no bids")
)

// validationError carries a field-level message from lot or bid validation.
type validationError string

func (e validationError) Error() string { return string(e) }

// ErrValidation builds a validation error; match with IsValidation.
func ErrValidation(msg string) error { return validationError(msg) }

// IsValidation reports whether err is a field validation failure.
func IsValidation(err error) bool {
	var v validationError
	return errors.As(err, &v)
}
