package outbid

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"lotservice/internal/clients/notificationgateway"
	"lotservice/internal/clients/userdirectory"
	"lotservice/internal/lots"
)

// Dispatcher sends best-effort outbid notices to a displaced highest
// bidder. Nothing here may influence the outcome of the bid that caused
// the displacement; every failure is logged and swallowed.
type Dispatcher struct {
	users         userdirectory.Directory
	gateway       notificationgateway.Gateway
	publicBaseURL string
}

func New(users userdirectory.Directory, gateway notificationgateway.Gateway, publicBaseURL string) *Dispatcher {
	return &Dispatcher{
		users:         users,
		gateway:       gateway,
		publicBaseURL: publicBaseURL,
	}
}

// Notify tells the previous highest bidder about the bid that displaced them.
func (d *Dispatcher) Notify(ctx context.Context, lot *lots.Lot, previous, accepted lots.Bid) {
	user, err := d.users.Fetch(ctx, previous.BidderID)
	if err != nil {
		zap.L().Warn("outbid_resolve_failed",
			zap.String("lot_id", lot.ID),
			zap.String("bidder_id", previous.BidderID),
			zap.Error(err))
		return
	}

	n := notificationgateway.Notification{
		LotID:        lot.ID,
		LotName:      lot.Name,
		TimeStamp:    accepted.Timestamp,
		ReceiverMail: user.Email,
		NewLotPrice:  accepted.Amount,
		NewBidLink:   fmt.Sprintf("%s/lots/%s/bid", d.publicBaseURL, lot.ID),
	}
	if err := d.gateway.Send(ctx, n); err != nil {
		zap.L().Warn("outbid_notify_failed",
			zap.String("lot_id", lot.ID),
			zap.String("receiver", user.Email),
			zap.Error(err))
		return
	}
	zap.L().Info("outbid_notice_sent",
		zap.String("lot_id", lot.ID),
		zap.String("receiver", user.Email),
		zap.Int64("new_price", accepted.Amount))
}
