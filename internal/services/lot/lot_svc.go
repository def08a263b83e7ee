package lot

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lotservice/internal/clients/invoiceissuer"
	"lotservice/internal/clients/userdirectory"
	"lotservice/internal/lots"
	"lotservice/internal/outbid"
	"lotservice/internal/store/lotstore"
)

const (
	// How often a lost optimistic race is retried against fresh state
	// before the operation reports a conflict.
	maxReplaceRetries = 5

	// A qualifying bid inside the trailing window pushes the end time
	// forward by the same amount, measured from the current end time.
	antiSnipeWindow = 30 * time.Second
)

type ILotService interface {
	CreateLot(ctx context.Context, lot *lots.Lot) (*lots.Lot, error)
	GetLot(ctx context.Context, id string) (*lots.Lot, error)
	GetLots(ctx context.Context) ([]*lots.Lot, error)
	UpdateLot(ctx context.Context, lot *lots.Lot) (*lots.Lot, error)
	DeleteLot(ctx context.Context, id string) error
	SubmitBid(ctx context.Context, bid lots.Bid) (*lots.Lot, error)
	CloseLot(ctx context.Context, id string) (*lots.Lot, error)
	SweepExpired(ctx context.Context) (int, error)
}

type lotService struct {
	store    lotstore.Store
	users    userdirectory.Directory
	invoices invoiceissuer.Issuer
	outbid   *outbid.Dispatcher
	events   EventPublisher
	now      func() time.Time
}

type Option func(*lotService)

// WithNow overrides the service clock, useful in tests.
func WithNow(now func() time.Time) Option {
	return func(s *lotService) { s.now = now }
}

func NewLotService(store lotstore.Store, users userdirectory.Directory,
	invoices invoiceissuer.Issuer, dispatcher *outbid.Dispatcher,
	events EventPublisher, opts ...Option) ILotService {

	svc := &lotService{
		store:    store,
		users:    users,
		invoices: invoices,
		outbid:   dispatcher,
		events:   events,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func (svc *lotService) CreateLot(ctx context.Context, lot *lots.Lot) (*lots.Lot, error) {
	if lot.ID == "" {
		lot.ID = uuid.NewString()
	}
	if lot.CreationTime.IsZero() {
		lot.CreationTime = svc.now()
	}
	if err := lot.Validate(svc.now()); err != nil {
		return nil, err
	}

	// Lots are born open with no bids, whatever the request carried.
	lot.Open = true
	lot.Bids = []lots.Bid{}

	if err := svc.store.Insert(ctx, lot); err != nil {
		return nil, err
	}
	zap.L().Info("lot_created",
		zap.String("lot_id", lot.ID),
		zap.String("name", lot.Name),
		zap.Time("end_time", lot.EndTime))
	return lot, nil
}

func (svc *lotService) GetLot(ctx context.Context, id string) (*lots.Lot, error) {
	return svc.store.Get(ctx, id)
}

func (svc *lotService) GetLots(ctx context.Context) ([]*lots.Lot, error) {
	return svc.store.List(ctx)
}

// UpdateLot replaces the administratively mutable attributes of a lot.
// Bids, the open flag and the end time are owned by the bid and closing
// paths and are never touched here.
func (svc *lotService) UpdateLot(ctx context.Context, in *lots.Lot) (*lots.Lot, error) {
	for attempt := 0; attempt < maxReplaceRetries; attempt++ {
		lot, err := svc.store.Get(ctx, in.ID)
		if err != nil {
			return nil, err
		}

		lot.Name = in.Name
		lot.Location = in.Location
		lot.OnlineAuction = in.OnlineAuction
		lot.StartingPrice = in.StartingPrice
		lot.MinimumBid = in.MinimumBid
		if err := lot.Validate(svc.now()); err != nil {
			return nil, err
		}

		err = svc.store.ConditionalReplace(ctx, lot.Version, lot)
		if errors.Is(err, lots.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		zap.L().Info("lot_updated", zap.String("lot_id", lot.ID))
		return lot, nil
	}
	return nil, lots.ErrConflict
}

// DeleteLot removes a lot regardless of auction timing. Administrative.
func (svc *lotService) DeleteLot(ctx context.Context, id string) error {
	if err := svc.store.Delete(ctx, id); err != nil {
		return err
	}
	zap.L().Info("lot_deleted", zap.String("lot_id", id))
	return nil
}
