package lot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lotservice/internal/clients/userdirectory"
	"lotservice/internal/lots"
	"lotservice/internal/outbid"
)

var testEnd = time.Date(2025, 7, 27, 16, 0, 0, 0, time.UTC)

type fixture struct {
	store   *memStore
	dir     *fakeDirectory
	issuer  *fakeIssuer
	gateway *fakeGateway
	pub     *fakePublisher
	svc     ILotService
}

func newFixture(now time.Time, users ...*userdirectory.User) *fixture {
	f := &fixture{
		store:   newMemStore(),
		dir:     newFakeDirectory(users...),
		issuer:  &fakeIssuer{},
		gateway: &fakeGateway{},
		pub:     &fakePublisher{},
	}
	f.svc = NewLotService(
		f.store,
		f.dir,
		f.issuer,
		outbid.New(f.dir, f.gateway, "http://public.example"),
		f.pub,
		WithNow(func() time.Time { return now }),
	)
	return f
}

func (f *fixture) seedLot(t *testing.T, lot *lots.Lot) {
	t.Helper()
	require.NoError(t, f.store.Insert(context.Background(), lot))
}

func baseLot() *lots.Lot {
	return &lots.Lot{
		ID:            "lot1",
		Name:          "Antique clock",
		Location:      "Copenhagen",
		OnlineAuction: true,
		StartingPrice: 100,
		MinimumBid:    10,
		Open:          true,
		CreationTime:  testEnd.Add(-time.Hour),
		EndTime:       testEnd,
		Bids:          []lots.Bid{},
	}
}

func user(id string) *userdirectory.User {
	return &userdirectory.User{
		ID:       id,
		Email:    id + "@example.com",
		UserName: id,
		Address:  id + " street 1",
	}
}

func bid(amount int64, bidder string, ts time.Time) lots.Bid {
	return lots.Bid{Amount: amount, BidderID: bidder, LotID: "lot1", Timestamp: ts}
}

func TestSubmitBidFirstBidAtStartingPrice(t *testing.T) {
	f := newFixture(testEnd.Add(-time.Minute), user("b1"))
	f.seedLot(t, baseLot())

	got, err := f.svc.SubmitBid(context.Background(), bid(100, "b1", testEnd.Add(-time.Minute)))
	require.NoError(t, err)
	require.NotNil(t, got.HighestBid())
	assert.Equal(t, int64(100), got.HighestBid().Amount)
	assert.Equal(t, "b1", got.HighestBid().BidderID)
	assert.Equal(t, []string{EventBidAccepted}, f.pub.events)
	// No previous highest bidder, so nobody to notify.
	assert.Empty(t, f.gateway.sent)
}

func TestSubmitBidRejections(t *testing.T) {
	earlier := testEnd.Add(-time.Minute)
	first := bid(100, "b1", testEnd.Add(-2*time.Minute))

	tests := []struct {
		name    string
		prep    func(l *lots.Lot)
		bid     lots.Bid
		wantErr error
	}{
		{
			name:    "closed lot",
			prep:    func(l *lots.Lot) { l.Open = false },
			bid:     bid(150, "b2", earlier),
			wantErr: lots.ErrLotClosed,
		},
		{
			name:    "after end time",
			bid:     bid(150, "b2", testEnd.Add(time.Second)),
			wantErr: lots.ErrAuctionEnded,
		},
		{
			name:    "below starting price",
			bid:     bid(99, "b2", earlier),
			wantErr: lots.ErrBidBelowStart,
		},
		{
			name:    "equal to current highest",
			prep:    func(l *lots.Lot) { l.Bids = []lots.Bid{first} },
			bid:     bid(100, "b2", earlier),
			wantErr: lots.ErrBidNotHigher,
		},
		{
			name:    "below current highest",
			prep:    func(l *lots.Lot) { l.Bids = []lots.Bid{first} },
			bid:     bid(90, "b2", earlier),
			wantErr: lots.ErrBidNotHigher,
		},
		{
			name:    "increment too small",
			prep:    func(l *lots.Lot) { l.Bids = []lots.Bid{first} },
			bid:     bid(105, "b2", earlier),
			wantErr: lots.ErrBidBelowIncrement,
		},
		{
			name:    "duplicate bid",
			prep:    func(l *lots.Lot) { l.Bids = []lots.Bid{first} },
			bid:     first,
			wantErr: lots.ErrDuplicateBid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(earlier, user("b1"), user("b2"))
			l := baseLot()
			if tt.prep != nil {
				tt.prep(l)
			}
			f.seedLot(t, l)

			_, err := f.svc.SubmitBid(context.Background(), tt.bid)
			require.ErrorIs(t, err, tt.wantErr)

			// Rejections leave the lot untouched.
			after, getErr := f.store.Get(context.Background(), "lot1")
			require.NoError(t, getErr)
			assert.Equal(t, int64(1), after.Version)
			assert.Equal(t, l.EndTime, after.EndTime)
		})
	}
}

func TestSubmitBidBoundaries(t *testing.T) {
	first := bid(100, "b1", testEnd.Add(-2*time.Minute))

	t.Run("timestamp equal to end time is accepted", func(t *testing.T) {
		f := newFixture(testEnd, user("b2"))
		l := baseLot()
		l.Bids = []lots.Bid{first}
		f.seedLot(t, l)

		got, err := f.svc.SubmitBid(context.Background(), bid(115, "b2", testEnd))
		require.NoError(t, err)
		assert.Equal(t, int64(115), got.HighestBid().Amount)
	})

	t.Run("increment exactly at minimum is accepted", func(t *testing.T) {
		f := newFixture(testEnd.Add(-time.Minute), user("b2"))
		l := baseLot()
		l.Bids = []lots.Bid{first}
		f.seedLot(t, l)

		got, err := f.svc.SubmitBid(context.Background(), bid(110, "b2", testEnd.Add(-time.Minute)))
		require.NoError(t, err)
		assert.Equal(t, int64(110), got.HighestBid().Amount)
	})
}

func TestSubmitBidValidation(t *testing.T) {
	f := newFixture(testEnd, user("b1"))
	f.seedLot(t, baseLot())

	cases := []lots.Bid{
		bid(0, "b1", testEnd),
		bid(-5, "b1", testEnd),
		bid(100, "", testEnd),
		{Amount: 100, BidderID: "b1"},
	}
	for _, c := range cases {
		_, err := f.svc.SubmitBid(context.Background(), c)
		assert.True(t, lots.IsValidation(err), "expected validation error for %+v, got %v", c, err)
	}
	// Nothing was resolved or committed.
	assert.Empty(t, f.dir.calls)
}

func TestSubmitBidUnknownLot(t *testing.T) {
	f := newFixture(testEnd, user("b1"))

	_, err := f.svc.SubmitBid(context.Background(), bid(100, "b1", testEnd))
	require.ErrorIs(t, err, lots.ErrLotNotFound)
}

func TestSubmitBidIdentityUnavailable(t *testing.T) {
	f := newFixture(testEnd.Add(-time.Minute))
	f.seedLot(t, baseLot())

	_, err := f.svc.SubmitBid(context.Background(), bid(100, "ghost", testEnd.Add(-time.Minute)))
	require.ErrorIs(t, err, lots.ErrIdentityUnavailable)

	after, getErr := f.store.Get(context.Background(), "lot1")
	require.NoError(t, getErr)
	assert.Empty(t, after.Bids)
	assert.Equal(t, int64(1), after.Version)
}

func TestSubmitBidAntiSnipeExtension(t *testing.T) {
	f := newFixture(testEnd, user("b1"), user("b2"))
	f.seedLot(t, baseLot())

	// Qualifying bid 5 s before the deadline pushes the end 30 s past the
	// original deadline, not past the bid time.
	got, err := f.svc.SubmitBid(context.Background(), bid(100, "b1", testEnd.Add(-5*time.Second)))
	require.NoError(t, err)
	assert.Equal(t, testEnd.Add(30*time.Second), got.EndTime)

	// A second bid 25 s after the original end lands inside the trailing
	// window of the new deadline and extends again from there.
	got, err = f.svc.SubmitBid(context.Background(), bid(115, "b2", testEnd.Add(25*time.Second)))
	require.NoError(t, err)
	assert.Equal(t, testEnd.Add(60*time.Second), got.EndTime)
}

func TestSubmitBidNoExtensionOutsideWindow(t *testing.T) {
	f := newFixture(testEnd, user("b1"))
	f.seedLot(t, baseLot())

	got, err := f.svc.SubmitBid(context.Background(), bid(100, "b1", testEnd.Add(-31*time.Second)))
	require.NoError(t, err)
	assert.Equal(t, testEnd, got.EndTime)
}

func TestSubmitBidOutbidNotification(t *testing.T) {
	f := newFixture(testEnd.Add(-time.Minute), user("b1"), user("b3"))
	f.seedLot(t, baseLot())

	_, err := f.svc.SubmitBid(context.Background(), bid(100, "b1", testEnd.Add(-time.Minute)))
	require.NoError(t, err)
	_, err = f.svc.SubmitBid(context.Background(), bid(115, "b3", testEnd.Add(-50*time.Second)))
	require.NoError(t, err)

	require.Len(t, f.gateway.sent, 1)
	n := f.gateway.sent[0]
	assert.Equal(t, "lot1", n.LotID)
	assert.Equal(t, "Antique clock", n.LotName)
	assert.Equal(t, "b1@example.com", n.ReceiverMail)
	assert.Equal(t, int64(115), n.NewLotPrice)
	assert.Equal(t, "http://public.example/lots/lot1/bid", n.NewBidLink)
}

func TestSubmitBidNotificationFailureDoesNotAffectCommit(t *testing.T) {
	f := newFixture(testEnd.Add(-time.Minute), user("b1"), user("b2"))
	f.seedLot(t, baseLot())
	f.gateway.err = fmt.Errorf("gateway down")

	_, err := f.svc.SubmitBid(context.Background(), bid(100, "b1", testEnd.Add(-time.Minute)))
	require.NoError(t, err)
	got, err := f.svc.SubmitBid(context.Background(), bid(115, "b2", testEnd.Add(-time.Minute)))
	require.NoError(t, err)
	assert.Equal(t, int64(115), got.HighestBid().Amount)
}

func TestSubmitBidRetriesOnConflict(t *testing.T) {
	f := newFixture(testEnd.Add(-time.Minute), user("b1"))
	f.seedLot(t, baseLot())
	f.store.forceConflicts = 2

	got, err := f.svc.SubmitBid(context.Background(), bid(100, "b1", testEnd.Add(-time.Minute)))
	require.NoError(t, err)
	assert.Equal(t, int64(100), got.HighestBid().Amount)
	assert.Equal(t, 3, f.store.replaceCalls)
}

func TestSubmitBidConflictExhausted(t *testing.T) {
	f := newFixture(testEnd.Add(-time.Minute), user("b1"))
	f.seedLot(t, baseLot())
	f.store.forceConflicts = maxReplaceRetries

	_, err := f.svc.SubmitBid(context.Background(), bid(100, "b1", testEnd.Add(-time.Minute)))
	require.ErrorIs(t, err, lots.ErrConflict)
}

// For all interleavings of concurrent qualifying bids, the final highest
// bid must equal the maximum submitted amount; a lost conditional update
// never silently drops a higher bid.
func TestSubmitBidConcurrentNoLostUpdate(t *testing.T) {
	const bidders = 20
	users := make([]*userdirectory.User, 0, bidders)
	for i := 0; i < bidders; i++ {
		users = append(users, user(fmt.Sprintf("b%02d", i)))
	}

	f := newFixture(testEnd.Add(-time.Minute), users...)
	l := baseLot()
	l.MinimumBid = 0 // isolate the ordering property from the increment rule
	f.seedLot(t, l)

	var wg sync.WaitGroup
	for i := 0; i < bidders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b := bid(int64(101+i), fmt.Sprintf("b%02d", i), testEnd.Add(-time.Minute))
			// Rejections are expected under contention; an exhausted
			// conflict is retried like a real caller would.
			for {
				_, err := f.svc.SubmitBid(context.Background(), b)
				if !errors.Is(err, lots.ErrConflict) {
					return
				}
			}
		}(i)
	}
	wg.Wait()

	final, err := f.store.Get(context.Background(), "lot1")
	require.NoError(t, err)
	require.NotEmpty(t, final.Bids)
	assert.Equal(t, int64(100+bidders), final.HighestBid().Amount)
	for i := 1; i < len(final.Bids); i++ {
		assert.GreaterOrEqual(t, final.Bids[i-1].Amount, final.Bids[i].Amount)
	}
	// Every accepted bid bumped the version exactly once.
	assert.Equal(t, int64(1+len(final.Bids)), final.Version)
}
