package lotstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"lotservice/internal/lots"
)

// Store is the persistence contract for lot documents. ConditionalReplace
// is the only mutation path for existing lots; Insert and Delete cover
// creation and administrative removal.
type Store interface {
	Get(ctx context.Context, id string) (*lots.Lot, error)
	List(ctx context.Context) ([]*lots.Lot, error)
	// ListExpired returns lots that are still open but whose end time is at
	// or before now.
	ListExpired(ctx context.Context, now time.Time) ([]*lots.Lot, error)
	Insert(ctx context.Context, lot *lots.Lot) error
	Delete(ctx context.Context, id string) error
	// ConditionalReplace writes the full document only if the stored version
	// still equals expectedVersion, bumping the version atomically. It
	// returns lots.ErrConflict when the row moved on since it was read. On
	// success lot.Version reflects the new stored version.
	ConditionalReplace(ctx context.Context, expectedVersion int64, lot *lots.Lot) error
}

type postgresStore struct {
	db *sql.DB
}

func New(db *sql.DB) Store {
	return &postgresStore{db: db}
}

const lotColumns = `id, name, location, online_auction, starting_price,
	       minimum_bid, open, creation_time, end_time, bids, version`

func (s *postgresStore) Get(ctx context.Context, id string) (*lots.Lot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+lotColumns+` FROM lots WHERE id = $1`, id)
	lot, err := scanLot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, lots.ErrLotNotFound
	}
	return lot, err
}

func (s *postgresStore) List(ctx context.Context) ([]*lots.Lot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+lotColumns+` FROM lots ORDER BY end_time DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLots(rows)
}

func (s *postgresStore) ListExpired(ctx context.Context, now time.Time) ([]*lots.Lot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+lotColumns+` FROM lots WHERE open AND end_time <= $1`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLots(rows)
}

func (s *postgresStore) Insert(ctx context.Context, lot *lots.Lot) error {
	bids, err := json.Marshal(lot.Bids)
	if err != nil {
		return err
	}
	lot.Version = 1
	_, err = s.db.ExecContext(ctx, `
	  INSERT INTO lots (id, name, location, online_auction, starting_price,
	                    minimum_bid, open, creation_time, end_time, bids, version)
	       VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		lot.ID, lot.Name, lot.Location, lot.OnlineAuction, lot.StartingPrice,
		lot.MinimumBid, lot.Open, lot.CreationTime, lot.EndTime, bids, lot.Version)
	return err
}

func (s *postgresStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM lots WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return lots.ErrLotNotFound
	}
	return nil
}

func (s *postgresStore) ConditionalReplace(ctx context.Context, expectedVersion int64, lot *lots.Lot) error {
	bids, err := json.Marshal(lot.Bids)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
	  UPDATE lots
	     SET name = $3, location = $4, online_auction = $5, starting_price = $6,
	         minimum_bid = $7, open = $8, creation_time = $9, end_time = $10,
	         bids = $11, version = version + 1
	   WHERE id = $1 AND version = $2`,
		lot.ID, expectedVersion,
		lot.Name, lot.Location, lot.OnlineAuction, lot.StartingPrice,
		lot.MinimumBid, lot.Open, lot.CreationTime, lot.EndTime, bids)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Either the version moved on or the lot was deleted; the caller
		// re-reads and retries, which also surfaces a missing lot.
		return lots.ErrConflict
	}
	lot.Version = expectedVersion + 1
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLot(r rowScanner) (*lots.Lot, error) {
	var (
		lot      lots.Lot
		bidsJSON []byte
	)
	err := r.Scan(&lot.ID, &lot.Name, &lot.Location, &lot.OnlineAuction,
		&lot.StartingPrice, &lot.MinimumBid, &lot.Open,
		&lot.CreationTime, &lot.EndTime, &bidsJSON, &lot.Version)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(bidsJSON, &lot.Bids); err != nil {
		return nil, err
	}
	return &lot, nil
}

func collectLots(rows *sql.Rows) ([]*lots.Lot, error) {
	list := make([]*lots.Lot, 0)
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, lot)
	}
	return list, rows.Err()
}
