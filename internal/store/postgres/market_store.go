package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/martelinho/martelinho/internal/domain"
	"github.com/martelinho/martelinho/internal/lifecycle"
)

// MarketStore implements domain.MarketStore using PostgreSQL. Listings and
// users are stored as JSONB documents next to the columns queries filter
// on; the version column is authoritative.
type MarketStore struct {
	pool *pgxpool.Pool
}

var _ domain.MarketStore = (*MarketStore)(nil)

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const listingCols = `doc, version`

func scanListing(row pgx.Row) (domain.Listing, error) {
	var (
		doc     []byte
		version int64
		l       domain.Listing
	)
	if err := row.Scan(&doc, &version); err != nil {
		return domain.Listing{}, err
	}
	if err := json.Unmarshal(doc, &l); err != nil {
		return domain.Listing{}, fmt.Errorf("decode listing: %w", err)
	}
	l.Version = version
	return l, nil
}

// GetListing retrieves a listing by its primary key.
func (s *MarketStore) GetListing(ctx context.Context, id string) (domain.Listing, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+listingCols+` FROM listings WHERE id = $1`, id)
	l, err := scanListing(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Listing{}, fmt.Errorf("postgres: listing %s: %w", id, domain.ErrListingNotFound)
		}
		return domain.Listing{}, fmt.Errorf("postgres: get listing %s: %w", id, err)
	}
	return l, nil
}

// ListListings returns listings matching q, newest first.
func (s *MarketStore) ListListings(ctx context.Context, q domain.ListingQuery) ([]domain.Listing, error) {
	query := `SELECT ` + listingCols + ` FROM listings WHERE 1=1`
	args := []any{}
	argIdx := 1

	if q.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, string(q.Status))
		argIdx++
	}
	if q.SellerID != "" {
		query += fmt.Sprintf(" AND seller_id = $%d", argIdx)
		args = append(args, q.SellerID)
		argIdx++
	}
	if q.WinnerID != "" {
		query += fmt.Sprintf(" AND winner_id = $%d", argIdx)
		args = append(args, q.WinnerID)
		argIdx++
	}

	query += " ORDER BY created_at DESC, id"

	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, q.Limit)
		argIdx++
	}
	if q.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, q.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list listings: %w", err)
	}
	defer rows.Close()

	listings := []domain.Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan listing: %w", err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list listings rows: %w", err)
	}
	return listings, nil
}

// GetUser retrieves a user profile.
func (s *MarketStore) GetUser(ctx context.Context, id string) (domain.User, error) {
	var (
		doc []byte
		u   domain.User
	)
	err := s.pool.QueryRow(ctx, `SELECT doc, version FROM users WHERE id = $1`, id).Scan(&doc, &u.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, fmt.Errorf("postgres: user %s: %w", id, domain.ErrNotFound)
		}
		return domain.User{}, fmt.Errorf("postgres: get user %s: %w", id, err)
	}
	version := u.Version
	if err := json.Unmarshal(doc, &u); err != nil {
		return domain.User{}, fmt.Errorf("postgres: decode user %s: %w", id, err)
	}
	u.Version = version
	return u, nil
}

// Commit writes cs in one transaction. Each row is inserted when its
// Version is zero and updated only while the stored version still matches;
// any miss rolls the whole changeset back with ErrConflict.
func (s *MarketStore) Commit(ctx context.Context, cs domain.Changeset) error {
	if cs.Empty() {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin commit: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, l := range cs.Listings {
		if err := upsertListing(ctx, tx, l); err != nil {
			return err
		}
	}
	for _, u := range cs.Users {
		if err := upsertUser(ctx, tx, u); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit changeset: %w", err)
	}
	return nil
}

func upsertListing(ctx context.Context, tx pgx.Tx, l domain.Listing) error {
	l.Version++
	doc, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("postgres: encode listing %s: %w", l.ID, err)
	}
	args := []any{
		l.ID, string(l.Status), l.SellerID, nullable(l.WinnerID()),
		lifecycle.NormalizeCity(l.Location), l.EndTime, l.Version, doc, l.CreatedAt,
	}

	var query string
	if l.Version == 1 {
		query = `
			INSERT INTO listings (id, status, seller_id, winner_id, city, end_time, version, doc, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
			ON CONFLICT (id) DO NOTHING`
	} else {
		query = `
			UPDATE listings SET
				status     = $2,
				seller_id  = $3,
				winner_id  = $4,
				city       = $5,
				end_time   = $6,
				version    = $7,
				doc        = $8,
				updated_at = NOW()
			WHERE id = $1 AND version = $7 - 1`
		args = args[:8]
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("postgres: write listing %s: %w", l.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: listing %s changed since version %d: %w", l.ID, l.Version-1, domain.ErrConflict)
	}
	return nil
}

func upsertUser(ctx context.Context, tx pgx.Tx, u domain.User) error {
	u.Version++
	doc, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("postgres: encode user %s: %w", u.ID, err)
	}

	var query string
	if u.Version == 1 {
		query = `
			INSERT INTO users (id, version, doc, created_at, updated_at)
			VALUES ($1, $2, $3, NOW(), NOW())
			ON CONFLICT (id) DO NOTHING`
	} else {
		query = `
			UPDATE users SET version = $2, doc = $3, updated_at = NOW()
			WHERE id = $1 AND version = $2 - 1`
	}
	tag, err := tx.Exec(ctx, query, u.ID, u.Version, doc)
	if err != nil {
		return fmt.Errorf("postgres: write user %s: %w", u.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: user %s changed since version %d: %w", u.ID, u.Version-1, domain.ErrConflict)
	}
	return nil
}

// SeedIfEmpty inserts listings when the table has no rows.
func (s *MarketStore) SeedIfEmpty(ctx context.Context, listings []domain.Listing) (bool, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM listings").Scan(&count); err != nil {
		return false, fmt.Errorf("postgres: count listings: %w", err)
	}
	if count > 0 {
		return false, nil
	}
	if err := s.Commit(ctx, domain.Changeset{Listings: listings}); err != nil {
		return false, fmt.Errorf("postgres: seed listings: %w", err)
	}
	return true, nil
}

// ListDue returns active listings whose end time is at or before now.
func (s *MarketStore) ListDue(ctx context.Context, now time.Time) ([]domain.Listing, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+listingCols+` FROM listings WHERE status = $1 AND end_time <= $2 ORDER BY end_time`,
		string(domain.StatusActive), now)
	if err != nil {
		return nil, fmt.Errorf("postgres: list due listings: %w", err)
	}
	defer rows.Close()

	var listings []domain.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan due listing: %w", err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list due listings rows: %w", err)
	}
	return listings, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
