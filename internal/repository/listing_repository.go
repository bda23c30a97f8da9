package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/iliyamo/rental-marketplace/internal/model"
	"github.com/iliyamo/rental-marketplace/internal/policy"
)

// ListingRepo persists listings in the `listings` table. Reads join a
// per-listing aggregate of `reviews` so every listing carries its
// average rating.
type ListingRepo struct{ q querier }

func NewListingRepo(db *sql.DB) *ListingRepo { return &ListingRepo{q: db} }

const listingColumns = "l.id, l.owner_id, l.title, l.description, l.address, l.city, l.price, l.rooms_count, l.room_type, l.is_active, l.created_at, l.updated_at"

// ratingJoin attaches avg_rating and review_count as r.*; listings
// without reviews get NULLs.
const ratingJoin = " LEFT JOIN (SELECT listing_id, AVG(rating) AS avg_rating, COUNT(*) AS review_count FROM reviews GROUP BY listing_id) r ON r.listing_id = l.id"

// InsertListing stores l and sets its ID.
func (r *ListingRepo) InsertListing(ctx context.Context, l *model.Listing) error {
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO listings (owner_id, title, description, address, city, price, rooms_count, room_type, is_active, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		l.OwnerID, l.Title, l.Description, l.Address, l.City, l.Price.String(), l.RoomsCount, string(l.RoomType), l.IsActive, l.CreatedAt, l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert listing: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	l.ID = uint64(id)
	return nil
}

// UpdateListing writes the mutable attributes of l. owner_id and
// created_at are never part of the statement.
func (r *ListingRepo) UpdateListing(ctx context.Context, l *model.Listing) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE listings SET title=?, description=?, address=?, city=?, price=?, rooms_count=?, room_type=?, is_active=?, updated_at=?
		 WHERE id=?`,
		l.Title, l.Description, l.Address, l.City, l.Price.String(), l.RoomsCount, string(l.RoomType), l.IsActive, l.UpdatedAt, l.ID)
	if err != nil {
		return fmt.Errorf("update listing: %w", err)
	}
	return requireMatched(ctx, r.q, res, "listings", l.ID)
}

// DeleteListing removes a listing; bookings and reviews go with it via
// ON DELETE CASCADE.
func (r *ListingRepo) DeleteListing(ctx context.Context, id uint64) error {
	res, err := r.q.ExecContext(ctx, "DELETE FROM listings WHERE id=?", id)
	if err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	return requireRow(res, "listing")
}

// GetListing loads one listing with its rating.
func (r *ListingRepo) GetListing(ctx context.Context, id uint64) (*model.Listing, error) {
	row := r.q.QueryRowContext(ctx,
		"SELECT "+listingColumns+", r.avg_rating, r.review_count FROM listings l"+ratingJoin+" WHERE l.id=? LIMIT 1", id)
	l, err := scanListing(row, true)
	if err != nil {
		return nil, notFound(err, "listing")
	}
	return l, nil
}

// LockListing loads a listing with SELECT ... FOR UPDATE, holding the
// row lock until the transaction ends. Booking writes take this lock
// first, which serialises them per listing. The rating is not loaded.
func (r *ListingRepo) LockListing(ctx context.Context, id uint64) (*model.Listing, error) {
	row := r.q.QueryRowContext(ctx, "SELECT "+listingColumns+" FROM listings l WHERE l.id=? FOR UPDATE", id)
	l, err := scanListing(row, false)
	if err != nil {
		return nil, notFound(err, "listing")
	}
	return l, nil
}

// ListListings returns one page of listings inside scope matching f,
// plus the total number of matches.
func (r *ListingRepo) ListListings(ctx context.Context, scope policy.ListingScope, f model.ListingFilter) ([]model.Listing, int, error) {
	f.Normalize()
	where, args, orderBy := buildListingQuery(scope, f)

	var total int
	if err := r.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM listings l"+ratingJoin+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count listings: %w", err)
	}
	if total == 0 {
		return []model.Listing{}, 0, nil
	}

	q := "SELECT " + listingColumns + ", r.avg_rating, r.review_count FROM listings l" + ratingJoin + where +
		" ORDER BY " + orderBy + " LIMIT ? OFFSET ?"
	pageArgs := append(append([]any{}, args...), f.PageSize, (f.Page-1)*f.PageSize)
	rows, err := r.q.QueryContext(ctx, q, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()

	items := make([]model.Listing, 0, f.PageSize)
	for rows.Next() {
		l, err := scanListing(rows, true)
		if err != nil {
			return nil, 0, fmt.Errorf("scan listing: %w", err)
		}
		items = append(items, *l)
	}
	return items, total, rows.Err()
}

// ListingRating computes the average rating of one listing.
func (r *ListingRepo) ListingRating(ctx context.Context, id uint64) (model.Rating, error) {
	var (
		avg   sql.NullFloat64
		count int
	)
	err := r.q.QueryRowContext(ctx, "SELECT AVG(rating), COUNT(*) FROM reviews WHERE listing_id=?", id).Scan(&avg, &count)
	if err != nil {
		return model.Rating{}, fmt.Errorf("listing rating: %w", err)
	}
	if !avg.Valid {
		return model.Rating{}, nil
	}
	return model.NewRating(avg.Float64, count), nil
}

// listingOrderings maps the accepted ordering keys onto ORDER BY
// clauses. The id tiebreak keeps pages stable.
var listingOrderings = map[string]string{
	model.OrderCreatedDesc: "l.created_at DESC, l.id DESC",
	model.OrderCreatedAsc:  "l.created_at ASC, l.id ASC",
	model.OrderPriceAsc:    "l.price ASC, l.id DESC",
	model.OrderPriceDesc:   "l.price DESC, l.id DESC",
	model.OrderRatingAsc:   "r.avg_rating ASC, l.id DESC",
	model.OrderRatingDesc:  "r.avg_rating DESC, l.id DESC",
}

// buildListingQuery turns a scope and a filter into a WHERE clause (with
// leading space, or empty), its arguments and an ORDER BY expression.
// Ordering by rating excludes listings that have no reviews.
func buildListingQuery(scope policy.ListingScope, f model.ListingFilter) (string, []any, string) {
	var (
		where []string
		args  []any
	)
	if !scope.All {
		if scope.OwnerID != 0 {
			where = append(where, "l.owner_id = ?")
			args = append(args, scope.OwnerID)
		}
		if scope.ActiveOnly {
			where = append(where, "l.is_active = 1")
		}
	}
	if f.MinPrice != nil {
		where = append(where, "l.price >= ?")
		args = append(args, f.MinPrice.String())
	}
	if f.MaxPrice != nil {
		where = append(where, "l.price <= ?")
		args = append(args, f.MaxPrice.String())
	}
	if f.MinRooms > 0 {
		where = append(where, "l.rooms_count >= ?")
		args = append(args, f.MinRooms)
	}
	if f.MaxRooms > 0 {
		where = append(where, "l.rooms_count <= ?")
		args = append(args, f.MaxRooms)
	}
	if c := strings.TrimSpace(f.City); c != "" {
		where = append(where, "LOWER(l.city) = LOWER(?)")
		args = append(args, c)
	}
	if a := strings.TrimSpace(f.Address); a != "" {
		where = append(where, "l.address LIKE ?")
		args = append(args, "%"+escapeLike(a)+"%")
	}
	if f.RoomType != "" {
		where = append(where, "l.room_type = ?")
		args = append(args, string(f.RoomType))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		where = append(where, "(l.title LIKE ? OR l.description LIKE ?)")
		p := "%" + escapeLike(s) + "%"
		args = append(args, p, p)
	}

	orderBy, ok := listingOrderings[f.Ordering]
	if !ok {
		orderBy = listingOrderings[model.OrderCreatedDesc]
	}
	if f.Ordering == model.OrderRatingAsc || f.Ordering == model.OrderRatingDesc {
		where = append(where, "r.review_count > 0")
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}
	return clause, args, orderBy
}

// escapeLike escapes the LIKE wildcards in user input.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func scanListing(row rowScanner, withRating bool) (*model.Listing, error) {
	var (
		l        model.Listing
		price    string
		roomType string
		avg      sql.NullFloat64
		count    sql.NullInt64
	)
	dest := []any{&l.ID, &l.OwnerID, &l.Title, &l.Description, &l.Address, &l.City, &price, &l.RoomsCount,
		&roomType, &l.IsActive, &l.CreatedAt, &l.UpdatedAt}
	if withRating {
		dest = append(dest, &avg, &count)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	m, err := model.ParseMoney(price)
	if err != nil {
		return nil, fmt.Errorf("listing %d: price %q: %w", l.ID, price, err)
	}
	l.Price = m
	l.RoomType = model.RoomType(roomType)
	if avg.Valid {
		l.Rating = model.NewRating(avg.Float64, int(count.Int64))
	}
	return &l, nil
}

// requireRow reports service.ErrNoRecord when a DELETE removed nothing.
func requireRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound(sql.ErrNoRows, what)
	}
	return nil
}

// requireMatched reports service.ErrNoRecord when an UPDATE touched no
// row because the row is gone. MySQL counts changed rows, not matched
// ones, so a zero count is confirmed with a lookup.
func requireMatched(ctx context.Context, q querier, res sql.Result, table string, id uint64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var one int
	if err := q.QueryRowContext(ctx, "SELECT 1 FROM "+table+" WHERE id=?", id).Scan(&one); err != nil {
		return notFound(err, strings.TrimSuffix(table, "s"))
	}
	return nil
}
