package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/rental-marketplace/internal/model"
	"github.com/iliyamo/rental-marketplace/internal/service"
)

// ReviewRepo persists the `reviews` table. The UNIQUE (listing_id,
// author_id) key backs the one-review-per-author rule.
type ReviewRepo struct{ q querier }

func NewReviewRepo(db *sql.DB) *ReviewRepo { return &ReviewRepo{q: db} }

const reviewColumns = "id, listing_id, author_id, rating, comment, created_at, updated_at"

// InsertReview stores rv and sets its ID. A second review by the same
// author on the same listing wraps service.ErrDuplicate.
func (r *ReviewRepo) InsertReview(ctx context.Context, rv *model.Review) error {
	res, err := r.q.ExecContext(ctx,
		"INSERT INTO reviews (listing_id, author_id, rating, comment, created_at, updated_at) VALUES (?,?,?,?,?,?)",
		rv.ListingID, rv.AuthorID, rv.Rating, rv.Comment, rv.CreatedAt, rv.UpdatedAt)
	if err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("insert review: %w", service.ErrDuplicate)
		}
		return fmt.Errorf("insert review: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rv.ID = uint64(id)
	return nil
}

// GetReview loads one review.
func (r *ReviewRepo) GetReview(ctx context.Context, id uint64) (*model.Review, error) {
	rv, err := scanReview(r.q.QueryRowContext(ctx, "SELECT "+reviewColumns+" FROM reviews WHERE id=? LIMIT 1", id))
	if err != nil {
		return nil, notFound(err, "review")
	}
	return rv, nil
}

// UpdateReview writes rating, comment and updated_at.
func (r *ReviewRepo) UpdateReview(ctx context.Context, rv *model.Review) error {
	res, err := r.q.ExecContext(ctx,
		"UPDATE reviews SET rating=?, comment=?, updated_at=? WHERE id=?",
		rv.Rating, rv.Comment, rv.UpdatedAt, rv.ID)
	if err != nil {
		return fmt.Errorf("update review: %w", err)
	}
	return requireMatched(ctx, r.q, res, "reviews", rv.ID)
}

func (r *ReviewRepo) DeleteReview(ctx context.Context, id uint64) error {
	res, err := r.q.ExecContext(ctx, "DELETE FROM reviews WHERE id=?", id)
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	return requireRow(res, "review")
}

// ListReviews returns the reviews of a listing, newest first.
func (r *ReviewRepo) ListReviews(ctx context.Context, listingID uint64) ([]model.Review, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT "+reviewColumns+" FROM reviews WHERE listing_id=? ORDER BY created_at DESC, id DESC", listingID)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	out := []model.Review{}
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		out = append(out, *rv)
	}
	return out, rows.Err()
}

// ReviewExists reports whether the author already reviewed the listing.
func (r *ReviewRepo) ReviewExists(ctx context.Context, listingID, authorID uint64) (bool, error) {
	var exists bool
	err := r.q.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM reviews WHERE listing_id=? AND author_id=?)", listingID, authorID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("review exists: %w", err)
	}
	return exists, nil
}

func scanReview(row rowScanner) (*model.Review, error) {
	var rv model.Review
	if err := row.Scan(&rv.ID, &rv.ListingID, &rv.AuthorID, &rv.Rating, &rv.Comment, &rv.CreatedAt, &rv.UpdatedAt); err != nil {
		return nil, err
	}
	return &rv, nil
}
