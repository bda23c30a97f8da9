package model

import (
	"encoding/json"
	"math"
	"time"
)

// Review ratings are whole stars within this range.
const (
	MinRating = 1
	MaxRating = 5
)

// Review is one author's opinion of a listing. There is at most one
// review per (ListingID, AuthorID).
type Review struct {
	ID        uint64
	ListingID uint64
	AuthorID  uint64
	Rating    int
	Comment   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValidRating reports whether r lies within [MinRating, MaxRating].
func ValidRating(r int) bool { return r >= MinRating && r <= MaxRating }

// Rating is the average review score of a listing. Valid is false when
// the listing has no reviews; the value is then undefined rather than 0.
type Rating struct {
	Value float64
	Count int
	Valid bool
}

// AverageOf computes the rating of the given scores, rounded to one
// decimal place.
func AverageOf(scores []int) Rating {
	if len(scores) == 0 {
		return Rating{}
	}
	sum := 0
	for _, s := range scores {
		sum += s
	}
	return NewRating(float64(sum)/float64(len(scores)), len(scores))
}

// NewRating builds a rating from an already computed mean.
func NewRating(mean float64, count int) Rating {
	if count <= 0 {
		return Rating{}
	}
	return Rating{Value: math.Round(mean*10) / 10, Count: count, Valid: true}
}

// MarshalJSON renders an undefined rating as null.
func (r Rating) MarshalJSON() ([]byte, error) {
	if !r.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(r.Value)
}
