package model

import (
	"strings"
	"time"
)

// RoomType classifies the layout of a listing.
type RoomType string

const (
	RoomSingle            RoomType = "SINGLE_ROOM"
	RoomOneBedroom        RoomType = "ONE_BEDROOM"
	RoomTwoBedroom        RoomType = "TWO_BEDROOM"
	RoomTwoBedroomEnsuite RoomType = "TWO_BEDROOM_ENSUITE"
	RoomThreeBedroom      RoomType = "THREE_BEDROOM"
	RoomSuite             RoomType = "SUITE"
	RoomShared            RoomType = "SHARED_ROOM"
	RoomPrivateInShared   RoomType = "PRIVATE_ROOM_IN_SHARED"
	RoomLoft              RoomType = "LOFT"
	RoomStudio            RoomType = "STUDIO"
)

// RoomTypes lists every room type in display order.
var RoomTypes = []RoomType{
	RoomSingle, RoomOneBedroom, RoomTwoBedroom, RoomTwoBedroomEnsuite, RoomThreeBedroom,
	RoomSuite, RoomShared, RoomPrivateInShared, RoomLoft, RoomStudio,
}

var roomTypeLabels = map[RoomType]string{
	RoomSingle:            "Single room (studio)",
	RoomOneBedroom:        "One-bedroom apartment",
	RoomTwoBedroom:        "Two-bedroom apartment",
	RoomTwoBedroomEnsuite: "Two-bedroom apartment with ensuite",
	RoomThreeBedroom:      "Three-bedroom apartment",
	RoomSuite:             "Suite",
	RoomShared:            "Shared room",
	RoomPrivateInShared:   "Private room in shared apartment",
	RoomLoft:              "Loft",
	RoomStudio:            "Studio apartment",
}

// Label returns the human readable name of the room type.
func (t RoomType) Label() string { return roomTypeLabels[t] }

// ParseRoomType normalises s and reports whether it is a known type.
func ParseRoomType(s string) (RoomType, bool) {
	t := RoomType(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := roomTypeLabels[t]
	return t, ok
}

// Listing is a rentable property owned by a landlord. OwnerID is set
// once on creation and never changes afterwards.
//
// Fields:
//
//	ID          – primary key identifier.
//	OwnerID     – landlord who created the listing.
//	Price       – monthly rent.
//	RoomsCount  – number of rooms, always positive.
//	IsActive    – inactive listings are hidden from tenants and guests.
//	Rating      – average review rating, filled on reads only.
type Listing struct {
	ID          uint64
	OwnerID     uint64
	Title       string
	Description string
	Address     string
	City        string
	Price       Money
	RoomsCount  int
	RoomType    RoomType
	IsActive    bool
	Rating      Rating
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PriceDisplay renders the price the way listings show it to users.
func (l Listing) PriceDisplay() string {
	return l.Price.String() + " € / month"
}

// ListingChanges carries the mutable attributes of a listing. Nil
// fields are left untouched.
type ListingChanges struct {
	Title       *string
	Description *string
	Address     *string
	City        *string
	Price       *Money
	RoomsCount  *int
	RoomType    *RoomType
	IsActive    *bool
}

// Apply copies every non-nil change onto l.
func (c ListingChanges) Apply(l *Listing) {
	if c.Title != nil {
		l.Title = *c.Title
	}
	if c.Description != nil {
		l.Description = *c.Description
	}
	if c.Address != nil {
		l.Address = *c.Address
	}
	if c.City != nil {
		l.City = *c.City
	}
	if c.Price != nil {
		l.Price = *c.Price
	}
	if c.RoomsCount != nil {
		l.RoomsCount = *c.RoomsCount
	}
	if c.RoomType != nil {
		l.RoomType = *c.RoomType
	}
	if c.IsActive != nil {
		l.IsActive = *c.IsActive
	}
}

// Listing orderings accepted by ListingFilter.Ordering.
const (
	OrderCreatedDesc = "-created_at"
	OrderCreatedAsc  = "created_at"
	OrderPriceAsc    = "price"
	OrderPriceDesc   = "-price"
	OrderRatingAsc   = "avg_rating"
	OrderRatingDesc  = "-avg_rating"
)

// ValidListingOrdering reports whether o is an accepted ordering.
func ValidListingOrdering(o string) bool {
	switch o {
	case OrderCreatedDesc, OrderCreatedAsc, OrderPriceAsc, OrderPriceDesc, OrderRatingAsc, OrderRatingDesc:
		return true
	}
	return false
}

// ListingFilter narrows a listing search. Zero values mean "no
// constraint". Ordering by rating drops listings without reviews.
type ListingFilter struct {
	MinPrice *Money
	MaxPrice *Money
	MinRooms int
	MaxRooms int
	City     string
	Address  string
	RoomType RoomType
	Search   string
	Ordering string
	Page     int
	PageSize int
}

// MaxPage bounds the page number so the OFFSET stays well inside int64.
const MaxPage = 1_000_000

// Normalize fills paging defaults and clamps the page and page size.
func (f *ListingFilter) Normalize() {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Page > MaxPage {
		f.Page = MaxPage
	}
	if f.PageSize <= 0 {
		f.PageSize = 20
	}
	if f.PageSize > 100 {
		f.PageSize = 100
	}
	if f.Ordering == "" {
		f.Ordering = OrderCreatedDesc
	}
}
