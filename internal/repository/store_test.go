package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/rental-marketplace/internal/model"
	"github.com/iliyamo/rental-marketplace/internal/policy"
	"github.com/iliyamo/rental-marketplace/internal/service"
)

func TestStore_WithinTxCommits(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO reviews").WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectCommit()

	rv := &model.Review{ListingID: 1, AuthorID: 2, Rating: 5}
	err = NewStore(db).WithinTx(context.Background(), func(r service.Repositories) error {
		return r.Reviews().InsertReview(context.Background(), rv)
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(42), rv.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_WithinTxRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO reviews").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry '1-2' for key 'uq_review_author'"})
	mock.ExpectRollback()

	err = NewStore(db).WithinTx(context.Background(), func(r service.Repositories) error {
		return r.Reviews().InsertReview(context.Background(), &model.Review{ListingID: 1, AuthorID: 2, Rating: 4})
	})
	assert.True(t, errors.Is(err, service.ErrDuplicate))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_WithinTxRollsBackOnPanic(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = NewStore(db).WithinTx(context.Background(), func(service.Repositories) error {
			panic("boom")
		})
	})
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildBookingQuery(t *testing.T) {
	cases := []struct {
		name  string
		scope policy.BookingScope
		f     model.BookingFilter
		where string
		args  []any
	}{
		{"none", policy.BookingScope{None: true}, model.BookingFilter{}, " WHERE 1=0", nil},
		{"all", policy.BookingScope{All: true}, model.BookingFilter{}, "", nil},
		{"owner", policy.BookingScope{OwnerID: 10}, model.BookingFilter{}, " WHERE l.owner_id = ?", []any{uint64(10)}},
		{"tenant with filters", policy.BookingScope{TenantID: 1}, model.BookingFilter{Status: model.StatusPending, ListingID: 3},
			" WHERE b.tenant_id = ? AND b.status = ? AND b.listing_id = ?", []any{uint64(1), "PENDING", uint64(3)}},
		{"empty scope", policy.BookingScope{}, model.BookingFilter{}, " WHERE 1=0", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			where, args := buildBookingQuery(tc.scope, tc.f)
			assert.Equal(t, tc.where, where)
			assert.Equal(t, tc.args, args)
		})
	}
}

var bookingRowColumns = []string{"id", "listing_id", "tenant_id", "check_in", "check_out", "status", "owner_id", "created_at"}

func TestBookingRepo_BlockingBookingsLocks(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	in := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	out := time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE OF b")).
		WithArgs(uint64(3), uint64(0), "PENDING", "CONFIRMED").
		WillReturnRows(sqlmock.NewRows(bookingRowColumns).AddRow(8, 3, 1, in, out, "PENDING", 10, in))

	got, err := NewBookingRepo(db).BlockingBookings(context.Background(), 3, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(10), got[0].OwnerID)
	assert.Equal(t, 4, got[0].Nights())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepo_AppendAuditCreationHasNoFrom(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	at := time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO booking_audit").
		WithArgs(uint64(8), uint64(1), nil, "PENDING", "booking created", at).
		WillReturnResult(sqlmock.NewResult(1, 1))

	e := &model.BookingAudit{BookingID: 8, ActorID: 1, To: model.StatusPending, Message: "booking created", CreatedAt: at}
	require.NoError(t, NewBookingRepo(db).AppendAudit(context.Background(), e))
	assert.Equal(t, uint64(1), e.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepo_LockBookingMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FOR UPDATE OF b").WillReturnRows(sqlmock.NewRows(bookingRowColumns))

	_, err = NewBookingRepo(db).LockBooking(context.Background(), 77)
	assert.True(t, errors.Is(err, service.ErrNoRecord))
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\% off\_now \\o/`, escapeLike(`50% off_now \o/`))
}
