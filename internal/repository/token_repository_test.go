package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokenRepo(t *testing.T) (*TokenRepo, sqlmock.Sqlmock, time.Time) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	r := NewTokenRepo(db)
	r.Now = func() time.Time { return now }
	return r, mock, now
}

func TestTokenRepo_ValidateRefresh(t *testing.T) {
	r, mock, now := newTokenRepo(t)

	mock.ExpectQuery("SELECT user_id FROM refresh_tokens").
		WithArgs("abc", now).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(9))

	id, err := r.ValidateRefresh(context.Background(), "abc")
	require.NoError(t, err)
	assert.EqualValues(t, 9, id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepo_ValidateRefreshUnusable(t *testing.T) {
	r, mock, now := newTokenRepo(t)

	mock.ExpectQuery("SELECT user_id FROM refresh_tokens").
		WithArgs("gone", now).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))

	_, err := r.ValidateRefresh(context.Background(), "gone")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	mock.ExpectQuery("SELECT user_id FROM refresh_tokens").WillReturnError(errors.New("conn reset"))
	_, err = r.ValidateRefresh(context.Background(), "abc")
	assert.ErrorContains(t, err, "validate refresh token: conn reset")
	assert.NotErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenRepo_Revoke(t *testing.T) {
	r, mock, now := newTokenRepo(t)

	mock.ExpectExec("UPDATE refresh_tokens SET revoked_at=\\? WHERE token_hash=\\?").
		WithArgs(now, "abc").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE refresh_tokens SET revoked_at=\\? WHERE user_id=\\?").
		WithArgs(now, uint64(9)).
		WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, r.RevokeByHash(context.Background(), "abc"))
	require.NoError(t, r.RevokeAllForUser(context.Background(), 9))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepo_PurgeStale(t *testing.T) {
	r, mock, now := newTokenRepo(t)
	cutoff := now.Add(-24 * time.Hour)

	mock.ExpectExec("DELETE FROM refresh_tokens").
		WithArgs(cutoff, cutoff).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := r.PurgeStale(context.Background(), cutoff)
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
	require.NoError(t, mock.ExpectationsWereMet())
}
