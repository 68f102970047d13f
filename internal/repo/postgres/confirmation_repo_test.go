package postgres_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medsched/confirmlink/internal/domain"
	"github.com/medsched/confirmlink/internal/repo/postgres"
	"github.com/medsched/confirmlink/internal/tenant"
)

const testKey = "transfit-key"

func newTestPool(t *testing.T) (pgxmock.PgxPoolIface, *tenant.Context) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	tc := tenant.NewContext("transfit", "Transfit", "/static/transfit.svg", mock, testKey)
	return mock, tc
}

func TestFetchDecrypted(t *testing.T) {
	mock, tc := newTestPool(t)
	repo := postgres.NewConfirmationRepo()

	phone := "+40721000001"
	rows := pgxmock.NewRows([]string{
		"token", "appointment_date", "start_time", "status",
		"given_name", "family_name", "phone",
	}).AddRow(
		"abc123", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), "10:00",
		domain.StatusUnconfirmed, "teodor", "simionescu", &phone,
	)

	mock.ExpectQuery(regexp.QuoteMeta(`pgp_sym_decrypt(given_name, $2)`)).
		WithArgs("abc123", testKey).
		WillReturnRows(rows)

	rec, err := repo.FetchDecrypted(context.Background(), tc, "abc123")
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, "abc123", rec.Token)
	assert.Equal(t, "teodor", rec.GivenName)
	assert.Equal(t, "simionescu", rec.FamilyName)
	assert.Equal(t, "+40721000001", rec.Phone)
	assert.Equal(t, "10:00", rec.StartTime)
	assert.Equal(t, domain.StatusUnconfirmed, rec.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchDecryptedNullPhone(t *testing.T) {
	mock, tc := newTestPool(t)
	repo := postgres.NewConfirmationRepo()

	rows := pgxmock.NewRows([]string{
		"token", "appointment_date", "start_time", "status",
		"given_name", "family_name", "phone",
	}).AddRow(
		"abc123", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), "10:00",
		domain.StatusUnconfirmed, "teodor", "simionescu", (*string)(nil),
	)

	mock.ExpectQuery(regexp.QuoteMeta(`pgp_sym_decrypt(given_name, $2)`)).
		WithArgs("abc123", testKey).
		WillReturnRows(rows)

	rec, err := repo.FetchDecrypted(context.Background(), tc, "abc123")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Empty(t, rec.Phone)
}

func TestFetchDecryptedNoRows(t *testing.T) {
	mock, tc := newTestPool(t)
	repo := postgres.NewConfirmationRepo()

	mock.ExpectQuery(regexp.QuoteMeta(`pgp_sym_decrypt(given_name, $2)`)).
		WithArgs("zzz000", testKey).
		WillReturnError(pgx.ErrNoRows)

	rec, err := repo.FetchDecrypted(context.Background(), tc, "zzz000")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestFetchDecryptedWrongKey(t *testing.T) {
	mock, tc := newTestPool(t)
	repo := postgres.NewConfirmationRepo()

	mock.ExpectQuery(regexp.QuoteMeta(`pgp_sym_decrypt(given_name, $2)`)).
		WithArgs("abc123", testKey).
		WillReturnError(&pgconn.PgError{Code: "39000", Message: "Wrong key or corrupt data"})

	_, err := repo.FetchDecrypted(context.Background(), tc, "abc123")
	assert.ErrorIs(t, err, domain.ErrDecryptFailed)
}

func TestFetchDecryptedConnectionFailure(t *testing.T) {
	mock, tc := newTestPool(t)
	repo := postgres.NewConfirmationRepo()

	mock.ExpectQuery(regexp.QuoteMeta(`pgp_sym_decrypt(given_name, $2)`)).
		WithArgs("abc123", testKey).
		WillReturnError(&pgconn.PgError{Code: "08006", Message: "connection failure"})

	_, err := repo.FetchDecrypted(context.Background(), tc, "abc123")
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
}

func TestFetchDecryptedTimeout(t *testing.T) {
	mock, tc := newTestPool(t)
	repo := postgres.NewConfirmationRepo()

	mock.ExpectQuery(regexp.QuoteMeta(`pgp_sym_decrypt(given_name, $2)`)).
		WithArgs("abc123", testKey).
		WillReturnError(context.DeadlineExceeded)

	_, err := repo.FetchDecrypted(context.Background(), tc, "abc123")
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
}

func TestUpdateStatusIfUnconfirmed(t *testing.T) {
	mock, tc := newTestPool(t)
	repo := postgres.NewConfirmationRepo()

	mock.ExpectExec(regexp.QuoteMeta(`status='unconfirmed'`)).
		WithArgs("abc123", domain.StatusCancelled).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	committed, err := repo.UpdateStatusIfUnconfirmed(context.Background(), tc, "abc123", domain.StatusCancelled)
	require.NoError(t, err)
	assert.True(t, committed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusIfUnconfirmedAlreadyFinalized(t *testing.T) {
	mock, tc := newTestPool(t)
	repo := postgres.NewConfirmationRepo()

	// Predicate misses: the record is gone or no longer unconfirmed.
	mock.ExpectExec(regexp.QuoteMeta(`status='unconfirmed'`)).
		WithArgs("abc123", domain.StatusConfirmed).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	committed, err := repo.UpdateStatusIfUnconfirmed(context.Background(), tc, "abc123", domain.StatusConfirmed)
	require.NoError(t, err)
	assert.False(t, committed)
}

func TestUpdateStatusIfUnconfirmedStorageDown(t *testing.T) {
	mock, tc := newTestPool(t)
	repo := postgres.NewConfirmationRepo()

	mock.ExpectExec(regexp.QuoteMeta(`status='unconfirmed'`)).
		WithArgs("abc123", domain.StatusConfirmed).
		WillReturnError(&pgconn.PgError{Code: "08000", Message: "connection exception"})

	_, err := repo.UpdateStatusIfUnconfirmed(context.Background(), tc, "abc123", domain.StatusConfirmed)
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
}

func TestGetStatus(t *testing.T) {
	mock, tc := newTestPool(t)
	repo := postgres.NewConfirmationRepo()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT status FROM patient_confirmations`)).
		WithArgs("abc123").
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow(domain.StatusConfirmed))

	status, found, err := repo.GetStatus(context.Background(), tc, "abc123")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, domain.StatusConfirmed, status)
}

func TestGetStatusNotFound(t *testing.T) {
	mock, tc := newTestPool(t)
	repo := postgres.NewConfirmationRepo()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT status FROM patient_confirmations`)).
		WithArgs("zzz000").
		WillReturnError(pgx.ErrNoRows)

	_, found, err := repo.GetStatus(context.Background(), tc, "zzz000")
	require.NoError(t, err)
	assert.False(t, found)
}
