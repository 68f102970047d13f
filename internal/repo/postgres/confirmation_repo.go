package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/medsched/confirmlink/internal/domain"
	"github.com/medsched/confirmlink/internal/tenant"
)

// ConfirmationRepo is the encrypted record store adapter. Decryption
// happens inside the fetch query with the tenant's key, so plaintext PII
// exists only in the returned record for the life of the request.
type ConfirmationRepo interface {
	FetchDecrypted(ctx context.Context, tc *tenant.Context, token string) (*domain.ConfirmationRecord, error)
	UpdateStatusIfUnconfirmed(ctx context.Context, tc *tenant.Context, token string, status domain.Status) (bool, error)
	GetStatus(ctx context.Context, tc *tenant.Context, token string) (domain.Status, bool, error)
}

type ConfirmationRepoImpl struct{}

func NewConfirmationRepo() *ConfirmationRepoImpl { return &ConfirmationRepoImpl{} }

const fetchQuery = `SELECT token, appointment_date, start_time, status,
pgp_sym_decrypt(given_name, $2) AS given_name,
pgp_sym_decrypt(family_name, $2) AS family_name,
pgp_sym_decrypt(phone, $2) AS phone
FROM patient_confirmations WHERE token=$1`

func (r *ConfirmationRepoImpl) FetchDecrypted(ctx context.Context, tc *tenant.Context, token string) (*domain.ConfirmationRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var (
		rec   domain.ConfirmationRecord
		phone *string
	)
	err := tc.Pool().QueryRow(ctx, fetchQuery, token, tc.Key()).Scan(
		&rec.Token, &rec.AppointmentDate, &rec.StartTime, &rec.Status,
		&rec.GivenName, &rec.FamilyName, &phone,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err)
	}

	if phone != nil {
		rec.Phone = *phone
	}
	return &rec, nil
}

func (r *ConfirmationRepoImpl) UpdateStatusIfUnconfirmed(ctx context.Context, tc *tenant.Context, token string, status domain.Status) (bool, error) {
	// The predicate carries the expected prior status so the store itself
	// enforces exactly-once; a prior read would race.
	const q = `UPDATE patient_confirmations SET status=$2, updated_at=now()
WHERE token=$1 AND status='unconfirmed'`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	ct, err := tc.Pool().Exec(ctx, q, token, status)
	if err != nil {
		return false, classify(err)
	}
	return ct.RowsAffected() == 1, nil
}

func (r *ConfirmationRepoImpl) GetStatus(ctx context.Context, tc *tenant.Context, token string) (domain.Status, bool, error) {
	const q = `SELECT status FROM patient_confirmations WHERE token=$1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var status domain.Status
	err := tc.Pool().QueryRow(ctx, q, token).Scan(&status)
	if err == pgx.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, classify(err)
	}
	return status, true, nil
}

// classify maps storage errors onto the domain taxonomy: pgcrypto
// decryption failures (SQLSTATE 39000) are configuration defects, timeouts
// and connection failures are retryable, everything else passes through.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "39000" {
			return fmt.Errorf("%w: %s", domain.ErrDecryptFailed, pgErr.Message)
		}
		if strings.HasPrefix(pgErr.Code, "08") {
			return fmt.Errorf("%w: %s", domain.ErrStorageUnavailable, pgErr.Message)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return err
}

var _ ConfirmationRepo = (*ConfirmationRepoImpl)(nil)
