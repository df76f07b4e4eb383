package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ftpledger/ledger-api/internal/domain"
	"github.com/ftpledger/ledger-api/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var accountCols = []string{"id", "owner_id", "balance", "created_at", "updated_at"}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestAccountStore_Create(t *testing.T) {
	db, mock := newMock(t)
	s := NewPostgresAccountStore(db, nil)
	account, err := domain.NewAccount(uuid.New(), decimal.RequireFromString("100.00"))
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO accounts")).
		WithArgs(account.ID, account.OwnerID, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Create(context.Background(), account))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountStore_CreateRejectsInvalid(t *testing.T) {
	db, mock := newMock(t)
	s := NewPostgresAccountStore(db, nil)

	err := s.Create(context.Background(), &domain.Account{ID: uuid.New(), OwnerID: uuid.New(), Balance: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, domain.ErrNegativeBalance)
	assert.NoError(t, mock.ExpectationsWereMet(), "no SQL issued")
}

func TestAccountStore_GetByID(t *testing.T) {
	db, mock := newMock(t)
	s := NewPostgresAccountStore(db, nil)
	id, owner := uuid.New(), uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM accounts WHERE id = $1")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(accountCols).AddRow(id.String(), owner.String(), "250.50", now, now))

	account, err := s.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, account.ID)
	assert.Equal(t, owner, account.OwnerID)
	assert.True(t, account.Balance.Equal(decimal.RequireFromString("250.50")))

	mock.ExpectQuery(regexp.QuoteMeta("FROM accounts WHERE id = $1")).
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)
	_, err = s.GetByID(context.Background(), id)
	assert.ErrorIs(t, err, store.ErrAccountNotFound)

	mock.ExpectQuery(regexp.QuoteMeta("FROM accounts WHERE id = $1")).
		WithArgs(id).
		WillReturnError(errors.New("connection reset by peer"))
	_, err = s.GetByID(context.Background(), id)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountStore_GetForUpdateLocksRow(t *testing.T) {
	db, mock := newMock(t)
	s := NewPostgresAccountStore(db, nil)
	id := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1 FOR UPDATE")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(accountCols).AddRow(id.String(), uuid.NewString(), "10.00", now, now))

	_, err := s.GetForUpdate(context.Background(), id)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountStore_List(t *testing.T) {
	db, mock := newMock(t)
	s := NewPostgresAccountStore(db, nil)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM accounts ORDER BY created_at, id")).
		WillReturnRows(sqlmock.NewRows(accountCols))
	empty, err := s.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	mock.ExpectQuery(regexp.QuoteMeta("FROM accounts ORDER BY created_at, id")).
		WillReturnRows(sqlmock.NewRows(accountCols).
			AddRow(uuid.NewString(), uuid.NewString(), "1.00", now, now).
			AddRow(uuid.NewString(), uuid.NewString(), "2.00", now, now))
	all, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountStore_AdjustBalance(t *testing.T) {
	db, mock := newMock(t)
	s := NewPostgresAccountStore(db, nil)
	id := uuid.New()
	now := time.Now().UTC()
	query := regexp.QuoteMeta("SET balance = balance + $1")

	mock.ExpectQuery(query).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), id).
		WillReturnRows(sqlmock.NewRows(accountCols).AddRow(id.String(), uuid.NewString(), "70.00", now, now))
	account, err := s.AdjustBalance(context.Background(), id, decimal.RequireFromString("-30.00"))
	require.NoError(t, err)
	assert.True(t, account.Balance.Equal(decimal.NewFromInt(70)))

	mock.ExpectQuery(query).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), id).
		WillReturnError(&pgconn.PgError{Code: checkViolationCode, ConstraintName: balanceConstraint})
	_, err = s.AdjustBalance(context.Background(), id, decimal.RequireFromString("-500.00"))
	assert.ErrorIs(t, err, domain.ErrNegativeBalance)

	mock.ExpectQuery(query).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), id).
		WillReturnError(sql.ErrNoRows)
	_, err = s.AdjustBalance(context.Background(), id, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, store.ErrAccountNotFound)

	mock.ExpectQuery(query).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), id).
		WillReturnError(&pgconn.PgError{Code: deadlockDetectedCode})
	_, err = s.AdjustBalance(context.Background(), id, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, domain.ErrConflict)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountStore_Update(t *testing.T) {
	db, mock := newMock(t)
	s := NewPostgresAccountStore(db, nil)
	account := &domain.Account{ID: uuid.New(), OwnerID: uuid.New(), Balance: decimal.NewFromInt(5)}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE accounts")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), account.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.Update(context.Background(), account))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE accounts")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), account.ID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, s.Update(context.Background(), account), store.ErrAccountNotFound)

	account.Balance = decimal.NewFromInt(-5)
	assert.ErrorIs(t, s.Update(context.Background(), account), domain.ErrNegativeBalance)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountStore_Delete(t *testing.T) {
	db, mock := newMock(t)
	s := NewPostgresAccountStore(db, nil)
	id := uuid.New()
	query := regexp.QuoteMeta("DELETE FROM accounts WHERE id = $1")

	mock.ExpectExec(query).WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.Delete(context.Background(), id))

	mock.ExpectExec(query).WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, s.Delete(context.Background(), id), store.ErrAccountNotFound)

	mock.ExpectExec(query).WithArgs(id).
		WillReturnError(&pgconn.PgError{Code: foreignKeyViolationCode, ConstraintName: "transfers_sender_id_fkey"})
	err := s.Delete(context.Background(), id)
	assert.ErrorIs(t, err, store.ErrAccountInUse)
	assert.Equal(t, domain.CodeAccountInUse, domain.CodeOf(err))

	assert.NoError(t, mock.ExpectationsWereMet())
}
