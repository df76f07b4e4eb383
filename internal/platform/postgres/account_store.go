package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/ftpledger/ledger-api/internal/domain"
	"github.com/ftpledger/ledger-api/internal/platform/logger"
	"github.com/ftpledger/ledger-api/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const accountColumns = `id, owner_id, balance, created_at, updated_at`

// PostgresAccountStore implements store.AccountStore on PostgreSQL.
type PostgresAccountStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresAccountStore creates an account store over a connection or a
// transaction managed by the caller. If logger is nil, a default logger is used.
func NewPostgresAccountStore(db store.DBTX, logger *slog.Logger) *PostgresAccountStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresAccountStore{
		db:     db,
		logger: logger.With(slog.String("component", "account_store")),
	}
}

var _ store.AccountStore = (*PostgresAccountStore)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	var a domain.Account
	if err := row.Scan(&a.ID, &a.OwnerID, &a.Balance, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// Create implements store.AccountStore.Create.
func (s *PostgresAccountStore) Create(ctx context.Context, account *domain.Account) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := account.Validate(); err != nil {
		log.Warn("account validation failed during create",
			slog.String("error", err.Error()),
			slog.String("account_id", account.ID.String()))
		return err
	}

	query := `
		INSERT INTO accounts (id, owner_id, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(ctx, query,
		account.ID,
		account.OwnerID,
		account.Balance,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to create account",
			slog.String("error", err.Error()),
			slog.String("account_id", account.ID.String()))
		return wrapError("account", "create", err)
	}

	log.Info("account created",
		slog.String("account_id", account.ID.String()),
		slog.String("owner_id", account.OwnerID.String()))
	return nil
}

// GetByID implements store.AccountStore.GetByID.
func (s *PostgresAccountStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return s.getOne(ctx, "get", query, id)
}

// GetForUpdate implements store.AccountStore.GetForUpdate.
// It must run inside a transaction for the lock to outlive the statement.
func (s *PostgresAccountStore) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`
	return s.getOne(ctx, "get_for_update", query, id)
}

func (s *PostgresAccountStore) getOne(
	ctx context.Context,
	operation, query string,
	id uuid.UUID,
) (*domain.Account, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	account, err := scanAccount(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("account not found",
				slog.String("account_id", id.String()),
				slog.String("operation", operation))
			return nil, store.ErrAccountNotFound
		}
		log.Error("failed to get account",
			slog.String("error", err.Error()),
			slog.String("account_id", id.String()),
			slog.String("operation", operation))
		return nil, wrapError("account", operation, err)
	}
	return account, nil
}

// List implements store.AccountStore.List.
func (s *PostgresAccountStore) List(ctx context.Context) ([]*domain.Account, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY created_at, id`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		log.Error("failed to list accounts", slog.String("error", err.Error()))
		return nil, wrapError("account", "list", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Error("failed to close rows", slog.String("error", closeErr.Error()))
		}
	}()

	accounts := make([]*domain.Account, 0)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			log.Error("failed to scan account row", slog.String("error", err.Error()))
			return nil, wrapError("account", "list", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		log.Error("error iterating account rows", slog.String("error", err.Error()))
		return nil, wrapError("account", "list", err)
	}

	return accounts, nil
}

// Update implements store.AccountStore.Update.
func (s *PostgresAccountStore) Update(ctx context.Context, account *domain.Account) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if account.Balance.IsNegative() {
		return domain.ErrNegativeBalance
	}

	query := `
		UPDATE accounts
		SET balance = $1, updated_at = $2
		WHERE id = $3
	`
	result, err := s.db.ExecContext(ctx, query,
		account.Balance.Round(domain.MoneyScale),
		time.Now().UTC(),
		account.ID,
	)
	if err != nil {
		log.Error("failed to update account",
			slog.String("error", err.Error()),
			slog.String("account_id", account.ID.String()))
		return wrapError("account", "update", err)
	}

	if err := CheckRowsAffected(result, store.ErrAccountNotFound); err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return err
		}
		return wrapError("account", "update", err)
	}
	return nil
}

// AdjustBalance implements store.AccountStore.AdjustBalance.
// The relative update takes the row's write lock, so concurrent adjustments
// of one account serialize in the database and none is lost.
func (s *PostgresAccountStore) AdjustBalance(
	ctx context.Context,
	id uuid.UUID,
	delta decimal.Decimal,
) (*domain.Account, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE accounts
		SET balance = balance + $1, updated_at = $2
		WHERE id = $3
		RETURNING ` + accountColumns

	account, err := scanAccount(s.db.QueryRowContext(ctx, query,
		delta.Round(domain.MoneyScale),
		time.Now().UTC(),
		id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrAccountNotFound
		}
		mapped := MapError(err)
		if errors.Is(mapped, domain.ErrNegativeBalance) {
			log.Warn("balance adjustment rejected",
				slog.String("account_id", id.String()),
				slog.String("delta", delta.String()))
			return nil, domain.ErrNegativeBalance
		}
		log.Error("failed to adjust balance",
			slog.String("error", err.Error()),
			slog.String("account_id", id.String()))
		return nil, wrapError("account", "adjust_balance", err)
	}

	log.Debug("balance adjusted",
		slog.String("account_id", id.String()),
		slog.String("delta", delta.String()),
		slog.String("balance", account.Balance.StringFixed(domain.MoneyScale)))
	return account, nil
}

// Delete implements store.AccountStore.Delete.
func (s *PostgresAccountStore) Delete(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		if IsForeignKeyViolation(err) {
			log.Warn("account is referenced by transfers",
				slog.String("account_id", id.String()))
			return store.ErrAccountInUse
		}
		log.Error("failed to delete account",
			slog.String("error", err.Error()),
			slog.String("account_id", id.String()))
		return wrapError("account", "delete", err)
	}

	if err := CheckRowsAffected(result, store.ErrAccountNotFound); err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return err
		}
		return wrapError("account", "delete", err)
	}

	log.Info("account deleted", slog.String("account_id", id.String()))
	return nil
}
