package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/ftpledger/ledger-api/internal/domain"
	"github.com/ftpledger/ledger-api/internal/platform/logger"
	"github.com/ftpledger/ledger-api/internal/store"
	"github.com/google/uuid"
)

const transferColumns = `id, sender_id, receiver_id, amount, currency, status, created_at`

// PostgresTransferStore implements store.TransferStore on PostgreSQL.
type PostgresTransferStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTransferStore creates a ledger store. If logger is nil, a default logger is used.
func NewPostgresTransferStore(db store.DBTX, logger *slog.Logger) *PostgresTransferStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresTransferStore{
		db:     db,
		logger: logger.With(slog.String("component", "transfer_store")),
	}
}

var _ store.TransferStore = (*PostgresTransferStore)(nil)

func scanTransfer(row rowScanner) (*domain.Transfer, error) {
	var t domain.Transfer
	var currency, status string
	if err := row.Scan(&t.ID, &t.SenderID, &t.ReceiverID, &t.Amount, &currency, &status, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.Currency = domain.Currency(currency)
	t.Status = domain.TransferStatus(status)
	return &t, nil
}

// Create implements store.TransferStore.Create.
func (s *PostgresTransferStore) Create(ctx context.Context, transfer *domain.Transfer) (*domain.Transfer, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := transfer.Validate(); err != nil {
		log.Warn("transfer validation failed during create",
			slog.String("error", err.Error()),
			slog.String("transfer_id", transfer.ID.String()))
		return nil, err
	}

	query := `
		INSERT INTO transfers (id, sender_id, receiver_id, amount, currency, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + transferColumns

	saved, err := scanTransfer(s.db.QueryRowContext(ctx, query,
		transfer.ID,
		transfer.SenderID,
		transfer.ReceiverID,
		transfer.Amount,
		string(transfer.Currency),
		string(transfer.Status),
		transfer.CreatedAt,
	))
	if err != nil {
		log.Error("failed to append transfer",
			slog.String("error", err.Error()),
			slog.String("transfer_id", transfer.ID.String()))
		return nil, wrapError("transfer", "create", err)
	}

	log.Info("transfer recorded",
		slog.String("transfer_id", saved.ID.String()),
		slog.String("status", string(saved.Status)))
	return saved, nil
}

// GetByID implements store.TransferStore.GetByID.
func (s *PostgresTransferStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + transferColumns + ` FROM transfers WHERE id = $1`
	transfer, err := scanTransfer(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("transfer not found", slog.String("transfer_id", id.String()))
			return nil, store.ErrTransferNotFound
		}
		log.Error("failed to get transfer",
			slog.String("error", err.Error()),
			slog.String("transfer_id", id.String()))
		return nil, wrapError("transfer", "get", err)
	}
	return transfer, nil
}

// List implements store.TransferStore.List.
func (s *PostgresTransferStore) List(ctx context.Context) ([]*domain.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers ORDER BY created_at, id`
	return s.query(ctx, "list", query)
}

// ListByAccount implements store.TransferStore.ListByAccount.
func (s *PostgresTransferStore) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*domain.Transfer, error) {
	query := `
		SELECT ` + transferColumns + `
		FROM transfers
		WHERE sender_id = $1 OR receiver_id = $1
		ORDER BY created_at, id
	`
	return s.query(ctx, "list_by_account", query, accountID)
}

func (s *PostgresTransferStore) query(
	ctx context.Context,
	operation, query string,
	args ...any,
) ([]*domain.Transfer, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query transfers",
			slog.String("error", err.Error()),
			slog.String("operation", operation))
		return nil, wrapError("transfer", operation, err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Error("failed to close rows", slog.String("error", closeErr.Error()))
		}
	}()

	transfers := make([]*domain.Transfer, 0)
	for rows.Next() {
		transfer, err := scanTransfer(rows)
		if err != nil {
			log.Error("failed to scan transfer row", slog.String("error", err.Error()))
			return nil, wrapError("transfer", operation, err)
		}
		transfers = append(transfers, transfer)
	}
	if err := rows.Err(); err != nil {
		log.Error("error iterating transfer rows", slog.String("error", err.Error()))
		return nil, wrapError("transfer", operation, err)
	}

	return transfers, nil
}
