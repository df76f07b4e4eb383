package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ftpledger/ledger-api/internal/domain"
	"github.com/ftpledger/ledger-api/internal/platform/logger"
	"github.com/ftpledger/ledger-api/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountService provisions and removes accounts.
type AccountService interface {
	CreateAccount(ctx context.Context, ownerID uuid.UUID, initialBalance decimal.Decimal) (*domain.Account, error)
	GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	ListAccounts(ctx context.Context) ([]*domain.Account, error)
	// DeleteAccount fails with domain.ErrAccountInUse while ledger entries
	// reference the account.
	DeleteAccount(ctx context.Context, id uuid.UUID) error
}

type accountServiceImpl struct {
	accounts store.AccountStore
	logger   *slog.Logger
}

// NewAccountService creates an AccountService.
func NewAccountService(accounts store.AccountStore, logger *slog.Logger) (AccountService, error) {
	if accounts == nil {
		return nil, domain.NewValidationError("accounts", "cannot be nil", nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &accountServiceImpl{
		accounts: accounts,
		logger:   logger.With(slog.String("component", "account_service")),
	}, nil
}

// CreateAccount implements AccountService.
func (s *accountServiceImpl) CreateAccount(
	ctx context.Context,
	ownerID uuid.UUID,
	initialBalance decimal.Decimal,
) (*domain.Account, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	account, err := domain.NewAccount(ownerID, initialBalance)
	if err != nil {
		log.Warn("invalid account", slog.String("error", err.Error()))
		return nil, NewAccountServiceError("create_account", "invalid account", err)
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		log.Error("failed to save account",
			slog.String("account_id", account.ID.String()),
			slog.String("error", err.Error()))
		return nil, NewAccountServiceError("create_account", "failed to save account", err)
	}

	log.Info("account created",
		slog.String("account_id", account.ID.String()),
		slog.String("owner_id", ownerID.String()))
	return account, nil
}

// GetAccount implements AccountService.
func (s *accountServiceImpl) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return nil, NewAccountServiceError("get_account", "account not found", err)
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get account",
			slog.String("account_id", id.String()),
			slog.String("error", err.Error()))
		return nil, NewAccountServiceError("get_account", "failed to retrieve account", err)
	}
	return account, nil
}

// ListAccounts implements AccountService.
func (s *accountServiceImpl) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	accounts, err := s.accounts.List(ctx)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to list accounts",
			slog.String("error", err.Error()))
		return nil, NewAccountServiceError("list_accounts", "failed to list accounts", err)
	}
	return accounts, nil
}

// DeleteAccount implements AccountService.
func (s *accountServiceImpl) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := s.accounts.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, store.ErrAccountNotFound):
			return NewAccountServiceError("delete_account", "account not found", err)
		case errors.Is(err, domain.ErrAccountInUse):
			log.Warn("refusing to delete referenced account", slog.String("account_id", id.String()))
			return NewAccountServiceError("delete_account", "account has ledger entries", err)
		default:
			log.Error("failed to delete account",
				slog.String("account_id", id.String()),
				slog.String("error", err.Error()))
			return NewAccountServiceError("delete_account", "failed to delete account", err)
		}
	}

	log.Info("account deleted", slog.String("account_id", id.String()))
	return nil
}
