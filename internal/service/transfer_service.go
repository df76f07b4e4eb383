package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/ftpledger/ledger-api/internal/domain"
	"github.com/ftpledger/ledger-api/internal/events"
	"github.com/ftpledger/ledger-api/internal/locking"
	"github.com/ftpledger/ledger-api/internal/platform/logger"
	"github.com/ftpledger/ledger-api/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateTransferInput is a transfer request.
type CreateTransferInput struct {
	SenderID   uuid.UUID
	ReceiverID uuid.UUID
	Amount     decimal.Decimal
	Currency   domain.Currency
}

// TransferService executes transfers and reads the ledger.
type TransferService interface {
	// CreateTransfer moves Amount from sender to receiver and records a
	// COMPLETED ledger entry, all in one unit of work. On any error no
	// balance changes and no entry is written.
	CreateTransfer(ctx context.Context, in CreateTransferInput) (*domain.Transfer, error)

	// GetTransfer returns one ledger entry.
	GetTransfer(ctx context.Context, id uuid.UUID) (*domain.Transfer, error)

	// ListTransfers returns the whole ledger ordered by creation time, then
	// id. Creation time comes from the application clock, so entries written
	// by different instances are not guaranteed to appear in commit order.
	ListTransfers(ctx context.Context) ([]*domain.Transfer, error)

	// ListAccountTransfers returns entries where the account is either side.
	ListAccountTransfers(ctx context.Context, accountID uuid.UUID) ([]*domain.Transfer, error)
}

type transferServiceImpl struct {
	uow       store.UnitOfWork
	transfers store.TransferStore
	accounts  store.AccountStore
	locker    locking.Locker
	limits    domain.AmountLimits
	emitter   events.EventEmitter
	logger    *slog.Logger
}

// NewTransferService wires the orchestrator. emitter may be nil.
func NewTransferService(
	stores store.Stores,
	locker locking.Locker,
	limits domain.AmountLimits,
	emitter events.EventEmitter,
	logger *slog.Logger,
) (TransferService, error) {
	if stores.UoW == nil {
		return nil, domain.NewValidationError("uow", "cannot be nil", nil)
	}
	if stores.Transfers == nil {
		return nil, domain.NewValidationError("transfers", "cannot be nil", nil)
	}
	if stores.Accounts == nil {
		return nil, domain.NewValidationError("accounts", "cannot be nil", nil)
	}
	if locker == nil {
		return nil, domain.NewValidationError("locker", "cannot be nil", nil)
	}
	if limits.Min.IsZero() && limits.Max.IsZero() {
		limits = domain.DefaultAmountLimits()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &transferServiceImpl{
		uow:       stores.UoW,
		transfers: stores.Transfers,
		accounts:  stores.Accounts,
		locker:    locker,
		limits:    limits,
		emitter:   emitter,
		logger: logger.With(
			slog.String("component", "transfer_service"),
			slog.String("lock_strategy", string(locker.Strategy())),
		),
	}, nil
}

// validate runs every check that needs no store access.
func (s *transferServiceImpl) validate(in CreateTransferInput) error {
	if in.SenderID == uuid.Nil {
		return domain.NewValidationError("sender_id", "cannot be empty", domain.ErrInvalidID)
	}
	if in.ReceiverID == uuid.Nil {
		return domain.NewValidationError("receiver_id", "cannot be empty", domain.ErrInvalidID)
	}
	if err := s.limits.Check(in.Amount); err != nil {
		return err
	}
	if !in.Currency.IsValid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidCurrency, in.Currency)
	}
	if in.SenderID == in.ReceiverID {
		return domain.ErrSameAccount
	}
	return nil
}

// CreateTransfer implements TransferService.
func (s *transferServiceImpl) CreateTransfer(
	ctx context.Context,
	in CreateTransferInput,
) (*domain.Transfer, error) {
	log := logger.FromContextOrDefault(ctx, s.logger).With(
		slog.String("sender_id", in.SenderID.String()),
		slog.String("receiver_id", in.ReceiverID.String()),
		slog.String("amount", in.Amount.String()),
	)

	if err := s.validate(in); err != nil {
		log.Warn("transfer rejected", slog.String("error", err.Error()))
		return nil, NewTransferServiceError("create_transfer", "invalid request", err)
	}

	// The handle is released after Do returns, so an in-process lock is held
	// until the transaction has committed or rolled back.
	var handle locking.Handle
	defer func() {
		if handle != nil {
			handle.Unlock(context.WithoutCancel(ctx))
		}
	}()

	var recorded *domain.Transfer
	err := s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		h, err := s.locker.Lock(ctx, tx.Accounts(), in.SenderID)
		if err != nil {
			return err
		}
		handle = h

		sender, err := tx.Accounts().GetByID(ctx, in.SenderID)
		if err != nil {
			return fmt.Errorf("load sender: %w", err)
		}
		receiver, err := tx.Accounts().GetByID(ctx, in.ReceiverID)
		if err != nil {
			return fmt.Errorf("load receiver: %w", err)
		}

		if err := sender.Debit(in.Amount); err != nil {
			return err
		}
		if err := receiver.Credit(in.Amount); err != nil {
			return err
		}

		if err := applyDeltas(ctx, tx.Accounts(), map[uuid.UUID]decimal.Decimal{
			sender.ID:   in.Amount.Neg(),
			receiver.ID: in.Amount,
		}); err != nil {
			return err
		}

		transfer, err := domain.NewTransfer(in.SenderID, in.ReceiverID, in.Amount, in.Currency)
		if err != nil {
			return err
		}
		recorded, err = tx.Transfers().Create(ctx, transfer)
		return err
	})
	if err != nil {
		level := slog.LevelWarn
		if domain.CodeOf(err) == domain.CodeStoreUnavailable || domain.CodeOf(err) == domain.CodeInternal {
			level = slog.LevelError
		}
		log.Log(ctx, level, "transfer failed",
			slog.String("error", err.Error()),
			slog.String("code", string(domain.CodeOf(err))))
		return nil, NewTransferServiceError("create_transfer", "transfer not applied", err)
	}

	log.Info("transfer completed", slog.String("transfer_id", recorded.ID.String()))
	s.emitCompleted(ctx, recorded)
	return recorded, nil
}

// applyDeltas adjusts balances in account id order so that transfers holding
// only in-process locks always take row locks in the same order.
func applyDeltas(
	ctx context.Context,
	accounts store.AccountStore,
	deltas map[uuid.UUID]decimal.Decimal,
) error {
	ids := make([]uuid.UUID, 0, len(deltas))
	for id := range deltas {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})

	for _, id := range ids {
		if _, err := accounts.AdjustBalance(ctx, id, deltas[id]); err != nil {
			return fmt.Errorf("adjust balance of %s: %w", id, err)
		}
	}
	return nil
}

// emitCompleted announces a committed transfer. Failures are logged only:
// the transfer itself has already been applied.
func (s *transferServiceImpl) emitCompleted(ctx context.Context, t *domain.Transfer) {
	if s.emitter == nil {
		return
	}
	log := logger.FromContextOrDefault(ctx, s.logger)

	event, err := events.NewTransferCompletedEvent(t)
	if err != nil {
		log.Error("failed to build transfer event", slog.String("error", err.Error()))
		return
	}
	if err := s.emitter.EmitEvent(ctx, event); err != nil {
		log.Warn("failed to emit transfer event",
			slog.String("transfer_id", t.ID.String()),
			slog.String("error", err.Error()))
	}
}

// GetTransfer implements TransferService.
func (s *transferServiceImpl) GetTransfer(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	transfer, err := s.transfers.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrTransferNotFound) {
			return nil, NewTransferServiceError("get_transfer", "transfer not found", err)
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get transfer",
			slog.String("transfer_id", id.String()),
			slog.String("error", err.Error()))
		return nil, NewTransferServiceError("get_transfer", "failed to retrieve transfer", err)
	}
	return transfer, nil
}

// ListTransfers implements TransferService.
func (s *transferServiceImpl) ListTransfers(ctx context.Context) ([]*domain.Transfer, error) {
	transfers, err := s.transfers.List(ctx)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to list transfers",
			slog.String("error", err.Error()))
		return nil, NewTransferServiceError("list_transfers", "failed to load ledger", err)
	}
	return transfers, nil
}

// ListAccountTransfers implements TransferService.
func (s *transferServiceImpl) ListAccountTransfers(
	ctx context.Context,
	accountID uuid.UUID,
) ([]*domain.Transfer, error) {
	if _, err := s.accounts.GetByID(ctx, accountID); err != nil {
		return nil, NewTransferServiceError("list_account_transfers", "account lookup failed", err)
	}
	transfers, err := s.transfers.ListByAccount(ctx, accountID)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to list account transfers",
			slog.String("account_id", accountID.String()),
			slog.String("error", err.Error()))
		return nil, NewTransferServiceError("list_account_transfers", "failed to load ledger", err)
	}
	return transfers, nil
}
