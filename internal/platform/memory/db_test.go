package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ftpledger/ledger-api/internal/domain"
	"github.com/ftpledger/ledger-api/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedAccount(t *testing.T, stores store.Stores, balance string) *domain.Account {
	t.Helper()
	account, err := domain.NewAccount(uuid.New(), dec(balance))
	require.NoError(t, err)
	require.NoError(t, stores.Accounts.Create(context.Background(), account))
	return account
}

func TestAccountStore_CRUD(t *testing.T) {
	ctx := context.Background()
	stores := New(nil).Stores()

	account := seedAccount(t, stores, "100.00")

	got, err := stores.Accounts.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(dec("100")))

	err = stores.Accounts.Create(ctx, account)
	assert.ErrorIs(t, err, store.ErrDuplicate)

	got.Balance = dec("42.50")
	require.NoError(t, stores.Accounts.Update(ctx, got))
	reloaded, err := stores.Accounts.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.Balance.Equal(dec("42.50")))

	got.Balance = dec("-1")
	assert.ErrorIs(t, stores.Accounts.Update(ctx, got), domain.ErrNegativeBalance)

	require.NoError(t, stores.Accounts.Delete(ctx, account.ID))
	_, err = stores.Accounts.GetByID(ctx, account.ID)
	assert.ErrorIs(t, err, store.ErrAccountNotFound)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	assert.ErrorIs(t, stores.Accounts.Delete(ctx, account.ID), store.ErrAccountNotFound)
}

func TestAccountStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	stores := New(nil).Stores()
	account := seedAccount(t, stores, "10.00")

	got, err := stores.Accounts.GetByID(ctx, account.ID)
	require.NoError(t, err)
	got.Balance = dec("999")

	again, err := stores.Accounts.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, again.Balance.Equal(dec("10")))
}

func TestAccountStore_AdjustBalance(t *testing.T) {
	ctx := context.Background()
	stores := New(nil).Stores()
	account := seedAccount(t, stores, "50.00")

	updated, err := stores.Accounts.AdjustBalance(ctx, account.ID, dec("-20.00"))
	require.NoError(t, err)
	assert.True(t, updated.Balance.Equal(dec("30")))

	_, err = stores.Accounts.AdjustBalance(ctx, account.ID, dec("-30.01"))
	assert.ErrorIs(t, err, domain.ErrNegativeBalance)

	_, err = stores.Accounts.AdjustBalance(ctx, uuid.New(), dec("1"))
	assert.ErrorIs(t, err, store.ErrAccountNotFound)

	got, err := stores.Accounts.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(dec("30")), "failed adjustment leaves balance intact")
}

func TestAccountStore_ListOrdered(t *testing.T) {
	ctx := context.Background()
	stores := New(nil).Stores()

	empty, err := stores.Accounts.List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	first := seedAccount(t, stores, "1")
	time.Sleep(time.Millisecond)
	second := seedAccount(t, stores, "2")

	all, err := stores.Accounts.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first.ID, all[0].ID)
	assert.Equal(t, second.ID, all[1].ID)
}

func TestUnitOfWork_RollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	db := New(nil)
	stores := db.Stores()
	sender := seedAccount(t, stores, "100.00")
	receiver := seedAccount(t, stores, "0.00")

	boom := errors.New("boom")
	err := db.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.Accounts().AdjustBalance(ctx, sender.ID, dec("-40"))
		require.NoError(t, err)
		_, err = tx.Accounts().AdjustBalance(ctx, receiver.ID, dec("40"))
		require.NoError(t, err)

		transfer, err := domain.NewTransfer(sender.ID, receiver.ID, dec("40"), domain.CurrencyUSD)
		require.NoError(t, err)
		_, err = tx.Transfers().Create(ctx, transfer)
		require.NoError(t, err)

		// Own writes are visible inside the transaction.
		own, err := tx.Accounts().GetByID(ctx, sender.ID)
		require.NoError(t, err)
		assert.True(t, own.Balance.Equal(dec("60")))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := stores.Accounts.GetByID(ctx, sender.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(dec("100")))

	transfers, err := stores.Transfers.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, transfers)
}

func TestUnitOfWork_PanicRollsBackAndReleasesLocks(t *testing.T) {
	ctx := context.Background()
	db := New(nil, WithLockWait(50*time.Millisecond))
	stores := db.Stores()
	account := seedAccount(t, stores, "10")

	assert.Panics(t, func() {
		_ = db.Do(ctx, func(ctx context.Context, tx store.Tx) error {
			_, _ = tx.Accounts().GetForUpdate(ctx, account.ID)
			panic("test panic")
		})
	})

	_, err := stores.Accounts.AdjustBalance(ctx, account.ID, dec("1"))
	assert.NoError(t, err, "row lock was released by the rollback")
}

func TestRowLock_BlocksUntilCommit(t *testing.T) {
	ctx := context.Background()
	db := New(nil)
	stores := db.Stores()
	account := seedAccount(t, stores, "100")

	locked := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = db.Do(ctx, func(ctx context.Context, tx store.Tx) error {
			if _, err := tx.Accounts().GetForUpdate(ctx, account.ID); err != nil {
				return err
			}
			if _, err := tx.Accounts().AdjustBalance(ctx, account.ID, dec("-60")); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()

	<-locked
	done := make(chan *domain.Account)
	go func() {
		var seen *domain.Account
		_ = db.Do(ctx, func(ctx context.Context, tx store.Tx) error {
			a, err := tx.Accounts().GetForUpdate(ctx, account.ID)
			seen = a
			return err
		})
		done <- seen
	}()

	select {
	case <-done:
		t.Fatal("second transaction acquired a held row lock")
	case <-time.After(30 * time.Millisecond):
	}

	close(release)
	seen := <-done
	wg.Wait()
	require.NotNil(t, seen)
	assert.True(t, seen.Balance.Equal(dec("40")), "waiter reads the committed balance")
}

func TestRowLock_Timeout(t *testing.T) {
	ctx := context.Background()
	db := New(nil, WithLockWait(20*time.Millisecond))
	stores := db.Stores()
	account := seedAccount(t, stores, "100")

	err := db.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.Accounts().GetForUpdate(ctx, account.ID)
		require.NoError(t, err)

		_, err = stores.Accounts.AdjustBalance(ctx, account.ID, dec("1"))
		assert.ErrorIs(t, err, store.ErrLockTimeout)
		assert.Equal(t, domain.CodeConflict, domain.CodeOf(err))
		return nil
	})
	require.NoError(t, err)
}

func TestRowLock_ContextCancelled(t *testing.T) {
	db := New(nil)
	stores := db.Stores()
	account := seedAccount(t, stores, "100")

	err := db.Do(context.Background(), func(ctx context.Context, tx store.Tx) error {
		_, err := tx.Accounts().GetForUpdate(ctx, account.ID)
		require.NoError(t, err)

		waitCtx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err = stores.Accounts.GetForUpdate(waitCtx, account.ID)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		return nil
	})
	require.NoError(t, err)
}

func TestAccountStore_DeleteReferencedAccount(t *testing.T) {
	ctx := context.Background()
	stores := New(nil).Stores()
	sender := seedAccount(t, stores, "10")
	receiver := seedAccount(t, stores, "0")

	transfer, err := domain.NewTransfer(sender.ID, receiver.ID, dec("5"), domain.CurrencyEUR)
	require.NoError(t, err)
	_, err = stores.Transfers.Create(ctx, transfer)
	require.NoError(t, err)

	err = stores.Accounts.Delete(ctx, receiver.ID)
	assert.ErrorIs(t, err, store.ErrAccountInUse)
	assert.ErrorIs(t, err, domain.ErrAccountInUse)
}

// holdInTx runs fn inside a transaction on its own goroutine and keeps the
// transaction open until the returned release func is called.
func holdInTx(t *testing.T, db *DB, fn func(ctx context.Context, tx store.Tx) error) (release func() error) {
	t.Helper()
	ready := make(chan struct{})
	proceed := make(chan struct{})
	result := make(chan error, 1)
	go func() {
		result <- db.Do(context.Background(), func(ctx context.Context, tx store.Tx) error {
			err := fn(ctx, tx)
			close(ready)
			if err != nil {
				return err
			}
			<-proceed
			return nil
		})
	}()
	<-ready
	return func() error {
		close(proceed)
		return <-result
	}
}

func TestAccountStore_CreateAfterConcurrentCreate(t *testing.T) {
	ctx := context.Background()
	db := New(nil)
	stores := db.Stores()

	account, err := domain.NewAccount(uuid.New(), dec("500.00"))
	require.NoError(t, err)

	release := holdInTx(t, db, func(ctx context.Context, tx store.Tx) error {
		return tx.Accounts().Create(ctx, account)
	})

	duplicate := *account
	duplicate.Balance = decimal.Zero
	second := make(chan error, 1)
	go func() { second <- stores.Accounts.Create(ctx, &duplicate) }()

	select {
	case err := <-second:
		t.Fatalf("duplicate create did not wait for the first creator: %v", err)
	case <-time.After(30 * time.Millisecond):
	}

	require.NoError(t, release())
	assert.ErrorIs(t, <-second, store.ErrDuplicate)

	got, err := stores.Accounts.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(dec("500")), "committed row is not overwritten")
}

func TestAccountStore_UpdateAfterConcurrentDelete(t *testing.T) {
	ctx := context.Background()
	db := New(nil)
	stores := db.Stores()
	account := seedAccount(t, stores, "10.00")

	release := holdInTx(t, db, func(ctx context.Context, tx store.Tx) error {
		return tx.Accounts().Delete(ctx, account.ID)
	})

	stale := *account
	stale.Balance = dec("99.00")
	updated := make(chan error, 1)
	go func() { updated <- stores.Accounts.Update(ctx, &stale) }()

	select {
	case err := <-updated:
		t.Fatalf("update did not wait for the delete: %v", err)
	case <-time.After(30 * time.Millisecond):
	}

	require.NoError(t, release())
	assert.ErrorIs(t, <-updated, store.ErrAccountNotFound)

	_, err := stores.Accounts.GetByID(ctx, account.ID)
	assert.ErrorIs(t, err, store.ErrAccountNotFound, "deleted account stays deleted")
}

func TestAccountStore_DeleteAfterConcurrentDelete(t *testing.T) {
	ctx := context.Background()
	db := New(nil)
	stores := db.Stores()
	account := seedAccount(t, stores, "10.00")

	release := holdInTx(t, db, func(ctx context.Context, tx store.Tx) error {
		return tx.Accounts().Delete(ctx, account.ID)
	})

	second := make(chan error, 1)
	go func() { second <- stores.Accounts.Delete(ctx, account.ID) }()
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, release())
	assert.ErrorIs(t, <-second, store.ErrAccountNotFound)
}

func TestRowLock_WaitsUntilReleasedByDefault(t *testing.T) {
	ctx := context.Background()
	db := New(nil)
	stores := db.Stores()
	account := seedAccount(t, stores, "100")

	release := holdInTx(t, db, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.Accounts().GetForUpdate(ctx, account.ID)
		return err
	})

	adjusted := make(chan error, 1)
	go func() {
		_, err := stores.Accounts.AdjustBalance(ctx, account.ID, dec("-25"))
		adjusted <- err
	}()

	// Well past any previous default bound on lock waits.
	select {
	case err := <-adjusted:
		t.Fatalf("waiter gave up while the row was held: %v", err)
	case <-time.After(300 * time.Millisecond):
	}

	require.NoError(t, release())
	require.NoError(t, <-adjusted)

	got, err := stores.Accounts.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(dec("75")))
}

func TestRowLock_DeadlockDetected(t *testing.T) {
	ctx := context.Background()
	db := New(nil)
	stores := db.Stores()
	a := seedAccount(t, stores, "100")
	b := seedAccount(t, stores, "100")

	var firstLocked sync.WaitGroup
	firstLocked.Add(2)
	lockBoth := func(first, second uuid.UUID) error {
		return db.Do(ctx, func(ctx context.Context, tx store.Tx) error {
			_, err := tx.Accounts().GetForUpdate(ctx, first)
			firstLocked.Done()
			if err != nil {
				return err
			}
			firstLocked.Wait()
			_, err = tx.Accounts().GetForUpdate(ctx, second)
			return err
		})
	}

	errs := make(chan error, 2)
	go func() { errs <- lockBoth(a.ID, b.ID) }()
	go func() { errs <- lockBoth(b.ID, a.ID) }()

	var conflicts, successes int
	for range 2 {
		select {
		case err := <-errs:
			switch {
			case err == nil:
				successes++
			case errors.Is(err, store.ErrConflict):
				assert.Equal(t, domain.CodeConflict, domain.CodeOf(err))
				conflicts++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("opposite lock order deadlocked")
		}
	}
	assert.Equal(t, 1, conflicts)
	assert.Equal(t, 1, successes)
}
