// Package postgres provides the PostgreSQL implementations of the account
// store, the transfer ledger and the unit of work defined in internal/store,
// along with connection setup and embedded goose migrations. Store-level
// locking relies on SELECT ... FOR UPDATE inside the unit of work's transaction.
package postgres
