// Package store defines the persistence contracts for accounts and the
// transfer ledger, together with the unit of work that groups them into one
// atomic operation. Backends live under internal/platform.
package store
