// Package service contains the ledger's use cases. TransferService is the
// transfer orchestrator: it validates a request, takes the sender lock through
// the configured locking strategy, and moves funds and records the ledger
// entry inside one unit of work. AccountService provisions accounts.
//
// Services depend on the store interfaces and never on a concrete backend.
package service
