// Package domain contains the ledger's core entities (accounts and transfers),
// their invariants, and the error kinds shared by every layer. Balances and
// amounts are fixed-point decimals with two fractional digits.
package domain
