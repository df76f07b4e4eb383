// Package api handles incoming HTTP requests, request validation and
// response formatting. It adapts HTTP to the ledger services and turns
// service errors into stable error codes.
package api
