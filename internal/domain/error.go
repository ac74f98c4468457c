package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound            = errors.New("entity not found")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrUnknownPlan         = errors.New("unknown plan")
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	ErrAlreadyFinalized    = errors.New("listing already finalized")
	ErrAlreadyWatching     = errors.New("reference already being watched")

	// Gateway boundary errors
	ErrGatewayUnavailable = errors.New("payment gateway unavailable") // transient; callers treat as still pending
	ErrSessionNotFound    = errors.New("payment session unknown to gateway")

	// Infrastructure errors
	ErrOperationFailed    = errors.New("storage operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid sql execution context")
)
