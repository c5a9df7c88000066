package checkout

import "errors"

// Taksonomi error: validation / conflict (retryable) / not found /
// external failure / integrity / internal. Handler yang map ke HTTP code.
var (
	ErrMissingIdempotencyKey = errors.New("missing idempotency key")
	ErrProductNotFound       = errors.New("product not found")
	ErrOutOfStock            = errors.New("out of stock")
	ErrConflict              = errors.New("conflict, retry with the same key")
	ErrNotFound              = errors.New("not found")
	ErrInvalidState          = errors.New("transaction is not pending")
	ErrReservationExpired    = errors.New("reservation expired")
	ErrAmountTooLow          = errors.New("amount below provider minimum")
	ErrInvalidSignature      = errors.New("invalid event signature")
)
