package redisx

import "time"

const (
	// Fast-path idempotency init checkout: idem:checkout:init:{idempotency_key} -> transaction_id.
	// DB tetap jadi kebenaran; ini cuma shortcut.
	KeyIdemCheckoutInit = "idem:checkout:init:%s"

	// Cache status transaksi: tx_status:{public_number} -> json snapshot
	KeyTxStatus = "tx_status:%s"

	// Dedup event processing di consumer: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
