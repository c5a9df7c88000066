package reconcile

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ProviderEvent = envelope notifikasi dari provider (webhook push).
type ProviderEvent struct {
	ID    string `json:"id,omitempty"` // kadang provider kirim id di root
	Event string `json:"event"`
	Data  struct {
		Transaction struct {
			ID        string `json:"id"`
			Status    string `json:"status"`
			Reference string `json:"reference,omitempty"`
		} `json:"transaction"`
	} `json:"data"`
	SentAt    string `json:"sent_at,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
	Signature *struct {
		Properties []string `json:"properties"`
		Checksum   string   `json:"checksum,omitempty"`
		Timestamp  string   `json:"timestamp,omitempty"`
	} `json:"signature,omitempty"`
}

// EventID: pakai id provider kalau ada; kalau tidak, hash deterministik dari
// field yang mengidentifikasi event secara logis. Delivery ulang payload yang
// sama selalu menghasilkan id yang sama.
func EventID(ev *ProviderEvent) string {
	if ev.ID != "" {
		return ev.ID
	}
	raw := fmt.Sprintf("%s:%s:%s:%s",
		ev.Event, ev.Data.Transaction.ID, ev.Data.Transaction.Status, ev.SentAt)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
