package checkout

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// NewPublicNumber bikin nomor transaksi yang legible: TX-YYYYMMDD-XXXXXX.
// Collision ditangkap unique constraint di DB dan di-surface sebagai conflict.
func NewPublicNumber(now time.Time) string {
	var b [3]byte
	_, _ = rand.Read(b[:])
	suffix := strings.ToUpper(hex.EncodeToString(b[:]))
	return fmt.Sprintf("TX-%s-%s", now.Format("20060102"), suffix)
}
