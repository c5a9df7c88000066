package reconcile

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// VerifySignature memvalidasi event inbound terhadap shared secret.
// Provider punya dua skema:
//   - checksum: sha256(concat(values at signature.properties) + timestamp + secret),
//     dibandingkan dengan header;
//   - HMAC-SHA256 atas raw body, header format "sha256=<hex>".
// Payload yang mendeklarasikan signature.properties pakai skema checksum.
// Perbandingan selalu constant-time.
func VerifySignature(raw []byte, ev *ProviderEvent, header, secret string) bool {
	if secret == "" || header == "" {
		return false
	}
	if ev.Signature != nil && len(ev.Signature.Properties) > 0 {
		return verifyChecksum(raw, ev, header, secret)
	}
	return verifyHMAC(raw, header, secret)
}

func verifyChecksum(raw []byte, ev *ProviderEvent, header, secret string) bool {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return false
	}

	var sb strings.Builder
	for _, path := range ev.Signature.Properties {
		sb.WriteString(valueAtPath(doc, path))
	}
	if ev.Signature.Timestamp != "" {
		sb.WriteString(ev.Signature.Timestamp)
	} else if ev.Timestamp != 0 {
		sb.WriteString(strconv.FormatInt(ev.Timestamp, 10))
	} else {
		return false
	}
	sb.WriteString(secret)

	sum := sha256.Sum256([]byte(sb.String()))
	computed := hex.EncodeToString(sum[:])
	return hmac.Equal([]byte(computed), []byte(strings.ToLower(strings.TrimSpace(header))))
}

func verifyHMAC(raw []byte, header, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(raw)
	expected := hex.EncodeToString(mac.Sum(nil))

	received := strings.TrimSpace(header)
	received = strings.TrimPrefix(received, "sha256=")
	received = strings.TrimPrefix(received, "SHA256=")
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(received)))
}

// valueAtPath baca nilai via path "data.transaction.status" untuk string checksum.
func valueAtPath(doc map[string]any, path string) string {
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur = m[part]
	}
	switch v := cur.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		// JSON numbers: amount dsb selalu integer cents.
		return strconv.FormatInt(int64(v), 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
