package checkout

import (
	"regexp"
	"testing"
	"time"
)

func TestNewPublicNumberFormat(t *testing.T) {
	now := time.Date(2024, 3, 7, 10, 0, 0, 0, time.UTC)
	re := regexp.MustCompile(`^TX-20240307-[0-9A-F]{6}$`)
	for i := 0; i < 50; i++ {
		n := NewPublicNumber(now)
		if !re.MatchString(n) {
			t.Fatalf("public number %q does not match expected format", n)
		}
	}
}
