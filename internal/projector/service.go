package projector

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ariefcatur/go-checkout-core.git/internal/checkout"
	kafkax "github.com/ariefcatur/go-checkout-core.git/internal/kafka"
	"github.com/ariefcatur/go-checkout-core.git/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

// Service maintain cache status transaksi di Redis dari event finalized,
// supaya GET status tidak selalu mampir ke Postgres.
type Service struct {
	Redis       *redis.Client
	ServiceName string
}

// HandleFinalized dipasang sebagai handler consumer.
func (s *Service) HandleFinalized(ctx context.Context, m kafkago.Message) error {
	var env checkout.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != checkout.EventTransactionFinalized {
		return nil // ignore
	}

	// dedup via Redis (pakai event_id)
	dkey := fmt.Sprintf(redisx.KeyDedup, "projector", env.EventID)
	exists, _ := redisx.Exists(ctx, s.Redis, dkey)
	if exists {
		return nil
	}

	p, err := kafkax.UnwrapPayload[checkout.TransactionFinalizedPayload](env.Payload)
	if err != nil {
		return err
	}
	if p.PublicNumber == "" {
		// Event sweeper tidak bawa public_number; cache di-skip, DB tetap benar.
		_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
		return nil
	}

	blob := kafkax.MustMarshal(map[string]any{
		"found":         true,
		"public_number": p.PublicNumber,
		"status":        p.FinalStatus,
	})
	if err := s.Redis.Set(ctx, fmt.Sprintf(redisx.KeyTxStatus, p.PublicNumber),
		blob, redisx.TTLStatusCache).Err(); err != nil {
		return err
	}
	return s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
}
