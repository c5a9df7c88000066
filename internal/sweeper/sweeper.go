package sweeper

import (
	"context"
	"time"

	"github.com/ariefcatur/go-checkout-core.git/internal/checkout"
	kafkax "github.com/ariefcatur/go-checkout-core.git/internal/kafka"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

type StockLedger interface {
	SweepExpired(ctx context.Context, now time.Time, limit int) (*checkout.SweepReport, error)
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Sweeper melepas reservasi yang lewat TTL dan menggagalkan transaksi PENDING
// pemiliknya. Aman jalan paralel dengan reconciliation: release-nya
// unconditional, dan approve telat ketangkep check expiry di apply.
type Sweeper struct {
	Stock             StockLedger
	ProducerReleased  Publisher // topic checkout.stock.released; boleh nil
	ProducerFinalized Publisher // topic checkout.transaction.finalized; boleh nil
	ServiceName       string
	BatchSize         int
	Now               func() time.Time // nil = time.Now
}

func (s *Sweeper) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Sweeper) ReleaseExpired(ctx context.Context) (*checkout.SweepReport, error) {
	limit := s.BatchSize
	if limit <= 0 {
		limit = 500
	}
	report, err := s.Stock.SweepExpired(ctx, s.now(), limit)
	if err != nil {
		return nil, err
	}

	for _, u := range report.ReleasedUnits {
		s.publishReleased(u)
	}
	for _, txID := range report.TouchedTransactionIDs {
		s.publishFinalized(txID)
	}
	return report, nil
}

func (s *Sweeper) publishReleased(u checkout.SweptUnit) {
	if s.ProducerReleased == nil {
		return
	}
	env := checkout.Envelope{
		EventID:       uuid.NewString(),
		EventType:     checkout.EventStockReleased,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		CorrelationID: u.TransactionID,
		Payload: kafkax.MustMarshal(checkout.StockReleasedPayload{
			StockUnitID:   u.StockUnitID,
			ProductID:     u.ProductID,
			TransactionID: u.TransactionID,
			Reason:        "RESERVATION_EXPIRED",
		}),
	}
	s.ProducerReleased.Publish(checkout.PartitionKey(u.StockUnitID), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(checkout.EventStockReleased)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (s *Sweeper) publishFinalized(txID string) {
	if s.ProducerFinalized == nil {
		return
	}
	env := checkout.Envelope{
		EventID:       uuid.NewString(),
		EventType:     checkout.EventTransactionFinalized,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		CorrelationID: txID,
		Payload: kafkax.MustMarshal(checkout.TransactionFinalizedPayload{
			TransactionID: txID,
			FinalStatus:   checkout.StatusError,
			Source:        "sweeper",
		}),
	}
	s.ProducerFinalized.Publish(checkout.PartitionKey(txID), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(checkout.EventTransactionFinalized)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
