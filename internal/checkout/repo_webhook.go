package checkout

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// InsertEventIfNew: catat row RECEIVED sebelum diproses, supaya crash di
// tengah proses tetap ninggalin jejak yang bisa diinspeksi/diretry.
// ON CONFLICT DO NOTHING = pemenang race delivery ganda ditentukan store.
func (r *Repo) InsertEventIfNew(ctx context.Context, ev *WebhookEvent) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		INSERT INTO webhook_events(id, event_type, provider_tx_id, status, payload)
		VALUES ($1, $2, $3, 'RECEIVED', $4)
		ON CONFLICT (id) DO NOTHING`,
		ev.ID, ev.EventType, ev.ProviderTxID, ev.Payload)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (r *Repo) MarkEvent(ctx context.Context, id string, status EventStatus, errMsg string) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE webhook_events
		SET status=$2, error_message=NULLIF($3, ''), processed_at=now()
		WHERE id=$1`, id, status, errMsg)
	return err
}

func (r *Repo) GetEvent(ctx context.Context, id string) (*WebhookEvent, error) {
	var ev WebhookEvent
	err := r.DB.QueryRow(ctx, `
		SELECT id, event_type, provider_tx_id, status, payload,
		       COALESCE(error_message, ''), received_at, processed_at
		FROM webhook_events WHERE id=$1`, id).
		Scan(&ev.ID, &ev.EventType, &ev.ProviderTxID, &ev.Status, &ev.Payload,
			&ev.ErrorMessage, &ev.ReceivedAt, &ev.ProcessedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}
