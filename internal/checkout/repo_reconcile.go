package checkout

import (
	"context"

	"github.com/jackc/pgx/v5"
)

type ApplyResult int

const (
	// ApplyApplied: transaksi + stock unit bergerak bareng dalam satu atomic unit.
	ApplyApplied ApplyResult = iota
	// ApplyAlreadyFinal: transaksi sudah keluar dari PENDING -> replay/no-op.
	ApplyAlreadyFinal
	// ApplyReservationExpired: target APPROVED tapi reservasi sudah lewat TTL;
	// transaksi di-set ERROR dan unit dilepas (tidak pernah SOLD dengan reservasi basi).
	ApplyReservationExpired
)

// ApplyOutcome menerapkan hasil final dari provider secara atomik.
// Guard konkurensi di level store: "update only if still PENDING" pada
// transactions dan CAS status pada stock_units. Aman dipanggil paralel
// dengan webhook duplikat, sync, maupun sweeper.
func (r *Repo) ApplyOutcome(ctx context.Context, txID, stockUnitID string, target Status) (ApplyResult, error) {
	if !CanTransition(StatusPending, target) {
		return ApplyAlreadyFinal, nil
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		UPDATE transactions SET status=$2, updated_at=now()
		WHERE id=$1 AND status='PENDING'`, txID, target)
	if err != nil {
		return 0, err
	}
	if ct.RowsAffected() != 1 {
		return ApplyAlreadyFinal, nil
	}

	if stockUnitID == "" {
		return ApplyApplied, tx.Commit(ctx)
	}

	if target == StatusApproved {
		// RESERVED -> SOLD hanya kalau reservasi masih hidup dan milik transaksi ini.
		// Back-reference dibiarkan untuk audit.
		ct, err = tx.Exec(ctx, `
			UPDATE stock_units
			SET status='SOLD', reserved_until=NULL
			WHERE id=$1 AND status='RESERVED' AND reserved_by_tx_id=$2 AND reserved_until > now()`,
			stockUnitID, txID)
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 1 {
			return ApplyApplied, tx.Commit(ctx)
		}
		// Reservasi keburu expired (atau sudah disapu sweeper): batalkan approve,
		// jalankan jalur ERROR + release di transaksi baru.
		_ = tx.Rollback(ctx)
		return r.failExpired(ctx, txID, stockUnitID)
	}

	// DECLINED / ERROR: balikkan unit ke pool.
	if err := releaseUnit(ctx, tx, stockUnitID, txID); err != nil {
		return 0, err
	}
	return ApplyApplied, tx.Commit(ctx)
}

func (r *Repo) failExpired(ctx context.Context, txID, stockUnitID string) (ApplyResult, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		UPDATE transactions SET status='ERROR', updated_at=now()
		WHERE id=$1 AND status='PENDING'`, txID)
	if err != nil {
		return 0, err
	}
	if ct.RowsAffected() != 1 {
		// Sweeper (atau reconciliation lain) sudah menutup transaksi ini.
		return ApplyAlreadyFinal, nil
	}

	if err := releaseUnit(ctx, tx, stockUnitID, txID); err != nil {
		return 0, err
	}
	return ApplyReservationExpired, tx.Commit(ctx)
}
