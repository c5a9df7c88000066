package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier dipenuhi *pgxpool.Pool maupun pgx.Tx, supaya reserveOldest bisa
// jalan standalone atau di dalam transaksi checkout.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// reserveOldest: pilih kandidat AVAILABLE tertua, lalu CAS ke RESERVED.
// Conditional update = satu-satunya guard anti double-booking; kalau 0 rows,
// kandidat keburu diambil caller lain -> ErrConflict (tidak ada fallback diam-diam,
// orchestrator yang memutuskan retry).
func reserveOldest(ctx context.Context, q querier, productID, txID string, until time.Time) (string, error) {
	var unitID string
	err := q.QueryRow(ctx, `
		SELECT id FROM stock_units
		WHERE product_id=$1 AND status='AVAILABLE'
		ORDER BY created_at ASC
		LIMIT 1`, productID).Scan(&unitID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrOutOfStock
	}
	if err != nil {
		return "", err
	}

	ct, err := q.Exec(ctx, `
		UPDATE stock_units
		SET status='RESERVED', reserved_until=$2, reserved_by_tx_id=$3
		WHERE id=$1 AND status='AVAILABLE'`,
		unitID, until, txID)
	if err != nil {
		return "", err
	}
	if ct.RowsAffected() != 1 {
		return "", ErrConflict
	}
	return unitID, nil
}

// releaseUnit: RESERVED -> AVAILABLE, clear TTL + back-reference. Dipakai
// jalur decline/error reconciliation; 0 rows tidak apa-apa (sweeper bisa
// sudah melepasnya duluan).
func releaseUnit(ctx context.Context, q querier, unitID, txID string) error {
	_, err := q.Exec(ctx, `
		UPDATE stock_units
		SET status='AVAILABLE', reserved_until=NULL, reserved_by_tx_id=NULL
		WHERE id=$1 AND status='RESERVED' AND reserved_by_tx_id=$2`,
		unitID, txID)
	return err
}

type StockRepo struct{ DB *pgxpool.Pool }

type SweptUnit struct {
	StockUnitID   string `json:"stock_unit_id"`
	ProductID     string `json:"product_id"`
	TransactionID string `json:"transaction_id,omitempty"`
}

type SweepReport struct {
	ReleasedCount         int         `json:"released_count"`
	ReleasedUnits         []SweptUnit `json:"released_units"`
	TouchedTransactionIDs []string    `json:"touched_transaction_ids"`
}

// SweepExpired: batch bounded. Unit RESERVED yang reserved_until sudah lewat
// dilepas ke AVAILABLE; transaksi pemiliknya yang masih PENDING di-set ERROR.
// Satu-satunya jalur yang menggagalkan transaksi murni karena waktu.
func (r *StockRepo) SweepExpired(ctx context.Context, now time.Time, limit int) (*SweepReport, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		SELECT id, product_id, COALESCE(reserved_by_tx_id, '')
		FROM stock_units
		WHERE status='RESERVED' AND reserved_until < $1
		ORDER BY reserved_until ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED`, now, limit)
	if err != nil {
		return nil, err
	}
	var expired []SweptUnit
	for rows.Next() {
		var u SweptUnit
		if err := rows.Scan(&u.StockUnitID, &u.ProductID, &u.TransactionID); err != nil {
			rows.Close()
			return nil, err
		}
		expired = append(expired, u)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	report := &SweepReport{ReleasedUnits: expired}
	if len(expired) == 0 {
		return report, tx.Commit(ctx)
	}

	unitIDs := make([]string, 0, len(expired))
	txIDs := make([]string, 0, len(expired))
	for _, u := range expired {
		unitIDs = append(unitIDs, u.StockUnitID)
		if u.TransactionID != "" {
			txIDs = append(txIDs, u.TransactionID)
		}
	}

	ct, err := tx.Exec(ctx, `
		UPDATE stock_units
		SET status='AVAILABLE', reserved_until=NULL, reserved_by_tx_id=NULL
		WHERE id = ANY($1)`, unitIDs)
	if err != nil {
		return nil, err
	}
	report.ReleasedCount = int(ct.RowsAffected())

	if len(txIDs) > 0 {
		// Hanya yang masih PENDING; yang sudah final dibiarkan.
		touched, err := tx.Query(ctx, `
			UPDATE transactions SET status='ERROR', updated_at=now()
			WHERE id = ANY($1) AND status='PENDING'
			RETURNING id`, txIDs)
		if err != nil {
			return nil, err
		}
		for touched.Next() {
			var id string
			if err := touched.Scan(&id); err != nil {
				touched.Close()
				return nil, err
			}
			report.TouchedTransactionIDs = append(report.TouchedTransactionIDs, id)
		}
		touched.Close()
		if err := touched.Err(); err != nil {
			return nil, err
		}
	}

	return report, tx.Commit(ctx)
}
