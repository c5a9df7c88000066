package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

const txColumns = `id, idempotency_key, public_number, status,
	product_id, customer_id, delivery_id, COALESCE(stock_unit_id, ''),
	amount_product_cents, fee_base_cents, fee_delivery_cents, amount_total_cents, currency,
	COALESCE(provider_transaction_id, ''), COALESCE(provider_reference, ''),
	created_at, updated_at`

func scanTransaction(row pgx.Row) (*Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.IdempotencyKey, &t.PublicNumber, &t.Status,
		&t.ProductID, &t.CustomerID, &t.DeliveryID, &t.StockUnitID,
		&t.AmountProductCents, &t.FeeBaseCents, &t.FeeDeliveryCents, &t.AmountTotalCents, &t.Currency,
		&t.ProviderTransactionID, &t.ProviderReference,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// FindTransactionByIdemKey: return (nil, nil, nil) kalau belum ada.
// reservedUntil ikut di-join dari stock unit supaya replay bisa kasih expiry live.
func (r *Repo) FindTransactionByIdemKey(ctx context.Context, key string) (*Transaction, *time.Time, error) {
	t, err := scanTransaction(r.DB.QueryRow(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE idempotency_key=$1`, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	var reservedUntil *time.Time
	if t.StockUnitID != "" {
		err = r.DB.QueryRow(ctx,
			`SELECT reserved_until FROM stock_units WHERE id=$1`, t.StockUnitID).Scan(&reservedUntil)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, err
		}
	}
	return t, reservedUntil, nil
}

func (r *Repo) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	t, err := scanTransaction(r.DB.QueryRow(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

func (r *Repo) GetTransactionByPublicNumber(ctx context.Context, publicNumber string) (*Transaction, error) {
	t, err := scanTransaction(r.DB.QueryRow(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE public_number=$1`, publicNumber))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return t, err
}

// FindByProviderRef: cari by provider_transaction_id ATAU public_number (reference).
// Return (nil, nil) kalau tidak ketemu; reconciler tidak pernah bikin transaksi baru.
func (r *Repo) FindByProviderRef(ctx context.Context, providerTxID, reference string) (*Transaction, error) {
	t, err := scanTransaction(r.DB.QueryRow(ctx,
		`SELECT `+txColumns+` FROM transactions
		 WHERE provider_transaction_id=$1 OR public_number=$2
		 LIMIT 1`, providerTxID, reference))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

func (r *Repo) GetProduct(ctx context.Context, id string) (*Product, error) {
	var p Product
	err := r.DB.QueryRow(ctx,
		`SELECT id, sku, name, price_cents, currency, created_at, updated_at
		 FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.SKU, &p.Name, &p.PriceCents, &p.Currency, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

type ProductListing struct {
	Product
	AvailableUnits int `json:"available_units"`
}

func (r *Repo) ListProducts(ctx context.Context) ([]ProductListing, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT p.id, p.sku, p.name, p.price_cents, p.currency, p.created_at, p.updated_at,
		        COUNT(s.id) FILTER (WHERE s.status='AVAILABLE')
		 FROM products p
		 LEFT JOIN stock_units s ON s.product_id = p.id
		 GROUP BY p.id ORDER BY p.sku`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProductListing
	for rows.Next() {
		var p ProductListing
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.PriceCents, &p.Currency,
			&p.CreatedAt, &p.UpdatedAt, &p.AvailableUnits); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) GetCustomer(ctx context.Context, id string) (*Customer, error) {
	var c Customer
	err := r.DB.QueryRow(ctx,
		`SELECT id, full_name, email, COALESCE(phone, '') FROM customers WHERE id=$1`, id).
		Scan(&c.ID, &c.FullName, &c.Email, &c.Phone)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repo) GetDelivery(ctx context.Context, id string) (*Delivery, error) {
	var d Delivery
	err := r.DB.QueryRow(ctx,
		`SELECT id, customer_id, address_line, city, state,
		        COALESCE(postal_code, ''), COALESCE(notes, ''), fee_cents
		 FROM deliveries WHERE id=$1`, id).
		Scan(&d.ID, &d.CustomerID, &d.AddressLine, &d.City, &d.State,
			&d.PostalCode, &d.Notes, &d.FeeCents)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *Repo) GetStockUnit(ctx context.Context, id string) (*StockUnit, error) {
	var u StockUnit
	err := r.DB.QueryRow(ctx,
		`SELECT id, product_id, status, reserved_until, reserved_by_tx_id, created_at
		 FROM stock_units WHERE id=$1`, id).
		Scan(&u.ID, &u.ProductID, &u.Status, &u.ReservedUntil, &u.ReservedByTxID, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

type CustomerInput struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
}

type DeliveryInput struct {
	AddressLine string `json:"address_line"`
	City        string `json:"city"`
	State       string `json:"state"`
	PostalCode  string `json:"postal_code,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

type CreateCheckoutParams struct {
	IdempotencyKey   string
	PublicNumber     string
	Product          *Product
	Customer         CustomerInput
	Delivery         DeliveryInput
	FeeBaseCents     int
	FeeDeliveryCents int
	AmountTotalCents int
	ReservedUntil    time.Time
}

// CreateCheckout: customer upsert + delivery + reserve + transaction + bind,
// semua dalam satu pgx tx: sukses semua atau tidak ada yang persist.
// Unique violation (idempotency_key / public_number) di-map ke ErrConflict (retryable).
func (r *Repo) CreateCheckout(ctx context.Context, p CreateCheckoutParams) (*TransactionSnapshot, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// 1) Upsert customer by email: single statement, bukan read-then-write (hindari race).
	var customerID string
	err = tx.QueryRow(ctx, `
		INSERT INTO customers(id, full_name, email, phone)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		ON CONFLICT (email) DO UPDATE
		SET full_name = EXCLUDED.full_name, phone = EXCLUDED.phone
		RETURNING id`,
		uuid.NewString(), p.Customer.FullName, p.Customer.Email, p.Customer.Phone).Scan(&customerID)
	if err != nil {
		return nil, err
	}

	// 2) Delivery = snapshot alamat saat order, immutable.
	deliveryID := uuid.NewString()
	_, err = tx.Exec(ctx, `
		INSERT INTO deliveries(id, customer_id, address_line, city, state, postal_code, notes, fee_cents)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6,''), NULLIF($7,''), $8)`,
		deliveryID, customerID, p.Delivery.AddressLine, p.Delivery.City, p.Delivery.State,
		p.Delivery.PostalCode, p.Delivery.Notes, p.FeeDeliveryCents)
	if err != nil {
		return nil, err
	}

	// 3) Transaction PENDING dulu, biar reservasi bisa pegang back-reference.
	txID := uuid.NewString()
	_, err = tx.Exec(ctx, `
		INSERT INTO transactions(id, idempotency_key, public_number, status,
			product_id, customer_id, delivery_id,
			amount_product_cents, fee_base_cents, fee_delivery_cents, amount_total_cents, currency)
		VALUES ($1, $2, $3, 'PENDING', $4, $5, $6, $7, $8, $9, $10, $11)`,
		txID, p.IdempotencyKey, p.PublicNumber,
		p.Product.ID, customerID, deliveryID,
		p.Product.PriceCents, p.FeeBaseCents, p.FeeDeliveryCents, p.AmountTotalCents, p.Product.Currency)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, err
	}

	// 4) Reserve unit tertua yang AVAILABLE (FIFO by created_at).
	unitID, err := reserveOldest(ctx, tx, p.Product.ID, txID, p.ReservedUntil)
	if err != nil {
		return nil, err
	}

	// 5) Bind unit ke transaction.
	_, err = tx.Exec(ctx, `UPDATE transactions SET stock_unit_id=$2 WHERE id=$1`, txID, unitID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, err
	}

	reservedUntil := p.ReservedUntil
	return &TransactionSnapshot{
		TransactionID:    txID,
		PublicNumber:     p.PublicNumber,
		Status:           StatusPending,
		AmountTotalCents: p.AmountTotalCents,
		Currency:         p.Product.Currency,
		StockUnitID:      unitID,
		ReservedUntil:    &reservedUntil,
	}, nil
}

// SetProviderResult: simpan hasil gateway sekali saja; replay (kolom sudah terisi)
// dibiarkan no-op supaya pay step aman dipanggil ulang.
func (r *Repo) SetProviderResult(ctx context.Context, txID, providerTxID, providerRef string) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE transactions
		SET provider_transaction_id=$2, provider_reference=$3, updated_at=now()
		WHERE id=$1 AND provider_transaction_id IS NULL`,
		txID, providerTxID, providerRef)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
