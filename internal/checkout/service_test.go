package checkout

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ariefcatur/go-checkout-core.git/internal/gateway"
)

type fakeLedger struct {
	products  map[string]*Product
	customers map[string]*Customer
	units     map[string]*StockUnit
	txByKey   map[string]*Transaction
	txByID    map[string]*Transaction

	availableUnits int
	createCalls    int
	providerSets   int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		products:  map[string]*Product{},
		customers: map[string]*Customer{},
		units:     map[string]*StockUnit{},
		txByKey:   map[string]*Transaction{},
		txByID:    map[string]*Transaction{},
	}
}

func (f *fakeLedger) FindTransactionByIdemKey(_ context.Context, key string) (*Transaction, *time.Time, error) {
	tx, ok := f.txByKey[key]
	if !ok {
		return nil, nil, nil
	}
	var until *time.Time
	if tx.StockUnitID != "" {
		if u, ok := f.units[tx.StockUnitID]; ok {
			until = u.ReservedUntil
		}
	}
	return tx, until, nil
}

func (f *fakeLedger) GetProduct(_ context.Context, id string) (*Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	return p, nil
}

func (f *fakeLedger) CreateCheckout(_ context.Context, p CreateCheckoutParams) (*TransactionSnapshot, error) {
	f.createCalls++
	if f.availableUnits <= 0 {
		return nil, ErrOutOfStock
	}
	f.availableUnits--

	txID := fmt.Sprintf("tx-%d", f.createCalls)
	unitID := fmt.Sprintf("unit-%d", f.createCalls)
	until := p.ReservedUntil
	f.units[unitID] = &StockUnit{
		ID: unitID, ProductID: p.Product.ID, Status: StockReserved,
		ReservedUntil: &until, ReservedByTxID: &txID,
	}
	tx := &Transaction{
		ID:               txID,
		IdempotencyKey:   p.IdempotencyKey,
		PublicNumber:     p.PublicNumber,
		Status:           StatusPending,
		ProductID:        p.Product.ID,
		CustomerID:       "cust-1",
		StockUnitID:      unitID,
		AmountTotalCents: p.AmountTotalCents,
		Currency:         p.Product.Currency,
	}
	f.txByKey[p.IdempotencyKey] = tx
	f.txByID[txID] = tx
	f.customers["cust-1"] = &Customer{ID: "cust-1", FullName: p.Customer.FullName, Email: p.Customer.Email}
	return &TransactionSnapshot{
		TransactionID:    txID,
		PublicNumber:     p.PublicNumber,
		Status:           StatusPending,
		AmountTotalCents: p.AmountTotalCents,
		Currency:         p.Product.Currency,
		StockUnitID:      unitID,
		ReservedUntil:    &until,
	}, nil
}

func (f *fakeLedger) GetTransaction(_ context.Context, id string) (*Transaction, error) {
	tx, ok := f.txByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return tx, nil
}

func (f *fakeLedger) GetStockUnit(_ context.Context, id string) (*StockUnit, error) {
	u, ok := f.units[id]
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

func (f *fakeLedger) GetCustomer(_ context.Context, id string) (*Customer, error) {
	c, ok := f.customers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

func (f *fakeLedger) SetProviderResult(_ context.Context, txID, providerTxID, providerRef string) error {
	tx, ok := f.txByID[txID]
	if !ok {
		return ErrNotFound
	}
	if tx.ProviderTransactionID == "" {
		tx.ProviderTransactionID = providerTxID
		tx.ProviderReference = providerRef
		f.providerSets++
	}
	return nil
}

type fakeGateway struct {
	tokenizeErr error
	createErr   error
	created     int
	remote      gateway.ProviderTransaction
}

func (g *fakeGateway) TokenizeCard(context.Context, gateway.Card) (string, error) {
	if g.tokenizeErr != nil {
		return "", g.tokenizeErr
	}
	return "tok_123", nil
}

func (g *fakeGateway) AcceptanceTokens(context.Context) (gateway.Tokens, error) {
	return gateway.Tokens{AcceptanceToken: "acc", PersonalDataAuthToken: "pda"}, nil
}

func (g *fakeGateway) CreateTransaction(_ context.Context, in gateway.CreateTransactionInput) (gateway.ProviderTransaction, error) {
	if g.createErr != nil {
		return gateway.ProviderTransaction{}, g.createErr
	}
	g.created++
	if g.remote.ID == "" {
		g.remote = gateway.ProviderTransaction{ID: "prov-1", Status: "PENDING", Reference: in.Reference}
	}
	return g.remote, nil
}

func newTestService(t *testing.T) (*Service, *fakeLedger, *fakeGateway) {
	t.Helper()
	ledger := newFakeLedger()
	ledger.products["prod-1"] = &Product{ID: "prod-1", SKU: "SNKR-001", PriceCents: 120000, Currency: "COP"}
	ledger.availableUnits = 1
	gw := &fakeGateway{}
	svc := &Service{
		Ledger:         ledger,
		Gateway:        gw,
		MinAmountCents: 10000,
		Now:            func() time.Time { return time.Date(2024, 3, 7, 10, 0, 0, 0, time.UTC) },
	}
	return svc, ledger, gw
}

func validInit() InitInput {
	return InitInput{
		IdempotencyKey: "key-1",
		ProductID:      "prod-1",
		Customer:       CustomerInput{FullName: "Jane Roe", Email: "jane@example.com"},
		Delivery:       DeliveryInput{AddressLine: "Calle 1 #2-3", City: "Bogota", State: "DC"},
	}
}

func TestInitCheckoutMissingKey(t *testing.T) {
	svc, _, _ := newTestService(t)
	in := validInit()
	in.IdempotencyKey = ""
	if _, err := svc.InitCheckout(context.Background(), in); !errors.Is(err, ErrMissingIdempotencyKey) {
		t.Fatalf("expected ErrMissingIdempotencyKey, got %v", err)
	}
}

func TestInitCheckoutComputesTotalAndTTL(t *testing.T) {
	svc, _, _ := newTestService(t)
	snap, err := svc.InitCheckout(context.Background(), validInit())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.AmountTotalCents != 128000 {
		t.Fatalf("expected total 128000 (120000+3000+5000), got %d", snap.AmountTotalCents)
	}
	if snap.Status != StatusPending {
		t.Fatalf("expected PENDING, got %s", snap.Status)
	}
	if snap.ReservedUntil == nil {
		t.Fatal("expected reservation expiry on fresh checkout")
	}
	want := svc.now().Add(ReservationTTL)
	if !snap.ReservedUntil.Equal(want) {
		t.Fatalf("expected reserved_until %v, got %v", want, snap.ReservedUntil)
	}
	if snap.IdempotentReplay {
		t.Fatal("fresh checkout must not be flagged as replay")
	}
}

func TestInitCheckoutIdempotentReplay(t *testing.T) {
	svc, ledger, _ := newTestService(t)
	first, err := svc.InitCheckout(context.Background(), validInit())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.InitCheckout(context.Background(), validInit())
	if err != nil {
		t.Fatalf("unexpected error on replay: %v", err)
	}
	if !second.IdempotentReplay {
		t.Fatal("expected idempotent_replay=true on second call")
	}
	if second.TransactionID != first.TransactionID || second.PublicNumber != first.PublicNumber {
		t.Fatal("replay must return the original transaction")
	}
	if ledger.createCalls != 1 {
		t.Fatalf("replay must not create again, got %d creates", ledger.createCalls)
	}
}

func TestInitCheckoutProductNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)
	in := validInit()
	in.ProductID = "nope"
	if _, err := svc.InitCheckout(context.Background(), in); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestInitCheckoutOutOfStock(t *testing.T) {
	svc, ledger, _ := newTestService(t)
	ledger.availableUnits = 0
	if _, err := svc.InitCheckout(context.Background(), validInit()); !errors.Is(err, ErrOutOfStock) {
		t.Fatalf("expected ErrOutOfStock, got %v", err)
	}
}

func payCard() gateway.Card {
	return gateway.Card{Number: "4242424242424242", CVC: "123", ExpMonth: "12", ExpYear: "29", CardHolder: "JANE ROE"}
}

func TestPayCheckoutNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.PayCheckout(context.Background(), "missing", payCard(), 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPayCheckoutInvalidState(t *testing.T) {
	svc, ledger, _ := newTestService(t)
	snap, _ := svc.InitCheckout(context.Background(), validInit())
	ledger.txByID[snap.TransactionID].Status = StatusApproved
	if _, err := svc.PayCheckout(context.Background(), snap.TransactionID, payCard(), 1); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestPayCheckoutReservationExpired(t *testing.T) {
	svc, ledger, _ := newTestService(t)
	snap, _ := svc.InitCheckout(context.Background(), validInit())
	past := svc.now().Add(-time.Minute)
	ledger.units[snap.StockUnitID].ReservedUntil = &past
	if _, err := svc.PayCheckout(context.Background(), snap.TransactionID, payCard(), 1); !errors.Is(err, ErrReservationExpired) {
		t.Fatalf("expected ErrReservationExpired, got %v", err)
	}
}

func TestPayCheckoutReservationStolen(t *testing.T) {
	svc, ledger, _ := newTestService(t)
	snap, _ := svc.InitCheckout(context.Background(), validInit())
	other := "someone-else"
	ledger.units[snap.StockUnitID].ReservedByTxID = &other
	if _, err := svc.PayCheckout(context.Background(), snap.TransactionID, payCard(), 1); !errors.Is(err, ErrReservationExpired) {
		t.Fatalf("expected ErrReservationExpired, got %v", err)
	}
}

func TestPayCheckoutAmountTooLow(t *testing.T) {
	svc, _, _ := newTestService(t)
	svc.MinAmountCents = 1000000
	snap, _ := svc.InitCheckout(context.Background(), validInit())
	if _, err := svc.PayCheckout(context.Background(), snap.TransactionID, payCard(), 1); !errors.Is(err, ErrAmountTooLow) {
		t.Fatalf("expected ErrAmountTooLow, got %v", err)
	}
}

func TestPayCheckoutSubmitsOnceAndPersistsProviderID(t *testing.T) {
	svc, ledger, gw := newTestService(t)
	snap, _ := svc.InitCheckout(context.Background(), validInit())

	res, err := svc.PayCheckout(context.Background(), snap.TransactionID, payCard(), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ProviderTransactionID != "prov-1" {
		t.Fatalf("expected provider id prov-1, got %q", res.ProviderTransactionID)
	}
	if res.IdempotentReplay {
		t.Fatal("first pay must not be a replay")
	}
	if ledger.providerSets != 1 {
		t.Fatalf("expected exactly one provider persist, got %d", ledger.providerSets)
	}

	// Retry: jangan submit dua kali ke provider.
	res2, err := svc.PayCheckout(context.Background(), snap.TransactionID, payCard(), 3)
	if err != nil {
		t.Fatalf("unexpected error on replay: %v", err)
	}
	if !res2.IdempotentReplay {
		t.Fatal("expected idempotent_replay=true on second pay")
	}
	if gw.created != 1 {
		t.Fatalf("provider must receive exactly one create, got %d", gw.created)
	}
}

func TestPayCheckoutGatewayFailureLeavesStateUntouched(t *testing.T) {
	svc, ledger, gw := newTestService(t)
	gw.createErr = errors.New("timeout talking to provider")
	snap, _ := svc.InitCheckout(context.Background(), validInit())

	if _, err := svc.PayCheckout(context.Background(), snap.TransactionID, payCard(), 1); err == nil {
		t.Fatal("expected gateway error to surface")
	}
	tx := ledger.txByID[snap.TransactionID]
	if tx.Status != StatusPending {
		t.Fatalf("gateway failure must not mutate status, got %s", tx.Status)
	}
	if tx.ProviderTransactionID != "" {
		t.Fatal("no provider id must be persisted on failure")
	}
}
