package service

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pmonasterio/vaquita/internal/database"
	"github.com/pmonasterio/vaquita/internal/database/repository"
	"github.com/pmonasterio/vaquita/internal/oracle"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, database.RunMigrations(dbPath))
	db, err := database.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// fakeOracle returns scripted responses and records what it was asked.
type fakeOracle struct {
	mu         sync.Mutex
	intent     oracle.PaymentIntent
	intentErr  error
	matches    oracle.MatchResponse
	matchErr   error
	action     oracle.AgentAction
	actionErr  error
	matchCalls []oracle.MatchRequest
}

func (f *fakeOracle) ExtractIntent(ctx context.Context, message string) (oracle.PaymentIntent, error) {
	return f.intent, f.intentErr
}

func (f *fakeOracle) MatchItems(ctx context.Context, req oracle.MatchRequest) (oracle.MatchResponse, error) {
	f.mu.Lock()
	f.matchCalls = append(f.matchCalls, req)
	f.mu.Unlock()
	return f.matches, f.matchErr
}

func (f *fakeOracle) RouteCommand(ctx context.Context, text string) (oracle.AgentAction, error) {
	return f.action, f.actionErr
}

// recordingSender captures outbound messages.
type recordingSender struct {
	mu   sync.Mutex
	sent []sentMessage
}

type sentMessage struct {
	To   string
	Body string
}

func (s *recordingSender) SendText(ctx context.Context, to, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentMessage{To: to, Body: body})
	return nil
}

func (s *recordingSender) messages() []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentMessage(nil), s.sent...)
}

// fixture is a small settled-state-free ledger: Ana fronted an invoice in
// the session Bruno owns, so Bruno's payments go to Ana.
type fixture struct {
	DB       *sql.DB
	Users    *repository.UserRepo
	Sessions *repository.SessionRepo
	Invoices *repository.InvoiceRepo
	Items    *repository.ItemRepo
	Payments *repository.PaymentRepo

	Ana     repository.User // fronted the invoice, receives payments
	Bruno   repository.User // owns the active session, pays
	Session repository.Session
	Invoice repository.Invoice
	Pizza   repository.Item // 11.00
	Beer1   repository.Item // 5.50
	Beer2   repository.Item // 5.50
}

const (
	anaPhone   = "+56911111111"
	brunoPhone = "+56922222222"
)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := testContext(t)
	db := newTestDB(t)

	f := &fixture{
		DB:       db,
		Users:    repository.NewUserRepo(db),
		Sessions: repository.NewSessionRepo(db),
		Invoices: repository.NewInvoiceRepo(db),
		Items:    repository.NewItemRepo(db),
		Payments: repository.NewPaymentRepo(db),
	}

	var err error
	f.Ana, err = f.Users.Create(ctx, anaPhone, "Ana")
	require.NoError(t, err)
	f.Bruno, err = f.Users.Create(ctx, brunoPhone, "Bruno")
	require.NoError(t, err)

	f.Session, err = f.Sessions.Create(ctx, "friday dinner", f.Bruno.ID, "a4c1e0de-9f41-4c9a-b9d3-06cdd9a53a11")
	require.NoError(t, err)
	require.NoError(t, f.Sessions.AddParticipant(ctx, f.Session.ID, f.Bruno.ID))
	require.NoError(t, f.Sessions.AddParticipant(ctx, f.Session.ID, f.Ana.ID))

	f.Invoice, err = f.Invoices.Create(ctx, repository.Invoice{
		SessionID:   f.Session.ID,
		PayerID:     f.Ana.ID,
		Description: "Pizzeria Bravo",
		Total:       20,
	})
	require.NoError(t, err)

	f.Pizza = f.mustItem(t, ctx, f.Invoice.ID, "margherita pizza", 10, 11)
	f.Beer1 = f.mustItem(t, ctx, f.Invoice.ID, "beer", 5, 5.5)
	f.Beer2 = f.mustItem(t, ctx, f.Invoice.ID, "beer", 5, 5.5)

	f.Invoice, err = f.Invoices.RecomputePending(ctx, f.Invoice.ID)
	require.NoError(t, err)
	return f
}

func (f *fixture) mustItem(t *testing.T, ctx context.Context, invoiceID int64, desc string, unit, total float64) repository.Item {
	t.Helper()
	it, err := f.Items.Create(ctx, repository.Item{
		InvoiceID:   invoiceID,
		Description: desc,
		UnitPrice:   unit,
		Tip:         0.1,
		Total:       total,
	})
	require.NoError(t, err)
	return it
}

// secondInvoice adds another invoice with one unpaid item to the fixture's
// session, for cross-invoice cases.
func (f *fixture) secondInvoice(t *testing.T, ctx context.Context) (repository.Invoice, repository.Item) {
	t.Helper()
	inv, err := f.Invoices.Create(ctx, repository.Invoice{
		SessionID:   f.Session.ID,
		PayerID:     f.Ana.ID,
		Description: "Corner Bar",
		Total:       4,
	})
	require.NoError(t, err)
	item := f.mustItem(t, ctx, inv.ID, "pisco sour", 4, 4.4)
	var errRe error
	inv, errRe = f.Invoices.RecomputePending(ctx, inv.ID)
	require.NoError(t, errRe)
	return inv, item
}

// choice builds an oracle match for an item id.
func choice(desc string, itemID int64, confidence float64) oracle.MatchChoice {
	return oracle.MatchChoice{
		IntentDescription: desc,
		MatchedItemID:     &itemID,
		Confidence:        confidence,
		Reasoning:         "test",
	}
}

// noMatch builds an oracle verdict with no item.
func noMatch(desc string, confidence float64) oracle.MatchChoice {
	return oracle.MatchChoice{IntentDescription: desc, Confidence: confidence}
}

// paymentIntent builds a single-claim payment intent.
func paymentIntent(claims ...string) oracle.PaymentIntent {
	intent := oracle.PaymentIntent{IsPayment: true, Description: "test payment"}
	for _, c := range claims {
		intent.ItemsPaid = append(intent.ItemsPaid, oracle.IntentClaim{Description: c, Quantity: 1, Confidence: 0.9})
	}
	return intent
}

// unpaidSum recomputes what pending should be for an invoice.
func unpaidSum(t *testing.T, ctx context.Context, items *repository.ItemRepo, invoiceID int64) float64 {
	t.Helper()
	list, err := items.ListByInvoice(ctx, invoiceID)
	require.NoError(t, err)
	total := 0.0
	for _, it := range list {
		if !it.IsPaid {
			total += it.Total
		}
	}
	return total
}
