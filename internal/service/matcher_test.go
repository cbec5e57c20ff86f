package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pmonasterio/vaquita/internal/database/repository"
	"github.com/pmonasterio/vaquita/internal/oracle"
)

func TestMatchPaymentAcceptsOracleChoices(t *testing.T) {
	t.Parallel()
	ctx := testContext(t)
	f := newFixture(t)

	provider := &fakeOracle{matches: oracle.MatchResponse{Matches: []oracle.MatchChoice{
		choice("the beer", f.Beer1.ID, 0.81),
		choice("a pizza", f.Pizza.ID, 0.92),
	}}}
	m := &Matcher{Users: f.Users, Sessions: f.Sessions, Items: f.Items, Provider: provider}

	result, err := m.MatchPayment(ctx, brunoPhone, paymentIntent("the beer", "a pizza"), 16.5)
	require.NoError(t, err)

	require.Len(t, result.MatchedItems, 2)
	require.Equal(t, f.Beer1.ID, result.MatchedItems[0].ItemID, "claim order must be preserved")
	require.Equal(t, f.Pizza.ID, result.MatchedItems[1].ItemID)
	require.Equal(t, "the beer", result.MatchedItems[0].MatchedFromIntent)
	require.InDelta(t, 16.5, result.ExpectedAmount, 1e-9)
	require.InDelta(t, 16.5, result.ActualAmount, 1e-9)
	require.InDelta(t, 0, result.Difference, 1e-9)
	require.Equal(t, PaymentExact, result.PaymentStatus)

	require.Len(t, provider.matchCalls, 1)
	req := provider.matchCalls[0]
	require.Len(t, req.Claims, 2)
	require.Len(t, req.Candidates, 3, "oracle must see the full unpaid set")
	require.Equal(t, f.Pizza.ID, req.Candidates[0].ID)
	require.Equal(t, f.Beer1.ID, req.Candidates[1].ID)
	require.Equal(t, f.Beer2.ID, req.Candidates[2].ID)
}

func TestMatchPaymentRejectsLowConfidence(t *testing.T) {
	t.Parallel()
	ctx := testContext(t)
	f := newFixture(t)

	provider := &fakeOracle{matches: oracle.MatchResponse{Matches: []oracle.MatchChoice{
		choice("pizza", f.Pizza.ID, 0.49),
		choice("beer", f.Beer1.ID, 0.5),
		noMatch("mystery dish", 0.9),
	}}}
	m := &Matcher{Users: f.Users, Sessions: f.Sessions, Items: f.Items, Provider: provider}

	result, err := m.MatchPayment(ctx, brunoPhone, paymentIntent("pizza", "beer", "mystery dish"), 5.5)
	require.NoError(t, err)

	require.Len(t, result.MatchedItems, 1, "0.49 is below the floor, 0.5 is on it")
	require.Equal(t, f.Beer1.ID, result.MatchedItems[0].ItemID)
	require.Equal(t, PaymentExact, result.PaymentStatus)
}

func TestMatchPaymentKeepsFirstDuplicateClaim(t *testing.T) {
	t.Parallel()
	ctx := testContext(t)
	f := newFixture(t)

	provider := &fakeOracle{matches: oracle.MatchResponse{Matches: []oracle.MatchChoice{
		choice("first beer", f.Beer1.ID, 0.9),
		choice("second beer", f.Beer1.ID, 0.95),
	}}}
	m := &Matcher{Users: f.Users, Sessions: f.Sessions, Items: f.Items, Provider: provider}

	result, err := m.MatchPayment(ctx, brunoPhone, paymentIntent("first beer", "second beer"), 5.5)
	require.NoError(t, err)

	require.Len(t, result.MatchedItems, 1)
	require.Equal(t, "first beer", result.MatchedItems[0].MatchedFromIntent)
	require.InDelta(t, 5.5, result.ExpectedAmount, 1e-9)
}

func TestMatchPaymentStaysOnFirstInvoice(t *testing.T) {
	t.Parallel()
	ctx := testContext(t)
	f := newFixture(t)
	_, sour := f.secondInvoice(t, ctx)

	provider := &fakeOracle{matches: oracle.MatchResponse{Matches: []oracle.MatchChoice{
		choice("pizza", f.Pizza.ID, 0.9),
		choice("a drink", sour.ID, 0.9),
		choice("beer", f.Beer2.ID, 0.9),
	}}}
	m := &Matcher{Users: f.Users, Sessions: f.Sessions, Items: f.Items, Provider: provider}

	result, err := m.MatchPayment(ctx, brunoPhone, paymentIntent("pizza", "a drink", "beer"), 16.5)
	require.NoError(t, err)

	require.Len(t, result.MatchedItems, 2, "match outside the first invoice is dropped")
	require.Equal(t, f.Pizza.ID, result.MatchedItems[0].ItemID)
	require.Equal(t, f.Beer2.ID, result.MatchedItems[1].ItemID)
	for _, im := range result.MatchedItems {
		require.Equal(t, f.Invoice.ID, im.InvoiceID)
	}
}

func TestMatchPaymentSkipsVanishedItem(t *testing.T) {
	t.Parallel()
	ctx := testContext(t)
	f := newFixture(t)

	provider := &fakeOracle{matches: oracle.MatchResponse{Matches: []oracle.MatchChoice{
		choice("pizza", f.Pizza.ID, 0.9),
		choice("beer", f.Beer1.ID, 0.9),
	}}}
	m := &Matcher{Users: f.Users, Sessions: f.Sessions, Items: f.Items, Provider: provider}

	_, err := f.DB.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, f.Pizza.ID)
	require.NoError(t, err)

	result, err := m.MatchPayment(ctx, brunoPhone, paymentIntent("pizza", "beer"), 5.5)
	require.NoError(t, err)
	require.Len(t, result.MatchedItems, 1)
	require.Equal(t, f.Beer1.ID, result.MatchedItems[0].ItemID)
}

func TestMatchPaymentUnknownPayer(t *testing.T) {
	t.Parallel()
	ctx := testContext(t)
	f := newFixture(t)

	provider := &fakeOracle{}
	m := &Matcher{Users: f.Users, Sessions: f.Sessions, Items: f.Items, Provider: provider}

	result, err := m.MatchPayment(ctx, "+56900000000", paymentIntent("pizza"), 10)
	require.NoError(t, err)
	require.Empty(t, result.MatchedItems)
	require.Zero(t, result.ExpectedAmount)
	require.Equal(t, PaymentOverpaid, result.PaymentStatus, "nothing expected, something paid")
	require.Empty(t, provider.matchCalls, "no candidates means the oracle is never consulted")
}

func TestMatchPaymentNoActiveSession(t *testing.T) {
	t.Parallel()
	ctx := testContext(t)
	f := newFixture(t)

	require.NoError(t, f.Sessions.Close(ctx, f.Session.ID))

	provider := &fakeOracle{}
	m := &Matcher{Users: f.Users, Sessions: f.Sessions, Items: f.Items, Provider: provider}

	result, err := m.MatchPayment(ctx, brunoPhone, paymentIntent("pizza"), 0)
	require.NoError(t, err)
	require.Empty(t, result.MatchedItems)
	require.Equal(t, PaymentExact, result.PaymentStatus, "zero paid against zero expected")
	require.Empty(t, provider.matchCalls)
}

func TestMatchPaymentAllItemsSettled(t *testing.T) {
	t.Parallel()
	ctx := testContext(t)
	f := newFixture(t)

	payment, err := f.Payments.Create(ctx, repository.Payment{Reference: "ref-settled", PayerID: f.Bruno.ID, ReceiverID: f.Ana.ID, Amount: 22})
	require.NoError(t, err)
	for _, item := range []repository.Item{f.Pizza, f.Beer1, f.Beer2} {
		require.NoError(t, f.Items.MarkPaid(ctx, item.ID, f.Bruno.ID, payment.ID))
	}

	provider := &fakeOracle{}
	m := &Matcher{Users: f.Users, Sessions: f.Sessions, Items: f.Items, Provider: provider}

	result, err := m.MatchPayment(ctx, brunoPhone, paymentIntent("pizza"), 5)
	require.NoError(t, err)
	require.Empty(t, result.MatchedItems)
	require.Zero(t, result.ExpectedAmount)
	require.Equal(t, PaymentOverpaid, result.PaymentStatus)
	require.Empty(t, provider.matchCalls, "a fully settled session leaves nothing to match")
}

func TestMatchPaymentTooManyActiveSessions(t *testing.T) {
	t.Parallel()
	ctx := testContext(t)
	f := newFixture(t)

	_, err := f.Sessions.Create(ctx, "saturday brunch", f.Bruno.ID, "0b675b74-15b2-4f64-8f4e-4fbd6b41f96b")
	require.NoError(t, err)

	m := &Matcher{Users: f.Users, Sessions: f.Sessions, Items: f.Items, Provider: &fakeOracle{}}

	_, err = m.MatchPayment(ctx, brunoPhone, paymentIntent("pizza"), 10)
	require.ErrorIs(t, err, repository.ErrTooManyActiveSessions)
}

func TestMatchPaymentOracleFailureDegrades(t *testing.T) {
	t.Parallel()
	ctx := testContext(t)
	f := newFixture(t)

	provider := &fakeOracle{matchErr: errors.New("model unavailable")}
	m := &Matcher{Users: f.Users, Sessions: f.Sessions, Items: f.Items, Provider: provider}

	result, err := m.MatchPayment(ctx, brunoPhone, paymentIntent("pizza"), 8)
	require.NoError(t, err, "oracle failure must not fail the pipeline")
	require.Empty(t, result.MatchedItems)
	require.Equal(t, PaymentOverpaid, result.PaymentStatus)
}

func TestMatchPaymentNonPaymentIntent(t *testing.T) {
	t.Parallel()
	ctx := testContext(t)
	f := newFixture(t)

	provider := &fakeOracle{}
	m := &Matcher{Users: f.Users, Sessions: f.Sessions, Items: f.Items, Provider: provider}

	intent := oracle.PaymentIntent{IsPayment: false, Description: "hello there"}
	result, err := m.MatchPayment(ctx, brunoPhone, intent, 0)
	require.NoError(t, err)
	require.Empty(t, result.MatchedItems)
	require.Empty(t, provider.matchCalls)
}

func TestClassifyPayment(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name       string
		difference float64
		want       string
	}{
		{"zero", 0, PaymentExact},
		{"under epsilon positive", 0.009, PaymentExact},
		{"under epsilon negative", -0.009, PaymentExact},
		{"at epsilon", 0.01, PaymentOverpaid},
		{"overpaid", 3.2, PaymentOverpaid},
		{"underpaid", -0.011, PaymentUnderpaid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, classifyPayment(tc.difference))
		})
	}
}
