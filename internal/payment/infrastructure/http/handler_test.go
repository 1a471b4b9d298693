package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	invdomain "github.com/fuyileeperez18-source/melo-sportt-sub001/internal/inventory/domain"
	"github.com/fuyileeperez18-source/melo-sportt-sub001/internal/payment/application"
	"github.com/fuyileeperez18-source/melo-sportt-sub001/internal/payment/domain"
	"github.com/fuyileeperez18-source/melo-sportt-sub001/internal/payment/infrastructure/memory"
	"github.com/fuyileeperez18-source/melo-sportt-sub001/internal/payment/signature"
)

const (
	integritySecret = "test_integrity_secret"
	eventsSecret    = "test_events_secret"
)

type stubGateway struct {
	txs map[string]domain.Transaction
	err error
}

func (g *stubGateway) AcceptanceTokens(context.Context) (domain.AcceptanceTokens, error) {
	return domain.AcceptanceTokens{AcceptanceToken: "acc"}, g.err
}

func (g *stubGateway) GetTransaction(_ context.Context, id string) (domain.Transaction, error) {
	if g.err != nil {
		return domain.Transaction{}, g.err
	}
	tx, ok := g.txs[id]
	if !ok {
		return domain.Transaction{}, domain.ErrTransactionNotFound
	}
	return tx, nil
}

func (g *stubGateway) CreateTransaction(_ context.Context, req domain.CreateTransaction) (domain.Transaction, error) {
	return domain.Transaction{ID: "tx-new", Status: domain.TransactionPending, Reference: req.Reference, AmountInCents: req.AmountInCents, Currency: req.Currency}, nil
}

func (g *stubGateway) TokenizeCard(context.Context, domain.Card) (domain.CardToken, error) {
	return domain.CardToken{ID: "tok_1"}, nil
}

type stubOrders struct {
	paid  []string
	panic bool
}

func (o *stubOrders) MarkPaid(_ context.Context, a application.Approval) (application.Settlement, error) {
	if o.panic {
		panic("boom")
	}
	o.paid = append(o.paid, a.Reference)
	return application.Settlement{Applied: true, OrderTotal: a.AmountInCents}, nil
}

func (o *stubOrders) MarkFailed(context.Context, string, string) (bool, error) { return true, nil }

type stubFailures struct{ n int }

func (f *stubFailures) Record(context.Context, application.WebhookFailure) error {
	f.n++
	return nil
}

type fixture struct {
	srv      *httptest.Server
	gateway  *stubGateway
	orders   *stubOrders
	failures *stubFailures
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		gateway:  &stubGateway{txs: map[string]domain.Transaction{}},
		orders:   &stubOrders{},
		failures: &stubFailures{},
	}
	svc := application.NewService(log, f.gateway, memory.NewIntentStore(), signature.NewEngine(integritySecret), application.Options{
		Currency:        "COP",
		ReferencePrefix: "MST",
		RedirectURL:     "http://localhost/result",
		IntentTTL:       time.Minute,
	})
	proc := application.NewWebhookProcessor(log, eventsSecret, f.orders, nil, f.failures)
	f.srv = httptest.NewServer(NewHandler(log, svc, proc).Routes())
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) post(t *testing.T, path string, body any, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	var raw []byte
	switch b := body.(type) {
	case []byte:
		raw = b
	default:
		var err error
		raw, err = json.Marshal(b)
		require.NoError(t, err)
	}
	req, err := http.NewRequest(http.MethodPost, f.srv.URL+path, bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func cart() application.PrepareRequest {
	return application.PrepareRequest{
		Items:    []application.CartItem{{Title: "Camiseta", Quantity: 1, UnitPrice: decimal.RequireFromString("150000")}},
		Customer: application.Customer{Email: "buyer@example.com"},
	}
}

func webhookBody(t *testing.T, txID, reference string, status domain.TransactionStatus, amount int64) ([]byte, string) {
	t.Helper()
	ts := time.Now().Unix()
	checksum := signature.Checksum([]string{txID, string(status), strconv.FormatInt(amount, 10)}, strconv.FormatInt(ts, 10), eventsSecret)
	body, err := json.Marshal(map[string]any{
		"event": domain.EventTransactionUpdated,
		"data": map[string]any{"transaction": map[string]any{
			"id": txID, "status": status, "reference": reference, "amount_in_cents": amount, "currency": "COP",
		}},
		"signature": map[string]any{
			"properties": []string{"transaction.id", "transaction.status", "transaction.amount_in_cents"},
			"checksum":   checksum,
		},
		"timestamp": ts,
	})
	require.NoError(t, err)
	return body, checksum
}

func TestPrepareThenConfirm(t *testing.T) {
	f := newFixture(t)

	resp, prepared := f.post(t, "/payments/prepare", cart(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(15000000), prepared["amountInCents"])
	assert.NotContains(t, prepared, "integritySecret")

	ref := prepared["reference"].(string)
	f.gateway.txs["tx-1"] = domain.Transaction{ID: "tx-1", Status: domain.TransactionApproved, Reference: ref, AmountInCents: 15000000, Currency: "COP"}

	resp, confirmed := f.post(t, "/payments/confirm", application.ConfirmRequest{
		Reference:     ref,
		TransactionID: "tx-1",
		AmountInCents: 15000000,
		Currency:      "COP",
		Signature:     prepared["signature"].(string),
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "APPROVED", confirmed["status"])

	// the intent is consumed
	resp, body := f.post(t, "/payments/confirm", application.ConfirmRequest{
		Reference: ref, TransactionID: "tx-1", AmountInCents: 15000000, Currency: "COP", Signature: prepared["signature"].(string),
	}, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found_or_expired", body["code"])
}

func TestConfirm_AlteredAmountIsBadRequest(t *testing.T) {
	f := newFixture(t)
	_, prepared := f.post(t, "/payments/prepare", cart(), nil)

	resp, body := f.post(t, "/payments/confirm", application.ConfirmRequest{
		Reference:     prepared["reference"].(string),
		TransactionID: "tx-1",
		AmountInCents: 100,
		Currency:      "COP",
		Signature:     prepared["signature"].(string),
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "amount_mismatch", body["code"])
}

func TestPrepare_InvalidJSON(t *testing.T) {
	f := newFixture(t)
	resp, body := f.post(t, "/payments/prepare", []byte("{"), nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_request", body["code"])
}

func TestPrepare_UpstreamIsBadGateway(t *testing.T) {
	f := newFixture(t)
	f.gateway.err = fmt.Errorf("%w: dial tcp", domain.ErrUpstreamUnavailable)

	resp, body := f.post(t, "/payments/prepare", cart(), nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "upstream_unavailable", body["code"])
}

func TestTransaction_NotFound(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.srv.URL + "/payments/transaction/missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateTransactionAndCardToken(t *testing.T) {
	f := newFixture(t)
	_, prepared := f.post(t, "/payments/prepare", cart(), nil)

	resp, tx := f.post(t, "/payments/transactions", application.TransactionRequest{
		Reference:       prepared["reference"].(string),
		AcceptanceToken: "acc",
		PaymentMethod:   map[string]any{"type": "CARD", "token": "tok_1", "installments": 1},
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, float64(15000000), tx["amount_in_cents"])

	resp, tok := f.post(t, "/payments/card-token", domain.Card{Number: "4242424242424242", CVC: "123", ExpMonth: "08", ExpYear: "30", CardHolder: "Ana"}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "tok_1", tok["id"])
}

func TestWebhook_AppliesApproval(t *testing.T) {
	f := newFixture(t)
	body, checksum := webhookBody(t, "tx-1", "MST-1", domain.TransactionApproved, 15000000)

	resp, out := f.post(t, "/payments/webhook", body, map[string]string{HeaderEventChecksum: checksum})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, out["received"])
	assert.Equal(t, []string{"MST-1"}, f.orders.paid)
}

func TestWebhook_AlwaysAcknowledges(t *testing.T) {
	f := newFixture(t)
	body, _ := webhookBody(t, "tx-1", "MST-1", domain.TransactionApproved, 15000000)

	for name, tc := range map[string]struct {
		body    []byte
		headers map[string]string
	}{
		"bad checksum": {body: body, headers: map[string]string{HeaderEventChecksum: "deadbeef"}},
		"malformed":    {body: []byte("not json")},
		"empty":        {body: []byte{}},
	} {
		t.Run(name, func(t *testing.T) {
			resp, out := f.post(t, "/payments/webhook", tc.body, tc.headers)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, true, out["received"])
		})
	}
	assert.Empty(t, f.orders.paid)
}

func TestWebhook_PanicIsAcknowledged(t *testing.T) {
	f := newFixture(t)
	f.orders.panic = true
	body, checksum := webhookBody(t, "tx-1", "MST-1", domain.TransactionApproved, 15000000)

	resp, out := f.post(t, "/payments/webhook", body, map[string]string{HeaderEventChecksum: checksum})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, out["received"])
}

func TestStatusFor(t *testing.T) {
	for _, tc := range []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrValidation, http.StatusBadRequest, "validation_error"},
		{fmt.Errorf("wrap: %w", domain.ErrInvalidSignature), http.StatusBadRequest, "invalid_signature"},
		{domain.ErrTransactionMismatch, http.StatusBadRequest, "transaction_mismatch"},
		{invdomain.ErrInsufficientStock, http.StatusBadRequest, "insufficient_stock"},
		{domain.ErrNotFoundOrExpired, http.StatusNotFound, "not_found_or_expired"},
		{invdomain.ErrProductNotFound, http.StatusNotFound, "product_not_found"},
		{domain.ErrUpstreamUnavailable, http.StatusBadGateway, "upstream_unavailable"},
		{domain.ErrReferenceCollision, http.StatusInternalServerError, "internal_error"},
		{errors.New("pg down"), http.StatusInternalServerError, "internal_error"},
	} {
		status, code := statusFor(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, code, tc.err.Error())
	}
}
