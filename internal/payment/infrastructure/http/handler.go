package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	invdomain "github.com/fuyileeperez18-source/melo-sportt-sub001/internal/inventory/domain"
	orderdomain "github.com/fuyileeperez18-source/melo-sportt-sub001/internal/order/domain"
	"github.com/fuyileeperez18-source/melo-sportt-sub001/internal/payment/application"
	"github.com/fuyileeperez18-source/melo-sportt-sub001/internal/payment/domain"
)

const (
	maxBodyBytes    = 1 << 20
	webhookDeadline = 20 * time.Second

	HeaderEventChecksum  = "X-Event-Checksum"
	HeaderEventTimestamp = "X-Event-Timestamp"
)

type Handler struct {
	log     *slog.Logger
	service *application.Service
	webhook *application.WebhookProcessor
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service, webhook *application.WebhookProcessor) *Handler {
	return &Handler{
		log:     log,
		service: service,
		webhook: webhook,
		tracer:  otel.Tracer("payment-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/payments/prepare", h.prepare)
	r.Post("/payments/confirm", h.confirm)
	r.Get("/payments/transaction/{id}", h.transaction)
	r.Post("/payments/transactions", h.createTransaction)
	r.Post("/payments/card-token", h.tokenizeCard)
	r.Post("/payments/webhook", h.receiveWebhook)
	return r
}

func (h *Handler) prepare(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "PreparePayment")
	defer span.End()

	var req application.PrepareRequest
	if !decode(w, r, &req) {
		return
	}
	out, err := h.service.Prepare(ctx, req)
	if err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ConfirmPayment")
	defer span.End()

	var req application.ConfirmRequest
	if !decode(w, r, &req) {
		return
	}
	out, err := h.service.Confirm(ctx, req)
	if err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) transaction(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetTransaction")
	defer span.End()

	tx, err := h.service.Transaction(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, tx)
}

func (h *Handler) createTransaction(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateTransaction")
	defer span.End()

	var req application.TransactionRequest
	if !decode(w, r, &req) {
		return
	}
	tx, err := h.service.CreateTransaction(ctx, req)
	if err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, tx)
}

func (h *Handler) tokenizeCard(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "TokenizeCard")
	defer span.End()

	var card domain.Card
	if !decode(w, r, &card) {
		return
	}
	tok, err := h.service.TokenizeCard(ctx, card)
	if err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, tok)
}

// receiveWebhook acknowledges every delivery with 200. Processing errors,
// including panics, are logged and recorded by the processor but never
// reported to the gateway, which would otherwise retry them indefinitely.
func (h *Handler) receiveWebhook(w http.ResponseWriter, r *http.Request) {
	defer respondJSON(w, http.StatusOK, map[string]bool{"received": true})

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.log.Error("failed to read webhook body", "err", err)
		return
	}

	// processing continues if the gateway hangs up
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), webhookDeadline)
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			h.log.Error("webhook processing panicked", "panic", rec)
		}
	}()

	if err := h.webhook.Process(ctx, body, r.Header.Get(HeaderEventChecksum), r.Header.Get(HeaderEventTimestamp)); err != nil {
		h.log.Warn("webhook acknowledged with processing error", "err", err)
	}
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("payment request failed", "err", err)
		respondError(w, status, code, http.StatusText(status))
		return
	}
	respondError(w, status, code, err.Error())
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, domain.ErrInvalidAmount):
		return http.StatusBadRequest, "invalid_amount"
	case errors.Is(err, domain.ErrAmountMismatch):
		return http.StatusBadRequest, "amount_mismatch"
	case errors.Is(err, domain.ErrInvalidSignature):
		return http.StatusBadRequest, "invalid_signature"
	case errors.Is(err, domain.ErrTransactionMismatch):
		return http.StatusBadRequest, "transaction_mismatch"
	case errors.Is(err, domain.ErrGatewayRejected):
		return http.StatusBadRequest, "gateway_rejected"
	case errors.Is(err, invdomain.ErrInsufficientStock):
		return http.StatusBadRequest, "insufficient_stock"
	case errors.Is(err, orderdomain.ErrInvalidOrder):
		return http.StatusBadRequest, "invalid_order"
	case errors.Is(err, domain.ErrNotFoundOrExpired):
		return http.StatusNotFound, "not_found_or_expired"
	case errors.Is(err, domain.ErrTransactionNotFound):
		return http.StatusNotFound, "transaction_not_found"
	case errors.Is(err, invdomain.ErrProductNotFound):
		return http.StatusNotFound, "product_not_found"
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return http.StatusBadGateway, "upstream_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
