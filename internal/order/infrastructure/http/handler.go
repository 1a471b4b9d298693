package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	invdomain "github.com/fuyileeperez18-source/melo-sportt-sub001/internal/inventory/domain"
	"github.com/fuyileeperez18-source/melo-sportt-sub001/internal/order/application"
	"github.com/fuyileeperez18-source/melo-sportt-sub001/internal/order/domain"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	log     *slog.Logger
	service *application.Service
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
		tracer:  otel.Tracer("order-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/orders", h.createOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/by-number/{number}", h.getOrderByNumber)
	r.Post("/orders/{id}/refund", h.refund)
	r.Post("/orders/{id}/status", h.advance)
	return r
}

type itemView struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId,omitempty"`
	Title     string `json:"title"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
	LineTotal int64  `json:"lineTotal"`
}

type orderView struct {
	ID              string          `json:"id"`
	OrderNumber     string          `json:"orderNumber"`
	CustomerEmail   string          `json:"customerEmail"`
	Items           []itemView      `json:"items"`
	Subtotal        int64           `json:"subtotal"`
	Discount        int64           `json:"discount"`
	ShippingCost    int64           `json:"shippingCost"`
	Tax             int64           `json:"tax"`
	Total           int64           `json:"total"`
	Currency        string          `json:"currency"`
	Status          string          `json:"status"`
	PaymentStatus   string          `json:"paymentStatus"`
	PaymentMethod   string          `json:"paymentMethod"`
	PaymentID       string          `json:"paymentId,omitempty"`
	ShippingAddress *domain.Address `json:"shippingAddress,omitempty"`
	PaidAt          *time.Time      `json:"paidAt,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

func view(o domain.Order) orderView {
	items := make([]itemView, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, itemView{
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Title:     it.Title,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			LineTotal: it.LineTotal,
		})
	}
	return orderView{
		ID:              o.ID.String(),
		OrderNumber:     o.OrderNumber,
		CustomerEmail:   o.CustomerEmail,
		Items:           items,
		Subtotal:        o.Subtotal,
		Discount:        o.Discount,
		ShippingCost:    o.ShippingCost,
		Tax:             o.Tax,
		Total:           o.Total,
		Currency:        o.Currency,
		Status:          string(o.Status),
		PaymentStatus:   string(o.PaymentStatus),
		PaymentMethod:   string(o.PaymentMethod),
		PaymentID:       o.PaymentID,
		ShippingAddress: o.ShippingAddress,
		PaidAt:          o.PaidAt,
		CreatedAt:       o.CreatedAt,
	}
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateOrder")
	defer span.End()

	var in application.PlaceOrderInput
	if !decode(w, r, &in) {
		return
	}
	o, err := h.service.PlaceOrder(ctx, in)
	if err != nil {
		h.fail(w, err)
		return
	}
	span.SetAttributes(attribute.String("order.id", o.ID.String()))
	respondJSON(w, http.StatusCreated, view(o))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetOrder")
	defer span.End()

	id, ok := orderID(w, r)
	if !ok {
		return
	}
	o, err := h.service.Get(ctx, id)
	if err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view(o))
}

func (h *Handler) getOrderByNumber(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetOrderByNumber")
	defer span.End()

	o, err := h.service.GetByNumber(ctx, chi.URLParam(r, "number"))
	if err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view(o))
}

func (h *Handler) refund(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "RefundOrder")
	defer span.End()

	id, ok := orderID(w, r)
	if !ok {
		return
	}
	var req struct {
		Partial bool `json:"partial"`
	}
	if !decode(w, r, &req) {
		return
	}
	o, err := h.service.Refund(ctx, id, req.Partial)
	if err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view(o))
}

func (h *Handler) advance(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "AdvanceOrder")
	defer span.End()

	id, ok := orderID(w, r)
	if !ok {
		return
	}
	var req struct {
		Status domain.Status `json:"status"`
	}
	if !decode(w, r, &req) {
		return
	}
	o, err := h.service.Advance(ctx, id, req.Status)
	if err != nil {
		h.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, view(o))
}

func orderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "order id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("order request failed", "err", err)
		respondError(w, status, code, http.StatusText(status))
		return
	}
	respondError(w, status, code, err.Error())
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidOrder):
		return http.StatusBadRequest, "invalid_order"
	case errors.Is(err, invdomain.ErrInsufficientStock):
		return http.StatusBadRequest, "insufficient_stock"
	case errors.Is(err, domain.ErrOrderNotFound):
		return http.StatusNotFound, "order_not_found"
	case errors.Is(err, invdomain.ErrProductNotFound):
		return http.StatusNotFound, "product_not_found"
	case errors.Is(err, domain.ErrIllegalTransition):
		return http.StatusConflict, "illegal_transition"
	case errors.Is(err, domain.ErrDuplicateOrderNumber):
		return http.StatusConflict, "duplicate_order_number"
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
