package application

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fuyileeperez18-source/melo-sportt-sub001/internal/payment/domain"
	"github.com/fuyileeperez18-source/melo-sportt-sub001/internal/payment/signature"
	"github.com/fuyileeperez18-source/melo-sportt-sub001/pkg/logging"
)

type Options struct {
	Currency        string
	ReferencePrefix string
	RedirectURL     string
	IntentTTL       time.Duration
	// SignExpiration binds the intent expiry into the integrity signature.
	SignExpiration bool
}

type Service struct {
	log     *slog.Logger
	gateway Gateway
	intents IntentStore
	signer  *signature.Engine
	orders  OrderPlacer
	opts    Options
	tracer  trace.Tracer

	now  func() time.Time
	rand io.Reader
}

func NewService(log *slog.Logger, gateway Gateway, intents IntentStore, signer *signature.Engine, opts Options) *Service {
	if opts.IntentTTL <= 0 {
		opts.IntentTTL = 15 * time.Minute
	}
	return &Service{
		log:     log,
		gateway: gateway,
		intents: intents,
		signer:  signer,
		opts:    opts,
		tracer:  otel.Tracer("payment-service"),
		now:     time.Now,
		rand:    rand.Reader,
	}
}

// WithOrderPlacer makes Prepare pre-create the pending order for the
// reference it mints.
func (s *Service) WithOrderPlacer(p OrderPlacer) *Service {
	s.orders = p
	return s
}

// Prepare turns a cart into a signed, registered payment intent.
func (s *Service) Prepare(ctx context.Context, req PrepareRequest) (PreparedPayment, error) {
	ctx, span := s.tracer.Start(ctx, "Prepare")
	defer span.End()

	if err := validateCart(req); err != nil {
		return PreparedPayment{}, err
	}
	amount, err := AmountInCents(req.Items)
	if err != nil {
		return PreparedPayment{}, err
	}

	now := s.now().UTC()
	reference, err := s.mintReference(now)
	if err != nil {
		return PreparedPayment{}, fmt.Errorf("mint reference: %w", err)
	}
	span.SetAttributes(attribute.String("payment.reference", reference), attribute.Int64("payment.amount_in_cents", amount))

	tokens, err := s.gateway.AcceptanceTokens(ctx)
	if err != nil {
		return PreparedPayment{}, upstream(err)
	}

	intent := domain.NewPendingIntent(reference, amount, s.opts.Currency, strings.TrimSpace(req.Customer.Email), now, s.opts.IntentTTL)
	if s.opts.SignExpiration {
		intent.Expiration = intent.ExpiresAt.Format(time.RFC3339)
	}
	sig := s.signer.Sign(reference, amount, s.opts.Currency, intent.Expiration)
	shipping := NormalizeAddress(req.ShippingAddress)

	if err := s.intents.Put(ctx, intent); err != nil {
		if errors.Is(err, domain.ErrReferenceCollision) {
			s.log.Error("payment reference collision", "reference", reference)
		}
		return PreparedPayment{}, fmt.Errorf("register intent: %w", err)
	}

	if s.orders != nil {
		err := s.orders.PlacePending(ctx, PendingOrder{
			Reference:       reference,
			UserID:          req.Customer.UserID,
			CustomerEmail:   intent.CustomerEmail,
			Items:           req.Items,
			AmountInCents:   amount,
			Currency:        s.opts.Currency,
			PaymentMethod:   req.PaymentType,
			ShippingAddress: shipping,
		})
		if err != nil {
			// an intent without an order could never settle
			if derr := s.intents.Delete(context.WithoutCancel(ctx), reference); derr != nil {
				s.log.Error("failed to drop intent after order placement failed", "reference", reference, "err", derr)
			}
			return PreparedPayment{}, fmt.Errorf("place pending order: %w", err)
		}
	}

	s.log.Info("payment prepared", "reference", reference, "amount_in_cents", amount, "currency", s.opts.Currency)

	return PreparedPayment{
		Reference:        reference,
		AmountInCents:    amount,
		Currency:         s.opts.Currency,
		Signature:        sig,
		ExpirationTime:   intent.Expiration,
		AcceptanceTokens: tokens,
		RedirectURL:      s.opts.RedirectURL,
		CustomerEmail:    intent.CustomerEmail,
		ShippingAddress:  shipping,
		PaymentType:      req.PaymentType,
		ExpiresAt:        intent.ExpiresAt.Format(time.RFC3339),
	}, nil
}

// Confirm reconciles a browser-reported payment with the prepared intent and
// the gateway's record. It never writes orders.
func (s *Service) Confirm(ctx context.Context, req ConfirmRequest) (ConfirmResult, error) {
	ctx, span := s.tracer.Start(ctx, "Confirm")
	defer span.End()
	span.SetAttributes(attribute.String("payment.reference", req.Reference), attribute.String("payment.transaction_id", req.TransactionID))

	if strings.TrimSpace(req.Reference) == "" || strings.TrimSpace(req.TransactionID) == "" {
		return ConfirmResult{}, fmt.Errorf("%w: reference and transactionId are required", domain.ErrValidation)
	}

	intent, err := s.intents.Get(ctx, req.Reference)
	if err != nil {
		if errors.Is(err, domain.ErrNotFoundOrExpired) {
			s.log.Warn("confirmation for unknown or expired reference", "reference", req.Reference, "transaction_id", req.TransactionID)
		}
		return ConfirmResult{}, err
	}

	sec := logging.Security(s.log).With("reference", req.Reference, "transaction_id", req.TransactionID)

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = intent.Currency
	}
	if req.AmountInCents != intent.AmountInCents || currency != intent.Currency {
		sec.Error("amount mismatch on confirmation",
			"expected_amount", intent.AmountInCents, "received_amount", req.AmountInCents,
			"expected_currency", intent.Currency, "received_currency", currency)
		return ConfirmResult{}, domain.ErrAmountMismatch
	}

	if !s.signer.Verify(req.Signature, intent.Reference, intent.AmountInCents, intent.Currency, intent.Expiration) {
		sec.Error("invalid integrity signature on confirmation", "amount", intent.AmountInCents)
		return ConfirmResult{}, domain.ErrInvalidSignature
	}

	tx, err := s.gateway.GetTransaction(ctx, req.TransactionID)
	if err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			sec.Error("confirmation names a transaction the gateway does not know")
			return ConfirmResult{}, err
		}
		return ConfirmResult{}, upstream(err)
	}
	if tx.Reference != intent.Reference || tx.AmountInCents != intent.AmountInCents || !strings.EqualFold(tx.Currency, intent.Currency) {
		sec.Error("gateway transaction does not match intent",
			"gateway_reference", tx.Reference, "gateway_amount", tx.AmountInCents, "gateway_currency", tx.Currency,
			"expected_amount", intent.AmountInCents, "expected_currency", intent.Currency)
		return ConfirmResult{}, domain.ErrTransactionMismatch
	}

	if err := s.intents.Delete(ctx, intent.Reference); err != nil {
		s.log.Warn("failed to retire confirmed intent", "reference", intent.Reference, "err", err)
	}

	s.log.Info("payment confirmed", "reference", intent.Reference, "transaction_id", tx.ID, "status", tx.Status)

	return ConfirmResult{
		Reference:     intent.Reference,
		TransactionID: tx.ID,
		Status:        tx.Status,
		StatusMessage: tx.StatusMessage,
		AmountInCents: tx.AmountInCents,
		Currency:      tx.Currency,
	}, nil
}

// Transaction is a pass-through lookup of the gateway's record.
func (s *Service) Transaction(ctx context.Context, id string) (domain.Transaction, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Transaction{}, fmt.Errorf("%w: transaction id is required", domain.ErrValidation)
	}
	tx, err := s.gateway.GetTransaction(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrTransactionNotFound) {
		return domain.Transaction{}, upstream(err)
	}
	return tx, err
}

// CreateTransaction submits a server-side transaction for a prepared
// reference, using the amount and signature bound to the intent.
func (s *Service) CreateTransaction(ctx context.Context, req TransactionRequest) (domain.Transaction, error) {
	ctx, span := s.tracer.Start(ctx, "CreateTransaction")
	defer span.End()

	if req.AcceptanceToken == "" {
		return domain.Transaction{}, fmt.Errorf("%w: acceptanceToken is required", domain.ErrValidation)
	}
	if len(req.PaymentMethod) == 0 {
		return domain.Transaction{}, fmt.Errorf("%w: paymentMethod is required", domain.ErrValidation)
	}

	intent, err := s.intents.Get(ctx, req.Reference)
	if err != nil {
		return domain.Transaction{}, err
	}

	tx, err := s.gateway.CreateTransaction(ctx, domain.CreateTransaction{
		AcceptanceToken:    req.AcceptanceToken,
		AcceptPersonalAuth: req.AcceptPersonalAuth,
		AmountInCents:      intent.AmountInCents,
		Currency:           intent.Currency,
		Signature:          s.signer.Sign(intent.Reference, intent.AmountInCents, intent.Currency, intent.Expiration),
		CustomerEmail:      intent.CustomerEmail,
		Reference:          intent.Reference,
		RedirectURL:        s.opts.RedirectURL,
		PaymentMethod:      req.PaymentMethod,
		ShippingAddress:    NormalizeAddress(req.ShippingAddress),
	})
	if err != nil {
		if errors.Is(err, domain.ErrGatewayRejected) {
			return domain.Transaction{}, err
		}
		return domain.Transaction{}, upstream(err)
	}
	s.log.Info("gateway transaction created", "reference", intent.Reference, "transaction_id", tx.ID, "status", tx.Status)
	return tx, nil
}

func (s *Service) TokenizeCard(ctx context.Context, card domain.Card) (domain.CardToken, error) {
	if card.Number == "" || card.CVC == "" || card.ExpMonth == "" || card.ExpYear == "" || card.CardHolder == "" {
		return domain.CardToken{}, fmt.Errorf("%w: card number, cvc, expiry and holder are required", domain.ErrValidation)
	}
	tok, err := s.gateway.TokenizeCard(ctx, card)
	if err != nil && !errors.Is(err, domain.ErrGatewayRejected) {
		return domain.CardToken{}, upstream(err)
	}
	return tok, err
}

// SweepIntents drops expired intents from the store.
func (s *Service) SweepIntents(ctx context.Context) (int, error) {
	return s.intents.Sweep(ctx, s.now())
}

// mintReference returns PREFIX-<unix millis>-<8 uppercase hex chars>.
func (s *Service) mintReference(now time.Time) (string, error) {
	b := make([]byte, 4)
	if _, err := io.ReadFull(s.rand, b); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d-%s", s.opts.ReferencePrefix, now.UnixMilli(), strings.ToUpper(hex.EncodeToString(b))), nil
}

func validateCart(req PrepareRequest) error {
	if len(req.Items) == 0 {
		return fmt.Errorf("%w: cart is empty", domain.ErrValidation)
	}
	for i, it := range req.Items {
		if it.Quantity <= 0 {
			return fmt.Errorf("%w: item %d: quantity must be positive", domain.ErrValidation, i)
		}
		if it.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: item %d: unit price must not be negative", domain.ErrValidation, i)
		}
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(req.Customer.Email)); err != nil {
		return fmt.Errorf("%w: customer email is invalid", domain.ErrValidation)
	}
	return nil
}

func upstream(err error) error {
	if errors.Is(err, domain.ErrUpstreamUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
}
