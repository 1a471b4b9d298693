package domain

import (
	"fmt"
	"slices"
	"time"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:           {PaymentPaid, PaymentFailed},
	PaymentFailed:            {PaymentPaid},
	PaymentPaid:              {PaymentRefunded, PaymentPartiallyRefunded},
	PaymentPartiallyRefunded: {PaymentRefunded},
}

var statusTransitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusCancelled, StatusRefunded},
	StatusConfirmed:  {StatusProcessing, StatusCancelled, StatusRefunded},
	StatusProcessing: {StatusShipped, StatusRefunded},
	StatusShipped:    {StatusDelivered, StatusRefunded},
	StatusDelivered:  {StatusRefunded},
}

func CanTransitionPayment(from, to PaymentStatus) bool {
	return slices.Contains(paymentTransitions[from], to)
}

func CanTransitionStatus(from, to Status) bool {
	return slices.Contains(statusTransitions[from], to)
}

// MarkPaid applies an approved payment. It returns false without changing
// anything when the order is already paid or refunded, so replays are safe.
func (o *Order) MarkPaid(transactionID string, now time.Time) bool {
	if !CanTransitionPayment(o.PaymentStatus, PaymentPaid) {
		return false
	}
	o.PaymentStatus = PaymentPaid
	o.PaymentID = transactionID
	o.PaidAt = &now
	if o.Status == StatusPending {
		o.Status = StatusConfirmed
	}
	o.UpdatedAt = now
	return true
}

// MarkFailed records a failed attempt. Fulfillment status is left alone so
// the customer can retry; a paid order is never regressed.
func (o *Order) MarkFailed(transactionID string, now time.Time) bool {
	if o.PaymentStatus == PaymentFailed || !CanTransitionPayment(o.PaymentStatus, PaymentFailed) {
		return false
	}
	o.PaymentStatus = PaymentFailed
	if transactionID != "" {
		o.PaymentID = transactionID
	}
	o.UpdatedAt = now
	return true
}

// Refund is the only way out of paid.
func (o *Order) Refund(partial bool, now time.Time) error {
	to := PaymentRefunded
	if partial {
		to = PaymentPartiallyRefunded
	}
	if !CanTransitionPayment(o.PaymentStatus, to) {
		return fmt.Errorf("%w: payment %s -> %s", ErrIllegalTransition, o.PaymentStatus, to)
	}
	o.PaymentStatus = to
	if !partial {
		o.Status = StatusRefunded
	}
	o.UpdatedAt = now
	return nil
}

// Advance moves fulfillment forward on an admin's request.
func (o *Order) Advance(to Status, now time.Time) error {
	if !CanTransitionStatus(o.Status, to) {
		return fmt.Errorf("%w: status %s -> %s", ErrIllegalTransition, o.Status, to)
	}
	if to == StatusProcessing && o.PaymentMethod.Deferred() && o.PaymentStatus != PaymentPaid {
		return fmt.Errorf("%w: order %s is not paid", ErrIllegalTransition, o.OrderNumber)
	}
	o.Status = to
	o.UpdatedAt = now
	return nil
}
