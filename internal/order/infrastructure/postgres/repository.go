package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	invdomain "github.com/fuyileeperez18-source/melo-sportt-sub001/internal/inventory/domain"
	invpg "github.com/fuyileeperez18-source/melo-sportt-sub001/internal/inventory/infrastructure/postgres"
	"github.com/fuyileeperez18-source/melo-sportt-sub001/internal/order/application"
	"github.com/fuyileeperez18-source/melo-sportt-sub001/internal/order/domain"
	"github.com/fuyileeperez18-source/melo-sportt-sub001/pkg/outbox"
	"github.com/fuyileeperez18-source/melo-sportt-sub001/pkg/tracing"
)

const aggregateOrder = "order"

type Repository struct {
	log   *slog.Logger
	pool  *pgxpool.Pool
	stock *invpg.Stock
	now   func() time.Time
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool, stock *invpg.Stock) *Repository {
	return &Repository{log: log, pool: pool, stock: stock, now: time.Now}
}

// withTx runs fn in a transaction, committing only when fn succeeds.
func (r *Repository) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) Create(ctx context.Context, o domain.Order) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		lines := stockLines(o.Items)
		if o.PaymentMethod.Deferred() {
			if err := r.stock.Check(ctx, tx, lines); err != nil {
				return err
			}
		} else if err := r.stock.Decrement(ctx, tx, lines, invdomain.Strict); err != nil {
			return err
		}

		_, err := tx.Exec(ctx, `INSERT INTO orders (id, order_number, user_id, customer_email, subtotal, discount,
				shipping_cost, tax, total, currency, status, payment_status, payment_method, shipping_address,
				billing_address, created_at, updated_at)
			VALUES ($1,$2,NULLIF($3,''),$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$16)`,
			o.ID, o.OrderNumber, o.UserID, o.CustomerEmail, o.Subtotal, o.Discount,
			o.ShippingCost, o.Tax, o.Total, o.Currency, o.Status, o.PaymentStatus, o.PaymentMethod,
			o.ShippingAddress, o.BillingAddress, o.CreatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return fmt.Errorf("%w: %s", domain.ErrDuplicateOrderNumber, o.OrderNumber)
			}
			return fmt.Errorf("insert order: %w", err)
		}

		batch := &pgx.Batch{}
		for _, it := range o.Items {
			batch.Queue(`INSERT INTO order_items (id, order_id, product_id, variant_id, title, quantity, unit_price, line_total)
				VALUES ($1,$2,$3,NULLIF($4,'')::uuid,$5,$6,$7,$8)`,
				it.ID, o.ID, it.ProductID, it.VariantID, it.Title, it.Quantity, it.UnitPrice, it.LineTotal)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert order items: %w", err)
		}

		return outbox.Insert(ctx, tx, aggregateOrder, o.ID.String(), domain.EventOrderPlaced, domain.OrderPlaced{
			OrderID:       o.ID.String(),
			OrderNumber:   o.OrderNumber,
			PaymentMethod: string(o.PaymentMethod),
			Total:         o.Total,
			Currency:      o.Currency,
		}, nil, tracing.Traceparent(ctx))
	})
}

// MarkPaid settles an approval in one transaction: the order row is locked,
// and if it is not already paid the status change, stock decrement,
// platform commission, team commissions and outbox event commit together.
// Commission inserts also rely on unique constraints, so a concurrent
// delivery that slipped past the row lock still cannot double insert.
func (r *Repository) MarkPaid(ctx context.Context, p application.Payment) (domain.Order, bool, error) {
	var (
		o       domain.Order
		applied bool
	)
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		o, err = r.lockByNumber(ctx, tx, p.Reference)
		if err != nil {
			return err
		}
		now := r.now().UTC()
		if applied = o.MarkPaid(p.TransactionID, now); !applied {
			return nil
		}

		if err := r.updatePayment(ctx, tx, o); err != nil {
			return err
		}

		// orders not paid through the gateway took their stock at creation
		if o.PaymentMethod.Deferred() {
			if err := r.stock.Decrement(ctx, tx, stockLines(o.Items), invdomain.AllowOversell); err != nil {
				return err
			}
		}

		pc := domain.NewPlatformCommission(o, p.PlatformCommissionPct, now)
		_, err = tx.Exec(ctx, `INSERT INTO platform_commissions (id, order_id, percentage, base_amount, amount, created_at)
			VALUES ($1,$2,$3,$4,$5,$6) ON CONFLICT (order_id) DO NOTHING`,
			pc.ID, pc.OrderID, pc.Percentage.String(), pc.Base, pc.Amount, pc.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert platform commission: %w", err)
		}

		members, err := activeTeamMembers(ctx, tx)
		if err != nil {
			return err
		}
		commissions := domain.FanOut(o, members, now)
		if len(commissions) > 0 {
			batch := &pgx.Batch{}
			for _, c := range commissions {
				batch.Queue(`INSERT INTO commissions (id, order_id, team_member_id, commission_percentage, commission_amount, created_at)
					VALUES ($1,$2,$3,$4,$5,$6) ON CONFLICT (order_id, team_member_id) DO NOTHING`,
					c.ID, c.OrderID, c.TeamMemberID, c.Percentage.String(), c.Amount, c.CreatedAt)
			}
			if err := tx.SendBatch(ctx, batch).Close(); err != nil {
				return fmt.Errorf("insert commissions: %w", err)
			}
		}

		return outbox.Insert(ctx, tx, aggregateOrder, o.ID.String(), domain.EventPaymentApproved, domain.PaymentApproved{
			OrderID:       o.ID.String(),
			OrderNumber:   o.OrderNumber,
			TransactionID: p.TransactionID,
			Amount:        p.AmountInCents,
			Currency:      p.Currency,
			CustomerEmail: o.CustomerEmail,
		}, nil, tracing.Traceparent(ctx))
	})
	if err != nil {
		return domain.Order{}, false, err
	}
	if applied {
		r.log.Info("order settled", "order_id", o.ID, "order_number", o.OrderNumber, "transaction_id", p.TransactionID)
	}
	return o, applied, nil
}

func (r *Repository) MarkFailed(ctx context.Context, reference, transactionID string) (domain.Order, bool, error) {
	var (
		o       domain.Order
		changed bool
	)
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		o, err = r.lockByNumber(ctx, tx, reference)
		if err != nil {
			return err
		}
		if changed = o.MarkFailed(transactionID, r.now().UTC()); !changed {
			return nil
		}
		if err := r.updatePayment(ctx, tx, o); err != nil {
			return err
		}
		return outbox.Insert(ctx, tx, aggregateOrder, o.ID.String(), domain.EventPaymentFailed, domain.PaymentFailedEvent{
			OrderID:       o.ID.String(),
			OrderNumber:   o.OrderNumber,
			TransactionID: transactionID,
		}, nil, tracing.Traceparent(ctx))
	})
	if err != nil {
		return domain.Order{}, false, err
	}
	return o, changed, nil
}

func (r *Repository) Refund(ctx context.Context, id uuid.UUID, partial bool) (domain.Order, error) {
	var o domain.Order
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		o, err = r.lockByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := o.Refund(partial, r.now().UTC()); err != nil {
			return err
		}
		if err := r.updatePayment(ctx, tx, o); err != nil {
			return err
		}
		return outbox.Insert(ctx, tx, aggregateOrder, o.ID.String(), domain.EventOrderRefunded, domain.OrderRefunded{
			OrderID:       o.ID.String(),
			OrderNumber:   o.OrderNumber,
			PaymentStatus: string(o.PaymentStatus),
		}, nil, tracing.Traceparent(ctx))
	})
	return o, err
}

func (r *Repository) Advance(ctx context.Context, id uuid.UUID, to domain.Status) (domain.Order, error) {
	var o domain.Order
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		o, err = r.lockByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := o.Advance(to, r.now().UTC()); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE orders SET status=$2, updated_at=$3 WHERE id=$1`, o.ID, o.Status, o.UpdatedAt)
		return err
	})
	return o, err
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (domain.Order, error) {
	return r.load(ctx, r.pool, `WHERE id=$1`, id)
}

func (r *Repository) GetByNumber(ctx context.Context, orderNumber string) (domain.Order, error) {
	return r.load(ctx, r.pool, `WHERE order_number=$1`, orderNumber)
}

func (r *Repository) lockByNumber(ctx context.Context, tx pgx.Tx, number string) (domain.Order, error) {
	return r.load(ctx, tx, `WHERE order_number=$1 FOR UPDATE`, number)
}

func (r *Repository) lockByID(ctx context.Context, tx pgx.Tx, id uuid.UUID) (domain.Order, error) {
	return r.load(ctx, tx, `WHERE id=$1 FOR UPDATE`, id)
}

func (r *Repository) updatePayment(ctx context.Context, tx pgx.Tx, o domain.Order) error {
	_, err := tx.Exec(ctx, `UPDATE orders SET payment_status=$2, status=$3, payment_id=NULLIF($4,''), paid_at=$5, updated_at=$6
		WHERE id=$1`, o.ID, o.PaymentStatus, o.Status, o.PaymentID, o.PaidAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update order payment: %w", err)
	}
	return nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const orderColumns = `id, order_number, COALESCE(user_id,''), customer_email, subtotal, discount, shipping_cost, tax,
	total, currency, status, payment_status, payment_method, COALESCE(payment_id,''), shipping_address, billing_address,
	COALESCE(tracking_number,''), COALESCE(tracking_url,''), paid_at, created_at, updated_at`

func (r *Repository) load(ctx context.Context, q querier, where string, arg any) (domain.Order, error) {
	var o domain.Order
	err := q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders `+where, arg).Scan(
		&o.ID, &o.OrderNumber, &o.UserID, &o.CustomerEmail, &o.Subtotal, &o.Discount, &o.ShippingCost, &o.Tax,
		&o.Total, &o.Currency, &o.Status, &o.PaymentStatus, &o.PaymentMethod, &o.PaymentID, &o.ShippingAddress,
		&o.BillingAddress, &o.TrackingNumber, &o.TrackingURL, &o.PaidAt, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Order{}, fmt.Errorf("%w: %v", domain.ErrOrderNotFound, arg)
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("load order: %w", err)
	}

	rows, err := q.Query(ctx, `SELECT id, product_id::text, COALESCE(variant_id::text,''), title, quantity, unit_price, line_total
		FROM order_items WHERE order_id=$1 ORDER BY product_id, variant_id`, o.ID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it domain.Item
		if err := rows.Scan(&it.ID, &it.ProductID, &it.VariantID, &it.Title, &it.Quantity, &it.UnitPrice, &it.LineTotal); err != nil {
			return domain.Order{}, err
		}
		o.Items = append(o.Items, it)
	}
	return o, rows.Err()
}

func activeTeamMembers(ctx context.Context, tx pgx.Tx) ([]domain.TeamMember, error) {
	rows, err := tx.Query(ctx, `SELECT id::text, commission_percentage::text FROM team_members
		WHERE is_active AND commission_percentage > 0 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load team members: %w", err)
	}
	defer rows.Close()

	var members []domain.TeamMember
	for rows.Next() {
		var id, pct string
		if err := rows.Scan(&id, &pct); err != nil {
			return nil, err
		}
		p, err := decimal.NewFromString(pct)
		if err != nil {
			return nil, fmt.Errorf("team member %s percentage: %w", id, err)
		}
		members = append(members, domain.TeamMember{ID: id, Percentage: p, Active: true})
	}
	return members, rows.Err()
}

func stockLines(items []domain.Item) []invdomain.Line {
	lines := make([]invdomain.Line, 0, len(items))
	for _, it := range items {
		lines = append(lines, invdomain.Line{ProductID: it.ProductID, VariantID: it.VariantID, Quantity: it.Quantity})
	}
	return lines
}
