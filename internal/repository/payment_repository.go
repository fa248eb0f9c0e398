package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-print-api/internal/models"
)

const paymentColumns = `id, order_id, amount, method, payer_name, payer_email, transaction_id, status, created_at`

// PaymentRepository provides database access for payments.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository creates a new instance of PaymentRepository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Record locks the order identified by token, lets build validate it and
// produce the payment, then inserts the payment and marks the order paid in
// the same transaction. Only payment_status is changed on the order.
func (r *PaymentRepository) Record(ctx context.Context, token string, build func(order *models.Order) (*models.Payment, error)) (payment *models.Payment, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin payment: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var order models.Order
	lockQuery := `SELECT ` + orderColumns + ` FROM orders WHERE tracking_token = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &order, lockQuery, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock order for payment: %w", err)
	}

	payment, err = build(&order)
	if err != nil {
		return nil, err
	}
	payment.OrderID = order.ID

	const insertQuery = `INSERT INTO payments (order_id, amount, method, payer_name, payer_email, transaction_id, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	if err = tx.QueryRowxContext(ctx, insertQuery,
		payment.OrderID, payment.Amount, payment.Method, payment.PayerName, payment.PayerEmail,
		payment.TransactionID, payment.Status, payment.CreatedAt,
	).Scan(&payment.ID); err != nil {
		return nil, fmt.Errorf("insert payment: %w", err)
	}

	const markQuery = `UPDATE orders SET payment_status = $2 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, markQuery, order.ID, models.PaymentStatePaid); err != nil {
		return nil, fmt.Errorf("mark order paid: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit payment: %w", err)
	}
	return payment, nil
}

// LatestForOrder returns the most recent payment of an order.
func (r *PaymentRepository) LatestForOrder(ctx context.Context, orderID int64) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE order_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1`
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, orderID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find payment by order: %w", err)
	}
	return &payment, nil
}

// List returns payments newest first joined with their order token.
func (r *PaymentRepository) List(ctx context.Context, page, pageSize int) ([]models.PaymentListItem, int, error) {
	page, pageSize = normalizePage(page, pageSize)
	offset := (page - 1) * pageSize

	query := fmt.Sprintf(`SELECT p.id, p.order_id, p.amount, p.method, p.payer_name, p.payer_email, p.transaction_id, p.status, p.created_at, o.tracking_token
FROM payments p JOIN orders o ON o.id = p.order_id
ORDER BY p.created_at DESC, p.id DESC LIMIT %d OFFSET %d`, pageSize, offset)
	var items []models.PaymentListItem
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM payments`); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}
	return items, total, nil
}
