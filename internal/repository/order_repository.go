package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/campus-print-api/internal/models"
)

// ErrDuplicateToken is returned by Create when the tracking token is already taken.
var ErrDuplicateToken = errors.New("tracking token already exists")

const uniqueViolation = "23505"

const orderColumns = `id, tracking_token, submitter_type, submitter_id, original_filename, stored_filename, file_size, mime_type, total_pages, color_pages, bw_pages, print_options, total_price, notes, status, payment_status, created_at, updated_at, expires_at`

// OrderRepository provides database access for print orders.
type OrderRepository struct {
	db *sqlx.DB
}

// NewOrderRepository creates a new instance of OrderRepository.
func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts a pending order and fills in the generated id.
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	if order.Status == "" {
		order.Status = models.OrderStatusPending
	}
	if order.PaymentStatus == "" {
		order.PaymentStatus = models.PaymentStateUnpaid
	}
	const query = `INSERT INTO orders (tracking_token, submitter_type, submitter_id, original_filename, stored_filename, file_size, mime_type, total_pages, color_pages, bw_pages, print_options, total_price, notes, status, payment_status, created_at, updated_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18) RETURNING id`
	err := r.db.QueryRowxContext(ctx, query,
		order.TrackingToken, order.SubmitterType, order.SubmitterID, order.OriginalFilename, order.StoredFilename,
		order.FileSize, order.MimeType, order.TotalPages, order.ColorPages, order.BWPages, order.Options,
		order.TotalPrice, order.Notes, order.Status, order.PaymentStatus, order.CreatedAt, order.UpdatedAt, order.ExpiresAt,
	).Scan(&order.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateToken
		}
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

// FindByID returns an order by its identifier.
func (r *OrderRepository) FindByID(ctx context.Context, id int64) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	var order models.Order
	if err := r.db.GetContext(ctx, &order, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find order by id: %w", err)
	}
	return &order, nil
}

// FindByToken returns the order carrying the tracking token.
func (r *OrderRepository) FindByToken(ctx context.Context, token string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE tracking_token = $1`
	var order models.Order
	if err := r.db.GetContext(ctx, &order, query, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find order by token: %w", err)
	}
	return &order, nil
}

// FindLatestBySubmitter returns the most recent order of a student or department.
func (r *OrderRepository) FindLatestBySubmitter(ctx context.Context, submitterID string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE submitter_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1`
	var order models.Order
	if err := r.db.GetContext(ctx, &order, query, submitterID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find latest order by submitter: %w", err)
	}
	return &order, nil
}

// Transition locks the order row, asks decide for the next status and stores it.
// An error from decide aborts the transaction and is returned unchanged. When
// decide keeps the current status the row, including updated_at, is untouched.
func (r *OrderRepository) Transition(ctx context.Context, id int64, decide func(current *models.Order) (models.OrderStatus, error), now time.Time) (order *models.Order, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin order transition: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current models.Order
	lockQuery := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &current, lockQuery, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock order: %w", err)
	}

	next, err := decide(&current)
	if err != nil {
		return nil, err
	}
	if next == current.Status {
		if err = tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit order transition: %w", err)
		}
		return &current, nil
	}

	const updateQuery = `UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, updateQuery, id, next, now); err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit order transition: %w", err)
	}

	current.Status = next
	current.UpdatedAt = now
	return &current, nil
}

// DeleteIf locks the order by token, runs check and hard deletes the row when
// check passes. The deleted row is returned so the caller can remove its file.
func (r *OrderRepository) DeleteIf(ctx context.Context, token string, check func(current *models.Order) error) (order *models.Order, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin order delete: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current models.Order
	lockQuery := `SELECT ` + orderColumns + ` FROM orders WHERE tracking_token = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &current, lockQuery, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock order: %w", err)
	}

	if err = check(&current); err != nil {
		return nil, err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, current.ID); err != nil {
		return nil, fmt.Errorf("delete order: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit order delete: %w", err)
	}
	return &current, nil
}

// List returns orders matching the filter, newest first, with the total count.
func (r *OrderRepository) List(ctx context.Context, filter models.OrderFilter) ([]models.Order, int, error) {
	baseQuery := `FROM orders WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.SubmitterID != "" {
		conditions = append(conditions, fmt.Sprintf("submitter_id = $%d", len(args)+1))
		args = append(args, filter.SubmitterID)
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC, id DESC LIMIT %d OFFSET %d", orderColumns, baseQuery, pageSize, offset)
	var orders []models.Order
	if err := r.db.SelectContext(ctx, &orders, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}
	return orders, total, nil
}

// sweepablePredicate matches terminal orders last touched before $1 and unpaid
// pending orders whose expiry is before $2.
const sweepablePredicate = `((status IN ('completed', 'cancelled') AND updated_at < $1)
   OR (status = 'pending' AND payment_status = 'unpaid' AND expires_at IS NOT NULL AND expires_at < $2))`

// FindSweepable returns the next batch of orders eligible for the sweep with an
// id above AfterID. Processing orders are never returned.
func (r *OrderRepository) FindSweepable(ctx context.Context, criteria models.SweepCriteria) ([]models.Order, error) {
	limit := criteria.Limit
	if limit <= 0 {
		limit = 500
	}
	query := `SELECT ` + orderColumns + ` FROM orders
WHERE ` + sweepablePredicate + ` AND id > $3
ORDER BY id LIMIT $4`
	var orders []models.Order
	if err := r.db.SelectContext(ctx, &orders, query, criteria.TerminalBefore, criteria.ExpiredBefore, criteria.AfterID, limit); err != nil {
		return nil, fmt.Errorf("find sweepable orders: %w", err)
	}
	return orders, nil
}

// DeleteSweepable deletes the order only while it still matches the sweep
// criteria and returns its stored filename. sql.ErrNoRows is returned when the
// order is gone or no longer eligible.
func (r *OrderRepository) DeleteSweepable(ctx context.Context, id int64, criteria models.SweepCriteria) (string, error) {
	query := `DELETE FROM orders WHERE ` + sweepablePredicate + ` AND id = $3 RETURNING stored_filename`
	var stored string
	if err := r.db.GetContext(ctx, &stored, query, criteria.TerminalBefore, criteria.ExpiredBefore, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", err
		}
		return "", fmt.Errorf("delete sweepable order: %w", err)
	}
	return stored, nil
}

// StoredFilenamesIn returns the subset of keys still referenced by an order.
func (r *OrderRepository) StoredFilenamesIn(ctx context.Context, keys []string) (map[string]struct{}, error) {
	referenced := make(map[string]struct{}, len(keys))
	if len(keys) == 0 {
		return referenced, nil
	}
	const query = `SELECT stored_filename FROM orders WHERE stored_filename = ANY($1)`
	var names []string
	if err := r.db.SelectContext(ctx, &names, query, pq.Array(keys)); err != nil {
		return nil, fmt.Errorf("find referenced files: %w", err)
	}
	for _, name := range names {
		referenced[name] = struct{}{}
	}
	return referenced, nil
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}
