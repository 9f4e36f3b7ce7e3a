package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"restaurant-live/internal/common/db"
	"restaurant-live/internal/domain"
)

// OrdersPG reads order records for snapshot replay and one-shot status
// lookups. The write path lives in the CRUD layer, not here.
type OrdersPG struct {
	conn *db.Conn
}

func NewOrdersPG(conn *db.Conn) *OrdersPG { return &OrdersPG{conn: conn} }

const orderColumns = `id, COALESCE(user_id, ''), status, items, total_price, total_points, created_at, updated_at`

func (r *OrdersPG) RecentOrders(ctx context.Context, since time.Time) ([]domain.Order, error) {
	rows, err := r.conn.Query(ctx, `
SELECT `+orderColumns+`
FROM orders
WHERE created_at >= $1
ORDER BY created_at DESC
`, since)
	if err != nil {
		return nil, fmt.Errorf("query recent orders: %w", err)
	}
	defer rows.Close()
	return scanOrders(rows)
}

func (r *OrdersPG) OrdersByUser(ctx context.Context, userID string, statuses []domain.OrderStatus) ([]domain.Order, error) {
	in := make([]string, len(statuses))
	for i, s := range statuses {
		in[i] = string(s)
	}
	rows, err := r.conn.Query(ctx, `
SELECT `+orderColumns+`
FROM orders
WHERE user_id = $1 AND status = ANY($2)
ORDER BY created_at DESC
`, userID, in)
	if err != nil {
		return nil, fmt.Errorf("query user orders: %w", err)
	}
	defer rows.Close()
	return scanOrders(rows)
}

func (r *OrdersPG) OrderByID(ctx context.Context, orderID string) (*domain.Order, error) {
	row := r.conn.QueryRow(ctx, `
SELECT `+orderColumns+`
FROM orders
WHERE id = $1
`, orderID)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query order %s: %w", orderID, err)
	}
	return &o, nil
}

func scanOrders(rows pgx.Rows) ([]domain.Order, error) {
	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		o        domain.Order
		status   string
		itemsRaw []byte
	)
	err := row.Scan(&o.ID, &o.UserID, &status, &itemsRaw, &o.TotalPrice, &o.TotalPoints, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return domain.Order{}, err
	}
	o.Status = domain.OrderStatus(status)
	if len(itemsRaw) > 0 {
		if err := json.Unmarshal(itemsRaw, &o.Items); err != nil {
			return domain.Order{}, fmt.Errorf("decode items for order %s: %w", o.ID, err)
		}
	}
	return o, nil
}
