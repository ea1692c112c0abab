package repo

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Skotchmaster/school_canteen/internal/models"
	"github.com/Skotchmaster/school_canteen/internal/money"
)

// StatsRepo runs the admin dashboard aggregates as plain SQL.
type StatsRepo struct {
	DB *sqlx.DB
}

type PopularMeal struct {
	MealID   uint   `db:"meal_id"  json:"meal_id"`
	Name     string `db:"name"     json:"name"`
	Quantity int64  `db:"quantity" json:"quantity"`
}

type StatusCount struct {
	Status string `db:"status" json:"status"`
	Count  int64  `db:"count"  json:"count"`
}

type DashboardStats struct {
	UsersTotal     int64         `json:"users_total"`
	OrdersToday    int64         `json:"orders_today"`
	RevenueToday   money.Amount  `json:"revenue_today"`
	PendingOrders  int64         `json:"pending_orders"`
	TopUpsToday    money.Amount  `json:"topups_today"`
	OrdersByStatus []StatusCount `json:"orders_by_status"`
	PopularMeals   []PopularMeal `json:"popular_meals"`
	GeneratedAt    time.Time     `json:"generated_at"`
}

const (
	qUsersTotal = `SELECT COUNT(*) FROM users`

	qOrdersSince = `SELECT COUNT(*) AS orders, COALESCE(SUM(final_amount), 0) AS revenue
		FROM orders WHERE created_at >= ? AND status <> ?`

	qPending = `SELECT COUNT(*) FROM orders WHERE status = ?`

	qTopUpsSince = `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE created_at >= ? AND status = ?`

	qByStatus = `SELECT status, COUNT(*) AS count FROM orders GROUP BY status ORDER BY status`

	qPopular = `SELECT oi.meal_id AS meal_id, m.name AS name, SUM(oi.quantity) AS quantity
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		JOIN meals m ON m.id = oi.meal_id
		WHERE o.status <> ?
		GROUP BY oi.meal_id, m.name
		ORDER BY quantity DESC, oi.meal_id ASC
		LIMIT ?`
)

func (r *StatsRepo) Dashboard(ctx context.Context, since time.Time, popularLimit int) (*DashboardStats, error) {
	st := &DashboardStats{GeneratedAt: time.Now().UTC()}
	since = since.UTC()

	if err := r.DB.GetContext(ctx, &st.UsersTotal, r.DB.Rebind(qUsersTotal)); err != nil {
		return nil, err
	}

	var today struct {
		Orders  int64        `db:"orders"`
		Revenue money.Amount `db:"revenue"`
	}
	if err := r.DB.GetContext(ctx, &today, r.DB.Rebind(qOrdersSince), since, string(models.OrderStatusCancelled)); err != nil {
		return nil, err
	}
	st.OrdersToday = today.Orders
	st.RevenueToday = today.Revenue

	if err := r.DB.GetContext(ctx, &st.PendingOrders, r.DB.Rebind(qPending), string(models.OrderStatusPending)); err != nil {
		return nil, err
	}
	if err := r.DB.GetContext(ctx, &st.TopUpsToday, r.DB.Rebind(qTopUpsSince), since, models.PaymentStatusCompleted); err != nil {
		return nil, err
	}

	st.OrdersByStatus = []StatusCount{}
	if err := r.DB.SelectContext(ctx, &st.OrdersByStatus, r.DB.Rebind(qByStatus)); err != nil {
		return nil, err
	}

	st.PopularMeals = []PopularMeal{}
	if err := r.DB.SelectContext(ctx, &st.PopularMeals, r.DB.Rebind(qPopular), string(models.OrderStatusCancelled), popularLimit); err != nil {
		return nil, err
	}

	return st, nil
}
