package repo

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/souq/services/storefront/internal/models"
)

const nextSequenceSQL = `INSERT INTO order_sequences (prefix, last_seq) VALUES (?, ?)
ON CONFLICT (prefix) DO UPDATE SET last_seq = CASE
	WHEN order_sequences.last_seq + 1 > excluded.last_seq THEN order_sequences.last_seq + 1
	ELSE excluded.last_seq
END
RETURNING last_seq`

// NextOrderSequence hands out the next daily sequence for prefix. Run it inside the order
// transaction: the counter row stays locked until commit, so concurrent orders queue on it
// instead of colliding, and a rollback gives the number back.
func (r *GormRepo) NextOrderSequence(ctx context.Context, prefix string) (int64, error) {
	taken, err := r.highestSequence(ctx, prefix)
	if err != nil {
		return 0, err
	}
	var seq int64
	if err := r.DB.WithContext(ctx).Raw(nextSequenceSQL, prefix, taken+1).Scan(&seq).Error; err != nil {
		return 0, fmt.Errorf("next order sequence: %w", err)
	}
	return seq, nil
}

// highestSequence reads the largest sequence already used by an order with this prefix.
func (r *GormRepo) highestSequence(ctx context.Context, prefix string) (int64, error) {
	var numbers []string
	err := r.DB.WithContext(ctx).
		Model(&models.Order{}).
		Where("order_number LIKE ?", prefix+"%").
		Order("LENGTH(order_number) DESC, order_number DESC").
		Limit(1).
		Pluck("order_number", &numbers).Error
	if err != nil || len(numbers) == 0 {
		return 0, err
	}
	n, err := strconv.ParseInt(strings.TrimPrefix(numbers[0], prefix), 10, 64)
	if err != nil {
		return 0, nil
	}
	return n, nil
}

func (r *GormRepo) CreateOrder(ctx context.Context, order *models.Order) error {
	return translate(r.DB.WithContext(ctx).Omit(clause.Associations).Create(order).Error, "order")
}

func (r *GormRepo) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	return r.DB.WithContext(ctx).Omit(clause.Associations).Create(item).Error
}

func (r *GormRepo) AppendStatusHistory(ctx context.Context, h *models.OrderStatusHistory) error {
	return r.DB.WithContext(ctx).Create(h).Error
}

// DecrementStock takes qty units from an active product only if enough remain.
// The check and the write are one statement, so concurrent orders cannot oversell.
func (r *GormRepo) DecrementStock(ctx context.Context, productID uuid.UUID, qty int) (bool, error) {
	res := r.DB.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND is_active = ? AND stock >= ?", productID, true, qty).
		Update("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *GormRepo) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var o models.Order
	err := r.DB.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Items.Product", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "name", "name_ar", "slug", "images", "price")
		}).
		Preload("StatusHistory", func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC, id ASC") }).
		Preload("User", func(db *gorm.DB) *gorm.DB { return db.Select("id", "name", "email", "phone") }).
		Where("id = ?", id).
		First(&o).Error
	if err != nil {
		return nil, translate(err, "order")
	}
	return &o, nil
}

func (r *GormRepo) ListOrdersByUser(ctx context.Context, userID uuid.UUID, offset, limit int) (int64, []models.Order, error) {
	q := r.DB.WithContext(ctx).Model(&models.Order{}).Where("user_id = ?", userID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return 0, nil, err
	}

	var orders []models.Order
	err := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Preload("Items.Product", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "name", "name_ar", "images")
		}).
		Order("created_at DESC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&orders).Error
	return total, orders, err
}

func (r *GormRepo) RecentOrders(ctx context.Context, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := r.DB.WithContext(ctx).
		Preload("Items.Product", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "name", "name_ar")
		}).
		Order("created_at DESC, id ASC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

func (r *GormRepo) OrdersByStatus(ctx context.Context, status string) ([]models.Order, error) {
	var orders []models.Order
	err := r.DB.WithContext(ctx).
		Where("status = ?", status).
		Preload("Items.Product", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "name", "name_ar", "images")
		}).
		Order("created_at ASC, id ASC").
		Find(&orders).Error
	return orders, err
}

// SetOrderStatus updates status and, when paymentStatus is non-empty, the payment flag.
func (r *GormRepo) SetOrderStatus(ctx context.Context, id uuid.UUID, status, paymentStatus string, at time.Time) error {
	fields := map[string]any{"status": status, "updated_at": at}
	if paymentStatus != "" {
		fields["payment_status"] = paymentStatus
	}
	res := r.DB.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return translate(gorm.ErrRecordNotFound, "order")
	}
	return nil
}

func (r *GormRepo) StockLevels(ctx context.Context, ids []uuid.UUID, threshold int) ([]models.Product, error) {
	var items []models.Product
	if len(ids) == 0 {
		return items, nil
	}
	err := r.DB.WithContext(ctx).
		Select("id", "name", "stock").
		Where("id IN ? AND stock <= ?", ids, threshold).
		Order("name ASC").
		Find(&items).Error
	return items, err
}
