package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/souq/pkg/apperr"
	"github.com/Skotchmaster/souq/pkg/events"
	"github.com/Skotchmaster/souq/pkg/logging"
	"github.com/Skotchmaster/souq/services/storefront/internal/models"
	"github.com/Skotchmaster/souq/services/storefront/internal/repo"
	"github.com/Skotchmaster/souq/services/storefront/internal/transport"
	"github.com/Skotchmaster/souq/services/storefront/internal/util"
)

const (
	orderNumberPrefix       = "CMD"
	defaultMaxOrderAttempts = 5
	createdNote             = "order created"
)

// Publisher accepts events without blocking; false means the event was dropped.
type Publisher interface {
	Enqueue(e events.Event) bool
}

type OrderService struct {
	Repo     *repo.GormRepo
	Delivery *DeliveryService
	Events   Publisher

	Now               func() time.Time
	Location          *time.Location
	LowStockThreshold int
	MaxAttempts       int
}

type lineItem struct {
	productID uuid.UUID
	quantity  int
	price     decimal.Decimal
}

func (s *OrderService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *OrderService) location() *time.Location {
	if s.Location != nil {
		return s.Location
	}
	return time.UTC
}

// FormatOrderNumber renders CMD + YYMMDD + 3-digit daily sequence.
func FormatOrderNumber(day time.Time, seq int64) string {
	return formatSequence(orderNumberDay(day), seq)
}

func orderNumberDay(day time.Time) string {
	return fmt.Sprintf("%s%02d%02d%02d", orderNumberPrefix, day.Year()%100, int(day.Month()), day.Day())
}

func formatSequence(prefix string, seq int64) string {
	return fmt.Sprintf("%s%03d", prefix, seq)
}

// StartOfDay returns local midnight of t's day in loc, expressed in UTC.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc).UTC()
}

func ParseStatus(s string) (string, error) {
	st := strings.ToLower(strings.TrimSpace(s))
	for _, known := range models.OrderStatuses {
		if st == known {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", apperr.ErrInvalidStatus, s)
}

func parseDeliveryDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("%w: deliveryDate must be YYYY-MM-DD or RFC3339", apperr.ErrValidation)
	}
	t = t.UTC()
	return &t, nil
}

// customerPhone stores Moroccan mobiles in the +212 form login uses; other numbers stay as typed.
func customerPhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if ValidPhone(phone) {
		return CanonicalPhone(phone)
	}
	return phone
}

func validateOrder(in transport.CreateOrderRequest) ([]lineItem, decimal.Decimal, error) {
	required := map[string]string{
		"customerName":    in.CustomerName,
		"customerPhone":   in.CustomerPhone,
		"deliveryAddress": in.DeliveryAddress,
		"city":            in.City,
	}
	for _, field := range []string{"customerName", "customerPhone", "deliveryAddress", "city"} {
		if strings.TrimSpace(required[field]) == "" {
			return nil, decimal.Zero, fmt.Errorf("%w: %s is required", apperr.ErrValidation, field)
		}
	}
	if len(in.Items) == 0 {
		return nil, decimal.Zero, fmt.Errorf("%w: items must not be empty", apperr.ErrValidation)
	}

	items := make([]lineItem, 0, len(in.Items))
	subtotal := decimal.Zero
	for i, it := range in.Items {
		id, err := uuid.Parse(strings.TrimSpace(it.ProductID))
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("%w: items[%d].productId is not a valid id", apperr.ErrValidation, i)
		}
		if it.Quantity <= 0 {
			return nil, decimal.Zero, fmt.Errorf("%w: items[%d].quantity must be positive", apperr.ErrValidation, i)
		}
		if it.Price == nil || it.Price.IsNegative() {
			return nil, decimal.Zero, fmt.Errorf("%w: items[%d].price must be a non-negative amount", apperr.ErrValidation, i)
		}
		items = append(items, lineItem{productID: id, quantity: it.Quantity, price: *it.Price})
		subtotal = subtotal.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return items, subtotal, nil
}

// CreateOrder persists an order, its items and its first history row atomically.
// Numbers come from a per-day counter, so concurrent orders wait on each other rather than
// collide; a unique violation only happens when a row was written around the counter, and
// that is retried with the next free number.
func (s *OrderService) CreateOrder(ctx context.Context, in transport.CreateOrderRequest, userID *uuid.UUID) (*models.Order, error) {
	l := logging.FromContext(ctx).With("svc", "order.create")

	items, subtotal, err := validateOrder(in)
	if err != nil {
		return nil, err
	}
	deliveryDate, err := parseDeliveryDate(in.DeliveryDate)
	if err != nil {
		return nil, err
	}

	attempts := s.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxOrderAttempts
	}

	var order *models.Order
	for attempt := 1; ; attempt++ {
		order, err = s.createOnce(ctx, in, items, subtotal, deliveryDate, userID)
		if err == nil {
			break
		}
		if !errors.Is(err, apperr.ErrConflict) {
			return nil, err
		}
		if attempt >= attempts {
			l.Error("order_number_exhausted", "attempts", attempt, "error", err)
			return nil, fmt.Errorf("allocate order number: gave up after %d attempts", attempt)
		}
		l.Warn("order_number_conflict", "attempt", attempt, "error", err)
	}

	l.Info("order_created", "order_id", order.ID, "order_number", order.OrderNumber, "total", order.Total.String())
	s.afterCreate(ctx, order, items)
	return order, nil
}

func (s *OrderService) createOnce(ctx context.Context, in transport.CreateOrderRequest, items []lineItem,
	subtotal decimal.Decimal, deliveryDate *time.Time, userID *uuid.UUID) (*models.Order, error) {

	var order *models.Order
	err := s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		now := s.now().UTC()
		prefix := orderNumberDay(now.In(s.location()))

		seq, err := tx.NextOrderSequence(ctx, prefix)
		if err != nil {
			return err
		}
		number := formatSequence(prefix, seq)

		fee, err := s.Delivery.WithRepo(tx).FeeFor(ctx, in.City, subtotal)
		if err != nil {
			return err
		}

		o := &models.Order{
			OrderNumber:     number,
			UserID:          userID,
			CustomerName:    strings.TrimSpace(in.CustomerName),
			CustomerPhone:   customerPhone(in.CustomerPhone),
			CustomerEmail:   strings.TrimSpace(in.CustomerEmail),
			DeliveryAddress: strings.TrimSpace(in.DeliveryAddress),
			City:            strings.TrimSpace(in.City),
			Notes:           in.Notes,
			Subtotal:        subtotal,
			DeliveryFee:     fee,
			Total:           subtotal.Add(fee),
			Status:          models.StatusPending,
			PaymentStatus:   models.PaymentPending,
			DeliveryDate:    deliveryDate,
			DeliveryTime:    in.DeliveryTime,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := tx.CreateOrder(ctx, o); err != nil {
			return err
		}

		for _, it := range items {
			ok, err := tx.DecrementStock(ctx, it.productID, it.quantity)
			if err != nil {
				return err
			}
			if !ok {
				return unavailableProduct(ctx, tx, it.productID)
			}
			item := &models.OrderItem{
				OrderID:   o.ID,
				ProductID: it.productID,
				Quantity:  it.quantity,
				Price:     it.price,
			}
			if err := tx.CreateOrderItem(ctx, item); err != nil {
				return err
			}
			o.Items = append(o.Items, *item)
		}

		history := &models.OrderStatusHistory{
			OrderID:   o.ID,
			Status:    models.StatusPending,
			Notes:     createdNote,
			CreatedAt: now,
		}
		if err := tx.AppendStatusHistory(ctx, history); err != nil {
			return err
		}
		o.StatusHistory = []models.OrderStatusHistory{*history}

		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// unavailableProduct explains why a stock decrement matched no row.
func unavailableProduct(ctx context.Context, tx *repo.GormRepo, id uuid.UUID) error {
	p, err := tx.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return fmt.Errorf("%w: product %s does not exist", apperr.ErrValidation, id)
		}
		return err
	}
	if !p.IsActive {
		return fmt.Errorf("%w: product %s is not available", apperr.ErrValidation, p.Name)
	}
	return fmt.Errorf("%w for product %s", apperr.ErrInsufficientStock, p.Name)
}

func orderPayload(o *models.Order) *events.OrderPayload {
	return &events.OrderPayload{
		ID:              o.ID.String(),
		OrderNumber:     o.OrderNumber,
		CustomerName:    o.CustomerName,
		CustomerPhone:   o.CustomerPhone,
		DeliveryAddress: o.DeliveryAddress,
		City:            o.City,
		Subtotal:        o.Subtotal,
		DeliveryFee:     o.DeliveryFee,
		Total:           o.Total,
		Status:          o.Status,
		DeliveryDate:    o.DeliveryDate,
		DeliveryTime:    o.DeliveryTime,
	}
}

func (s *OrderService) publish(ctx context.Context, e events.Event) {
	if s.Events == nil {
		return
	}
	if !s.Events.Enqueue(e) {
		logging.FromContext(ctx).Error("event_dropped", "type", e.Type, "key", e.Key())
	}
}

// afterCreate runs once the order is committed; nothing here can fail the order.
func (s *OrderService) afterCreate(ctx context.Context, o *models.Order, items []lineItem) {
	s.publish(ctx, events.Event{Type: events.OrderCreated, OccurredAt: s.now().UTC(), Order: orderPayload(o), Status: o.Status})

	if s.LowStockThreshold <= 0 || s.Events == nil {
		return
	}
	ids := make([]uuid.UUID, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.productID)
	}
	low, err := s.Repo.StockLevels(ctx, ids, s.LowStockThreshold)
	if err != nil {
		logging.FromContext(ctx).Error("low_stock_check_failed", "order_id", o.ID, "error", err)
		return
	}
	if len(low) == 0 {
		return
	}
	payload := make([]events.StockPayload, 0, len(low))
	for _, p := range low {
		payload = append(payload, events.StockPayload{ID: p.ID.String(), Name: p.Name, Stock: p.Stock})
	}
	s.publish(ctx, events.Event{Type: events.LowStock, OccurredAt: s.now().UTC(), Products: payload})
}

// UpdateStatus moves an order to status without transition guards and appends a history row.
func (s *OrderService) UpdateStatus(ctx context.Context, id uuid.UUID, status, note string) (*models.Order, error) {
	l := logging.FromContext(ctx).With("svc", "order.update_status", "order_id", id)

	st, err := ParseStatus(status)
	if err != nil {
		return nil, err
	}
	payment := ""
	if st == models.StatusDelivered {
		payment = models.PaymentPaid
	}

	err = s.Repo.Transaction(ctx, func(tx *repo.GormRepo) error {
		now := s.now().UTC()
		if err := tx.SetOrderStatus(ctx, id, st, payment, now); err != nil {
			return err
		}
		return tx.AppendStatusHistory(ctx, &models.OrderStatusHistory{
			OrderID:   id,
			Status:    st,
			Notes:     note,
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	order, err := s.Repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	l.Info("order_status_updated", "status", st)
	s.publish(ctx, events.Event{Type: events.OrderStatusChanged, OccurredAt: s.now().UTC(), Order: orderPayload(order), Status: st, Note: note})
	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.Repo.GetOrder(ctx, id)
}

func (s *OrderService) MyOrders(ctx context.Context, userID uuid.UUID, page, limit int) (transport.OrderList, error) {
	page, offset, limit := util.Calculate(page, limit)
	total, orders, err := s.Repo.ListOrdersByUser(ctx, userID, offset, limit)
	if err != nil {
		return transport.OrderList{}, err
	}
	return transport.OrderList{Orders: orders, Pagination: transport.NewPagination(page, limit, total)}, nil
}

func (s *OrderService) RecentOrders(ctx context.Context, limit int) ([]models.Order, error) {
	return s.Repo.RecentOrders(ctx, limit)
}

func (s *OrderService) OrdersByStatus(ctx context.Context, status string) ([]models.Order, error) {
	st, err := ParseStatus(status)
	if err != nil {
		return nil, err
	}
	return s.Repo.OrdersByStatus(ctx, st)
}
