// Package events defines the order event envelope exchanged between the storefront and the notifier.
package events

import (
	"time"

	"github.com/shopspring/decimal"
)

const TopicOrderEvents = "order_events"

type Type string

const (
	OrderCreated       Type = "order_created"
	OrderStatusChanged Type = "order_status_changed"
	LowStock           Type = "low_stock"
)

type Event struct {
	Type       Type           `json:"type"`
	OccurredAt time.Time      `json:"occurredAt"`
	Order      *OrderPayload  `json:"order,omitempty"`
	Status     string         `json:"status,omitempty"`
	Note       string         `json:"note,omitempty"`
	Products   []StockPayload `json:"products,omitempty"`
}

type OrderPayload struct {
	ID              string          `json:"id"`
	OrderNumber     string          `json:"orderNumber"`
	CustomerName    string          `json:"customerName"`
	CustomerPhone   string          `json:"customerPhone"`
	DeliveryAddress string          `json:"deliveryAddress"`
	City            string          `json:"city"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	DeliveryFee     decimal.Decimal `json:"deliveryFee"`
	Total           decimal.Decimal `json:"total"`
	Status          string          `json:"status"`
	DeliveryDate    *time.Time      `json:"deliveryDate,omitempty"`
	DeliveryTime    string          `json:"deliveryTime,omitempty"`
}

type StockPayload struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Stock int    `json:"stock"`
}

// Key is the partition key: the order id for order events, the event type otherwise.
func (e Event) Key() string {
	if e.Order != nil {
		return e.Order.ID
	}
	return string(e.Type)
}
