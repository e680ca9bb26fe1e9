package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Category struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"      json:"id"`
	Name        string    `gorm:"not null"                  json:"name"`
	NameAr      string    `gorm:"not null"                  json:"nameAr"`
	Slug        string    `gorm:"uniqueIndex;not null"      json:"slug"`
	Description string    `                                 json:"description,omitempty"`
	Icon        string    `                                 json:"icon,omitempty"`
	SortOrder   int       `gorm:"not null;default:0"        json:"sortOrder"`
	CreatedAt   time.Time `                                 json:"createdAt"`
	UpdatedAt   time.Time `                                 json:"updatedAt"`
}

func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

type Product struct {
	ID              uuid.UUID           `gorm:"type:uuid;primaryKey"               json:"id"`
	Name            string              `gorm:"not null"                           json:"name"`
	NameAr          string              `gorm:"not null"                           json:"nameAr"`
	Slug            string              `gorm:"uniqueIndex;not null"               json:"slug"`
	Description     string              `                                          json:"description,omitempty"`
	Price           decimal.Decimal     `gorm:"type:decimal(12,2);not null"        json:"price"`
	OldPrice        decimal.NullDecimal `gorm:"type:decimal(12,2)"                 json:"oldPrice"`
	Stock           int                 `gorm:"not null;check:stock >= 0"          json:"stock"`
	Images          []string            `gorm:"serializer:json;type:text"          json:"images"`
	IsActive        bool                `gorm:"not null;index"                     json:"isActive"`
	IsFeatured      bool                `gorm:"not null;index"                     json:"isFeatured"`
	PreparationTime *int                `                                          json:"preparationTime,omitempty"`
	ShelfLife       *int                `                                          json:"shelfLife,omitempty"`
	CategoryID      uuid.UUID           `gorm:"type:uuid;index;not null"           json:"categoryId"`
	Category        *Category           `gorm:"foreignKey:CategoryID"              json:"category,omitempty"`
	Reviews         []Review            `gorm:"foreignKey:ProductID"               json:"reviews,omitempty"`
	CreatedAt       time.Time           `gorm:"index"                              json:"createdAt"`
	UpdatedAt       time.Time           `                                          json:"updatedAt"`

	// derived per query from active reviews
	Rating      float64 `gorm:"->;-:migration" json:"rating"`
	ReviewCount int64   `gorm:"->;-:migration" json:"reviewCount"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

type Review struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey"                     json:"id"`
	ProductID uuid.UUID  `gorm:"type:uuid;index;not null"                 json:"productId"`
	UserID    *uuid.UUID `gorm:"type:uuid;index"                          json:"userId,omitempty"`
	User      *User      `gorm:"foreignKey:UserID"                        json:"user,omitempty"`
	Rating    int        `gorm:"not null;check:rating BETWEEN 1 AND 5"    json:"rating"`
	Comment   string     `                                                json:"comment,omitempty"`
	IsActive  bool       `gorm:"not null;index"                           json:"-"`
	CreatedAt time.Time  `                                                json:"createdAt"`
}

func (r *Review) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

type DeliveryZone struct {
	ID        uuid.UUID           `gorm:"type:uuid;primaryKey"           json:"id"`
	Name      string              `gorm:"uniqueIndex;not null"           json:"name"`
	Cities    []string            `gorm:"serializer:json;type:text"      json:"cities"`
	Price     decimal.Decimal     `gorm:"type:decimal(12,2);not null"    json:"price"`
	MinOrder  decimal.NullDecimal `gorm:"type:decimal(12,2)"             json:"minOrder"`
	IsActive  bool                `gorm:"not null;index"                 json:"isActive"`
	CreatedAt time.Time           `                                      json:"createdAt"`
	UpdatedAt time.Time           `                                      json:"updatedAt"`
}

func (z *DeliveryZone) BeforeCreate(tx *gorm.DB) error {
	if z.ID == uuid.Nil {
		z.ID = uuid.New()
	}
	return nil
}

const (
	StatusPending    = "pending"
	StatusConfirmed  = "confirmed"
	StatusPreparing  = "preparing"
	StatusReady      = "ready"
	StatusDelivering = "delivering"
	StatusDelivered  = "delivered"
	StatusCancelled  = "cancelled"

	PaymentPending = "pending"
	PaymentPaid    = "paid"
)

var OrderStatuses = []string{
	StatusPending, StatusConfirmed, StatusPreparing, StatusReady,
	StatusDelivering, StatusDelivered, StatusCancelled,
}

type Order struct {
	ID              uuid.UUID            `gorm:"type:uuid;primaryKey"               json:"id"`
	OrderNumber     string               `gorm:"uniqueIndex;not null"               json:"orderNumber"`
	UserID          *uuid.UUID           `gorm:"type:uuid;index"                    json:"userId,omitempty"`
	User            *User                `gorm:"foreignKey:UserID"                  json:"user,omitempty"`
	CustomerName    string               `gorm:"not null"                           json:"customerName"`
	CustomerPhone   string               `gorm:"not null"                           json:"customerPhone"`
	CustomerEmail   string               `                                          json:"customerEmail,omitempty"`
	DeliveryAddress string               `gorm:"not null"                           json:"deliveryAddress"`
	City            string               `gorm:"not null"                           json:"city"`
	Notes           string               `                                          json:"notes,omitempty"`
	Subtotal        decimal.Decimal      `gorm:"type:decimal(12,2);not null"        json:"subtotal"`
	DeliveryFee     decimal.Decimal      `gorm:"type:decimal(12,2);not null"        json:"deliveryFee"`
	Total           decimal.Decimal      `gorm:"type:decimal(12,2);not null"        json:"total"`
	Status          string               `gorm:"not null;index"                     json:"status"`
	PaymentStatus   string               `gorm:"not null"                           json:"paymentStatus"`
	DeliveryDate    *time.Time           `                                          json:"deliveryDate,omitempty"`
	DeliveryTime    string               `                                          json:"deliveryTime,omitempty"`
	Items           []OrderItem          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	StatusHistory   []OrderStatusHistory `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"statusHistory,omitempty"`
	CreatedAt       time.Time            `gorm:"index"                              json:"createdAt"`
	UpdatedAt       time.Time            `                                          json:"updatedAt"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// OrderSequence holds the last order number handed out for one day prefix (CMDyymmdd).
type OrderSequence struct {
	Prefix  string `gorm:"primaryKey;size:16"`
	LastSeq int64  `gorm:"not null"`
}

type OrderItem struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"           json:"id"`
	OrderID   uuid.UUID       `gorm:"type:uuid;index;not null"       json:"orderId"`
	ProductID uuid.UUID       `gorm:"type:uuid;index;not null"       json:"productId"`
	Product   *Product        `gorm:"foreignKey:ProductID"           json:"product,omitempty"`
	Quantity  int             `gorm:"not null;check:quantity > 0"    json:"quantity"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2);not null"    json:"price"`
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// OrderStatusHistory rows are append-only.
type OrderStatusHistory struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"        json:"id"`
	OrderID   uuid.UUID `gorm:"type:uuid;index;not null"    json:"orderId"`
	Status    string    `gorm:"not null"                    json:"status"`
	Notes     string    `                                   json:"notes,omitempty"`
	CreatedAt time.Time `gorm:"index"                       json:"createdAt"`
}

func (h *OrderStatusHistory) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}

func (OrderStatusHistory) TableName() string {
	return "order_status_history"
}

type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"   json:"id"`
	Phone     string    `gorm:"uniqueIndex;not null"   json:"phone"`
	Name      string    `                              json:"name"`
	Email     *string   `gorm:"uniqueIndex"            json:"email"`
	Address   string    `                              json:"address,omitempty"`
	City      string    `                              json:"city,omitempty"`
	CreatedAt time.Time `                              json:"createdAt"`
	UpdatedAt time.Time `                              json:"updatedAt"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

type RefreshToken struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"        json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;index;not null"    json:"userId"`
	TokenHash string    `gorm:"uniqueIndex;not null"        json:"-"`
	JTI       string    `gorm:"uniqueIndex;not null"        json:"jti"`
	ExpiresAt time.Time `gorm:"not null"                    json:"expiresAt"`
	Revoked   bool      `gorm:"not null"                    json:"revoked"`
	CreatedAt time.Time `                                   json:"createdAt"`
}

func (t *RefreshToken) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// All lists every table in migration order.
func All() []any {
	return []any{
		&Category{}, &Product{}, &User{}, &Review{}, &DeliveryZone{},
		&OrderSequence{}, &Order{}, &OrderItem{}, &OrderStatusHistory{}, &RefreshToken{},
	}
}
