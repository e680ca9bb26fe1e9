package transport

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/souq/services/storefront/internal/models"
)

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
}

func NewPagination(page, limit int, total int64) Pagination {
	pages := int64(0)
	if limit > 0 {
		pages = (total + int64(limit) - 1) / int64(limit)
	}
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: pages}
}

// catalog

type ProductFilters struct {
	Page       int
	Limit      int
	CategoryID *uuid.UUID
	Featured   *bool
	SortBy     string
	Order      string
	Search     string
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
}

type ProductList struct {
	Products   []models.Product `json:"products"`
	Pagination Pagination       `json:"pagination"`
}

type CreateProductRequest struct {
	Name            string           `json:"name"`
	NameAr          string           `json:"nameAr"`
	Slug            string           `json:"slug"`
	Description     string           `json:"description"`
	Price           decimal.Decimal  `json:"price"`
	OldPrice        *decimal.Decimal `json:"oldPrice"`
	Stock           int              `json:"stock"`
	Images          []string         `json:"images"`
	CategoryID      string           `json:"categoryId"`
	IsFeatured      bool             `json:"isFeatured"`
	PreparationTime *int             `json:"preparationTime"`
	ShelfLife       *int             `json:"shelfLife"`
}

// PatchProductRequest lists every field an admin may change; nil means untouched.
type PatchProductRequest struct {
	Name            *string          `json:"name"`
	NameAr          *string          `json:"nameAr"`
	Description     *string          `json:"description"`
	Price           *decimal.Decimal `json:"price"`
	OldPrice        *decimal.Decimal `json:"oldPrice"`
	Stock           *int             `json:"stock"`
	Images          []string         `json:"images"`
	IsFeatured      *bool            `json:"isFeatured"`
	IsActive        *bool            `json:"isActive"`
	PreparationTime *int             `json:"preparationTime"`
	ShelfLife       *int             `json:"shelfLife"`
}

type CreateReviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// delivery

type CheckDeliveryRequest struct {
	City string `json:"city"`
}

type ZoneInfo struct {
	Name          string              `json:"name"`
	Price         decimal.Decimal     `json:"price"`
	MinOrder      decimal.NullDecimal `json:"minOrder"`
	EstimatedTime string              `json:"estimatedTime"`
}

type CheckDeliveryResponse struct {
	Available bool      `json:"available"`
	Zone      *ZoneInfo `json:"zone,omitempty"`
	Message   string    `json:"message,omitempty"`
}

type CalculateDeliveryRequest struct {
	City        string           `json:"city"`
	OrderAmount *decimal.Decimal `json:"orderAmount"`
}

type CalculateDeliveryResponse struct {
	DeliveryFee   decimal.Decimal `json:"deliveryFee"`
	EstimatedTime string          `json:"estimatedTime"`
	FreeDelivery  bool            `json:"freeDelivery"`
}

type CityETA struct {
	Name          string `json:"name"`
	EstimatedTime string `json:"estimatedTime"`
}

type ZoneCities struct {
	ID       uuid.UUID           `json:"id"`
	Name     string              `json:"name"`
	Price    decimal.Decimal     `json:"price"`
	MinOrder decimal.NullDecimal `json:"minOrder"`
	Cities   []CityETA           `json:"cities"`
}

// orders

type OrderItemRequest struct {
	ProductID string           `json:"productId"`
	Quantity  int              `json:"quantity"`
	Price     *decimal.Decimal `json:"price"`
}

type CreateOrderRequest struct {
	CustomerName    string             `json:"customerName"`
	CustomerPhone   string             `json:"customerPhone"`
	CustomerEmail   string             `json:"customerEmail"`
	DeliveryAddress string             `json:"deliveryAddress"`
	City            string             `json:"city"`
	Notes           string             `json:"notes"`
	DeliveryDate    string             `json:"deliveryDate"`
	DeliveryTime    string             `json:"deliveryTime"`
	Items           []OrderItemRequest `json:"items"`
}

type CreateOrderResponse struct {
	ID          uuid.UUID       `json:"id"`
	OrderNumber string          `json:"orderNumber"`
	Total       decimal.Decimal `json:"total"`
	Status      string          `json:"status"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

type OrderSummary struct {
	ID            uuid.UUID       `json:"id"`
	OrderNumber   string          `json:"orderNumber"`
	Status        string          `json:"status"`
	PaymentStatus string          `json:"paymentStatus"`
	Total         decimal.Decimal `json:"total"`
}

type OrderList struct {
	Orders     []models.Order `json:"orders"`
	Pagination Pagination     `json:"pagination"`
}

type DashboardStats struct {
	TodayOrders   int64           `json:"todayOrders"`
	TodayRevenue  decimal.Decimal `json:"todayRevenue"`
	WeekOrders    int64           `json:"weekOrders"`
	MonthRevenue  decimal.Decimal `json:"monthRevenue"`
	PendingOrders int64           `json:"pendingOrders"`
	TotalOrders   int64           `json:"totalOrders"`
}

// auth

type LoginRequest struct {
	Phone string `json:"phone"`
	Name  string `json:"name"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type UserDTO struct {
	ID      uuid.UUID `json:"id"`
	Phone   string    `json:"phone"`
	Name    string    `json:"name"`
	Email   *string   `json:"email"`
	Address string    `json:"address,omitempty"`
	City    string    `json:"city,omitempty"`
}

func NewUserDTO(u *models.User) UserDTO {
	return UserDTO{ID: u.ID, Phone: u.Phone, Name: u.Name, Email: u.Email, Address: u.Address, City: u.City}
}

type LoginResponse struct {
	Message string    `json:"message"`
	User    UserDTO   `json:"user"`
	Tokens  TokenPair `json:"tokens"`
}

// UpdateProfileRequest is the allow-list of self-editable profile fields.
type UpdateProfileRequest struct {
	Name    *string `json:"name"`
	Email   *string `json:"email"`
	Address *string `json:"address"`
	City    *string `json:"city"`
}
