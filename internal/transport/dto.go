// Package transport holds the JSON request and response bodies of the HTTP API.
package transport

import (
	"time"

	"github.com/Skotchmaster/school_canteen/internal/money"
)

type RegisterRequest struct {
	Username    string `json:"username"     validate:"required,min=3,max=32"`
	Password    string `json:"password"     validate:"required,min=6,max=72"`
	FullName    string `json:"full_name"    validate:"max=128"`
	ClassName   string `json:"class_name"   validate:"max=16"`
	Age         int    `json:"age"          validate:"gte=0,lte=120"`
	ParentNames string `json:"parent_names" validate:"max=256"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest may be empty when the refresh token travels in a cookie.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type ProfilePatch struct {
	FullName    *string `json:"full_name"    validate:"omitempty,max=128"`
	ClassName   *string `json:"class_name"   validate:"omitempty,max=16"`
	Age         *int    `json:"age"          validate:"omitempty,gte=0,lte=120"`
	ParentNames *string `json:"parent_names" validate:"omitempty,max=256"`
}

type CartAddRequest struct {
	MealID   uint `json:"meal_id"  validate:"required"`
	Quantity int  `json:"quantity" validate:"omitempty,gte=1,lte=20"`
}

type CartRemoveResponse struct {
	MealID   uint `json:"meal_id"`
	Deleted  bool `json:"deleted"`
	Quantity int  `json:"quantity"`
}

type CheckoutRequest struct {
	PromoCode string `json:"promo_code" validate:"max=32"`
}

type OrderLine struct {
	MealID   uint `json:"meal_id"  validate:"required"`
	Quantity int  `json:"quantity" validate:"required,gte=1,lte=20"`
}

// PlaceOrderRequest carries the client-side cart.
type PlaceOrderRequest struct {
	Items     []OrderLine `json:"items"      validate:"dive"`
	PromoCode string      `json:"promo_code" validate:"max=32"`
}

type PromoValidateRequest struct {
	Code  string       `json:"code"  validate:"required,max=32"`
	Total money.Amount `json:"total" validate:"gte=0"`
}

type PromoValidateResponse struct {
	Code            string       `json:"code"`
	Kind            string       `json:"kind"`
	DiscountPercent int          `json:"discount_percent,omitempty"`
	DiscountAmount  money.Amount `json:"discount_amount,omitempty"`
	Discount        money.Amount `json:"discount"`
	Final           money.Amount `json:"final"`
}

type TopUpRequest struct {
	Amount money.Amount `json:"amount" validate:"gt=0"`
	Method string       `json:"method" validate:"required,oneof=card crypto cash"`
}

type TopUpResponse struct {
	Credited money.Amount `json:"credited"`
	Fee      money.Amount `json:"fee"`
	Balance  money.Amount `json:"balance"`
}

type BalanceResponse struct {
	Balance money.Amount `json:"balance"`
}

type StatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type MealRequest struct {
	Name        string       `json:"name"        validate:"required,max=128"`
	Description string       `json:"description" validate:"max=1024"`
	Price       money.Amount `json:"price"       validate:"gt=0"`
	CategoryID  uint         `json:"category_id" validate:"required"`
	Available   *bool        `json:"available"`
	Calories    int          `json:"calories"    validate:"gte=0"`
	Proteins    float64      `json:"proteins"    validate:"gte=0"`
	Fats        float64      `json:"fats"        validate:"gte=0"`
	Carbs       float64      `json:"carbs"       validate:"gte=0"`
	ImageURL    string       `json:"image_url"   validate:"omitempty,url"`
}

type AvailabilityRequest struct {
	Available bool `json:"available"`
}

type CategoryRequest struct {
	Name      string `json:"name"       validate:"required,max=64"`
	SortOrder int    `json:"sort_order"`
}

type PromoRequest struct {
	Code            string       `json:"code"             validate:"required,max=32"`
	DiscountPercent int          `json:"discount_percent" validate:"gte=0,lte=100"`
	DiscountAmount  money.Amount `json:"discount_amount"  validate:"gte=0"`
	Active          *bool        `json:"active"`
	ExpiresAt       *time.Time   `json:"expires_at"`
	MaxUses         *int         `json:"max_uses"         validate:"omitempty,gte=1"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
