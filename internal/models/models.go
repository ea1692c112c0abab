package models

import (
	"time"

	"github.com/Skotchmaster/school_canteen/internal/money"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusPreparing,
		OrderStatusReady, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

const (
	PaymentMethodCard   = "card"
	PaymentMethodCrypto = "crypto"
	PaymentMethodCash   = "cash"

	PaymentStatusCompleted = "completed"
)

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string    `gorm:"uniqueIndex;not null"     json:"username"`
	PasswordHash string    `gorm:"not null"                 json:"-"`
	CreatedAt    time.Time `gorm:"not null"                 json:"created_at"`
	Profile      *Profile  `gorm:"foreignKey:UserID"        json:"profile,omitempty"`
	Role         *UserRole `gorm:"foreignKey:UserID"        json:"role,omitempty"`
}

type Profile struct {
	ID             uint         `gorm:"primaryKey"                  json:"id"`
	UserID         uint         `gorm:"uniqueIndex;not null"        json:"user_id"`
	FullName       string       `gorm:"not null;default:''"         json:"full_name"`
	ClassName      string       `gorm:"not null;default:''"         json:"class_name"`
	Age            int          `gorm:"not null;default:0"          json:"age"`
	ParentNames    string       `gorm:"not null;default:''"         json:"parent_names"`
	Balance        money.Amount `gorm:"not null;default:0;check:balance >= 0" json:"balance"`
	TelegramChatID *int64       `gorm:"uniqueIndex"                 json:"-"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

type UserRole struct {
	ID     uint   `gorm:"primaryKey"           json:"-"`
	UserID uint   `gorm:"uniqueIndex;not null" json:"-"`
	Role   string `gorm:"not null;default:user" json:"role"`
}

type MealCategory struct {
	ID        uint   `gorm:"primaryKey"          json:"id"`
	Name      string `gorm:"uniqueIndex;not null" json:"name"`
	SortOrder int    `gorm:"not null;default:0"  json:"sort_order"`
}

type Meal struct {
	ID          uint          `gorm:"primaryKey"                json:"id"`
	Name        string        `gorm:"not null"                  json:"name"`
	Description string        `gorm:"not null;default:''"       json:"description"`
	Price       money.Amount  `gorm:"not null;check:price > 0"  json:"price"`
	CategoryID  uint          `gorm:"index;not null"            json:"category_id"`
	Category    *MealCategory `gorm:"foreignKey:CategoryID"     json:"category,omitempty"`
	Available   bool          `gorm:"not null;default:true"     json:"available"`
	Calories    int           `gorm:"not null;default:0"        json:"calories"`
	Proteins    float64       `gorm:"not null;default:0"        json:"proteins"`
	Fats        float64       `gorm:"not null;default:0"        json:"fats"`
	Carbs       float64       `gorm:"not null;default:0"        json:"carbs"`
	ImageURL    string        `gorm:"not null;default:''"       json:"image_url"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

type PromoCode struct {
	ID              uint         `gorm:"primaryKey"           json:"id"`
	Code            string       `gorm:"uniqueIndex;not null" json:"code"`
	DiscountPercent int          `gorm:"not null;default:0"   json:"discount_percent"`
	DiscountAmount  money.Amount `gorm:"not null;default:0"   json:"discount_amount"`
	Active          bool         `gorm:"not null;default:true" json:"active"`
	ExpiresAt       *time.Time   `json:"expires_at,omitempty"`
	MaxUses         *int         `json:"max_uses,omitempty"`
	CurrentUses     int          `gorm:"not null;default:0"   json:"current_uses"`
	CreatedAt       time.Time    `json:"created_at"`
}

// Usable reports whether the code can still be applied at now.
func (p *PromoCode) Usable(now time.Time) bool {
	if !p.Active {
		return false
	}
	if p.ExpiresAt != nil && !p.ExpiresAt.After(now) {
		return false
	}
	if p.MaxUses != nil && p.CurrentUses >= *p.MaxUses {
		return false
	}
	return true
}

type Order struct {
	ID             uint         `gorm:"primaryKey"            json:"id"`
	UserID         uint         `gorm:"index;not null"        json:"user_id"`
	TotalAmount    money.Amount `gorm:"not null"              json:"total_amount"`
	DiscountAmount money.Amount `gorm:"not null;default:0"    json:"discount_amount"`
	FinalAmount    money.Amount `gorm:"not null;check:final_amount >= 0" json:"final_amount"`
	Status         OrderStatus  `gorm:"type:varchar(16);index;not null" json:"status"`
	PromoCodeID    *uint        `gorm:"index"                 json:"promo_code_id,omitempty"`
	Items          []OrderItem  `gorm:"foreignKey:OrderID"    json:"items,omitempty"`
	CreatedAt      time.Time    `gorm:"index"                 json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

type OrderItem struct {
	ID         uint         `gorm:"primaryKey"                 json:"id"`
	OrderID    uint         `gorm:"index;not null"             json:"order_id"`
	MealID     uint         `gorm:"index;not null"             json:"meal_id"`
	MealName   string       `gorm:"not null;default:''"        json:"meal_name"`
	Quantity   int          `gorm:"not null;check:quantity > 0" json:"quantity"`
	UnitPrice  money.Amount `gorm:"not null"                   json:"unit_price"`
	TotalPrice money.Amount `gorm:"not null"                   json:"total_price"`
}

type Payment struct {
	ID        uint         `gorm:"primaryKey"     json:"id"`
	UserID    uint         `gorm:"index;not null" json:"user_id"`
	Amount    money.Amount `gorm:"not null"       json:"amount"`
	Fee       money.Amount `gorm:"not null;default:0" json:"fee"`
	Method    string       `gorm:"not null"       json:"method"`
	Status    string       `gorm:"not null"       json:"status"`
	CreatedAt time.Time    `json:"created_at"`
}

type CartItem struct {
	ID       uint `gorm:"primaryKey"                             json:"id"`
	UserID   uint `gorm:"uniqueIndex:idx_cart_user_meal;not null" json:"user_id"`
	MealID   uint `gorm:"uniqueIndex:idx_cart_user_meal;not null" json:"meal_id"`
	Quantity int  `gorm:"not null;default:1;check:quantity > 0"  json:"quantity"`
}

type RefreshToken struct {
	ID        uint   `gorm:"primaryKey"           json:"id"`
	UserID    uint   `gorm:"index;not null"       json:"user_id"`
	Token     string `gorm:"uniqueIndex;not null" json:"-"`
	JTI       string `gorm:"uniqueIndex;not null" json:"jti"`
	ExpiresAt int64  `gorm:"not null"             json:"expires_at"`
	Revoked   bool   `gorm:"not null;default:false" json:"revoked"`
}

// All lists every table for AutoMigrate.
func All() []any {
	return []any{
		&User{}, &Profile{}, &UserRole{}, &RefreshToken{},
		&MealCategory{}, &Meal{}, &PromoCode{},
		&Order{}, &OrderItem{}, &Payment{}, &CartItem{},
	}
}
