package models

import (
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Audit log actions.
const (
	ActionUserCreated     = "User created"
	ActionUserUpdated     = "User updated"
	ActionUserDeleted     = "User deleted"
	ActionPasswordChanged = "Password changed"
	ActionResetEmailSent  = "Send email reset password"
	ActionPasswordReset   = "Password reset"
	ActionTokenRevoked    = "Token revoked"
)

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"        json:"id"`
	Username     string    `gorm:"size:80;uniqueIndex;not null"    json:"username"`
	Email        string    `gorm:"size:120;uniqueIndex;not null"   json:"email"`
	PasswordHash string    `gorm:"size:255;not null"               json:"-"`
	Role         string    `gorm:"size:20;not null;default:user"   json:"role"`
	Address      string    `gorm:"size:255"                        json:"address"`
	CreatedAt    time.Time `json:"created_at"`
}

// RevokedToken marks a token id as rejected. ExpiresAt is the token's own
// expiry and only drives housekeeping.
type RevokedToken struct {
	ID        uint      `gorm:"primaryKey"                      json:"id"`
	JTI       string    `gorm:"size:36;uniqueIndex;not null"    json:"jti"`
	UserID    uint      `gorm:"index;not null"                  json:"user_id"`
	ExpiresAt time.Time `gorm:"index;not null"                  json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

type Log struct {
	ID        uint      `gorm:"primaryKey"                      json:"id"`
	UserID    uint      `gorm:"index;not null"                  json:"user_id"`
	Action    string    `gorm:"size:50;not null"                json:"action"`
	Details   string    `gorm:"type:text"                       json:"details,omitempty"`
	Timestamp time.Time `gorm:"autoCreateTime"                  json:"timestamp"`
}

type Product struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"  json:"id"`
	Name        string    `gorm:"size:100;not null"         json:"name"`
	Description string    `gorm:"type:text"                 json:"description"`
	Price       float64   `gorm:"not null"                  json:"price"`
	ImageURL    string    `gorm:"size:255"                  json:"image_url,omitempty"`
	Stock       uint      `gorm:"not null;default:0"        json:"stock"`
	CreatedAt   time.Time `json:"created_at"`
}

type CartItem struct {
	ID        uint      `gorm:"primaryKey"                           json:"id"`
	UserID    uint      `gorm:"index:idx_cart_user_product,unique;not null" json:"user_id"`
	ProductID uint      `gorm:"index:idx_cart_user_product,unique;not null" json:"product_id"`
	Quantity  uint      `gorm:"default:1;check:quantity>0"           json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	OrderPending = "pending"
)

type Order struct {
	ID         uint        `gorm:"primaryKey"                 json:"id"`
	UserID     uint        `gorm:"index;not null"             json:"user_id"`
	TotalPrice float64     `gorm:"not null"                   json:"total_price"`
	Status     string      `gorm:"size:50;not null"           json:"status"`
	CreatedAt  time.Time   `json:"created_at"`
	Items      []OrderItem `gorm:"foreignKey:OrderID"         json:"items"`
}

type OrderItem struct {
	ID        uint    `gorm:"primaryKey"      json:"id"`
	OrderID   uint    `gorm:"index;not null"  json:"order_id"`
	ProductID uint    `gorm:"not null"        json:"product_id"`
	Quantity  uint    `gorm:"not null"        json:"quantity"`
	Price     float64 `gorm:"not null"        json:"price"`
}
