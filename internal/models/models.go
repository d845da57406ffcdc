package models

import (
	"time"
)

const (
	// Spelling is kept as the production data has it.
	OrderStatusFulfiled   = "Fulfiled"
	OrderStatusUnfulfiled = "Unfulfiled"
)

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string    `gorm:"unique;not null"          json:"email"`
	PasswordHash string    `gorm:"not null"                 json:"-"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	IsAdmin      bool      `gorm:"default:false"            json:"-"`
	IsStaff      bool      `gorm:"default:false"            json:"-"`
	GroupID      *uint     `gorm:"index"                    json:"-"`
	Group        *Group    `json:"-"`
	CreateTime   time.Time `gorm:"autoCreateTime"           json:"-"`
}

// Access summarizes the panel rights of a staff member or admin. It is
// computed at login time, never stored.
type Access struct {
	Group   *Group `json:"group"`
	IsAdmin bool   `json:"is_admin"`
	IsStaff bool   `json:"is_staff"`
}

// AccessSummary returns nil for ordinary customers.
func (u *User) AccessSummary() *Access {
	if !u.IsAdmin && !u.IsStaff {
		return nil
	}
	return &Access{
		Group:   u.Group,
		IsAdmin: u.IsAdmin,
		IsStaff: u.IsStaff,
	}
}

type Permission struct {
	ID       uint   `gorm:"primaryKey;autoIncrement" json:"-"`
	Name     string `gorm:"not null"                 json:"name"`
	CodeName string `gorm:"uniqueIndex;not null"     json:"code_name"`
}

type Group struct {
	ID          uint         `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string       `gorm:"unique;not null"          json:"name"`
	Permissions []Permission `gorm:"many2many:group_permissions" json:"permissions"`
}

type Order struct {
	ID         uint        `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     uint        `gorm:"index;not null"           json:"user_id"`
	Status     string      `gorm:"not null"                 json:"status"`
	CreateTime time.Time   `gorm:"index;autoCreateTime"     json:"create_time"`
	Lines      []OrderLine `gorm:"constraint:OnDelete:CASCADE" json:"lines"`
}

type OrderLine struct {
	ID        uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID   uint    `gorm:"index;not null"           json:"order_id"`
	ProductID uint    `gorm:"not null"                 json:"product_id"`
	Quantity  uint    `gorm:"default:1;check:quantity>0" json:"quantity"`
	UnitPrice float64 `gorm:"not null"                 json:"unit_price"`
}

type Product struct {
	ID          uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string  `gorm:"not null"                 json:"name"`
	Description string  `gorm:"not null"                 json:"description"`
	Price       float64 `gorm:"not null"                 json:"price"`
	Count       uint    `json:"count"`
	ImagePath   string  `json:"image_path,omitempty"`
}

// RevokedToken is append-only: a row for a given jti invalidates every
// token carrying that jti, regardless of its signature expiry.
type RevokedToken struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	JTI       string    `gorm:"uniqueIndex;not null"     json:"jti"`
	RevokedAt time.Time `gorm:"autoCreateTime"           json:"revoked_at"`
}
