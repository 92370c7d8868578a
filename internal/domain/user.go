package domain

import (
	"time"

	"promptmarket/internal/pkg/money"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a marketplace account. Sellers keep buyer capabilities; the sales and
// earnings counters are denormalized and only ever changed by relative updates.
type User struct {
	ID              uuid.UUID   `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name            string      `gorm:"column:name;not null" json:"name"`
	Email           string      `gorm:"column:email;not null;uniqueIndex" json:"email"`
	PasswordHash    string      `gorm:"column:password_hash;not null" json:"-"`
	Role            string      `gorm:"column:role;type:varchar(20);not null;default:buyer" json:"role"`
	StripeAccountID *string     `gorm:"column:stripe_account_id" json:"-"`
	TotalSales      int         `gorm:"column:total_sales;not null;default:0" json:"total_sales"`
	TotalEarnings   money.Cents `gorm:"column:total_earnings;not null;default:0" json:"total_earnings"`
	BannedAt        *time.Time  `gorm:"column:banned_at" json:"banned_at,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

func (User) TableName() string {
	return "Users"
}

// BeforeCreate: never insert zero UUID for primary key.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

func (u *User) IsBanned() bool {
	return u.BannedAt != nil
}
