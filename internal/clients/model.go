package clients

import (
	"strings"
	"time"
)

type Client struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	Name      string    `bson:"name" json:"name"`
	Email     string    `bson:"email" json:"email"`
	Phone     string    `bson:"phone,omitempty" json:"phone,omitempty"`
	Company   string    `bson:"company,omitempty" json:"company,omitempty"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

type SaveRequest struct {
	Name    string `json:"name" validate:"required,max=120"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"omitempty,phone"`
	Company string `json:"company" validate:"omitempty,max=120"`
}

type UpdateRequest struct {
	Email   string  `json:"email" validate:"required,email"`
	Name    *string `json:"name" validate:"omitempty,min=1,max=120"`
	Phone   *string `json:"phone" validate:"omitempty,phone"`
	Company *string `json:"company" validate:"omitempty,max=120"`
}

// Patch holds the fields an update changes; nil means unchanged.
type Patch struct {
	Name    *string
	Phone   *string
	Company *string
}

// NormalizeEmail returns the natural key form of an email.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
