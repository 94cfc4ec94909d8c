package model

import "time"

// BrokerAccount links a user to their own brokerage credentials. Users
// without a row trade against the deployment's shared paper account.
type BrokerAccount struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        string    `gorm:"size:64;not null;uniqueIndex" json:"user_id"`
	APIKeyHash    string    `gorm:"column:api_key;type:text;not null" json:"-"`
	APISecretHash string    `gorm:"column:api_secret;type:text;not null" json:"-"`
	BaseURL       string    `gorm:"size:255" json:"base_url"`
	Enabled       bool      `gorm:"not null" json:"enabled"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (BrokerAccount) TableName() string {
	return "broker_accounts"
}
