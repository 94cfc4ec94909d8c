package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"papertrader/src/database"
	"papertrader/src/model"
)

// BrokerAccountRepository stores per-user brokerage credentials (sealed).
type BrokerAccountRepository struct {
	db *gorm.DB
}

func NewBrokerAccountRepository() *BrokerAccountRepository {
	return &BrokerAccountRepository{db: database.MainDB}
}

func (r *BrokerAccountRepository) WithDB(db *gorm.DB) *BrokerAccountRepository {
	return &BrokerAccountRepository{db: db}
}

// GetByUser returns the enabled account linked to userID, or (nil, nil).
func (r *BrokerAccountRepository) GetByUser(ctx context.Context, userID string) (*model.BrokerAccount, error) {
	var acc model.BrokerAccount
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND enabled = ?", userID, true).
		Take(&acc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, persistence("BrokerAccount.GetByUser", err)
	}
	return &acc, nil
}

// Link creates or replaces the account of acc.UserID.
func (r *BrokerAccountRepository) Link(ctx context.Context, acc *model.BrokerAccount) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"api_key", "api_secret", "base_url", "enabled", "updated_at"}),
		}).
		Create(acc).Error
	return persistence("BrokerAccount.Link", err)
}
