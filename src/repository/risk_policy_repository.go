package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"papertrader/src/database"
	"papertrader/src/model"
)

// RiskPolicyRepository keeps the single current risk policy of each user.
type RiskPolicyRepository struct {
	db *gorm.DB
}

func NewRiskPolicyRepository() *RiskPolicyRepository {
	return &RiskPolicyRepository{db: database.MainDB}
}

func (r *RiskPolicyRepository) WithDB(db *gorm.DB) *RiskPolicyRepository {
	return &RiskPolicyRepository{db: db}
}

// Get returns the policy of userID, or (nil, nil) when the user never saved one.
func (r *RiskPolicyRepository) Get(ctx context.Context, userID string) (*model.RiskPolicy, error) {
	var policy model.RiskPolicy
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&policy).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, persistence("RiskPolicy.Get", err)
	}
	return &policy, nil
}

// Upsert replaces the whole row of policy.UserID.
func (r *RiskPolicyRepository) Upsert(ctx context.Context, policy *model.RiskPolicy) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"risk_profile",
				"profit_target_percentage",
				"stop_loss_percentage",
				"stop_loss_enabled",
				"automated_trading_enabled",
				"updated_at",
			}),
		}).
		Create(policy).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "RiskPolicyRepository",
			"op":      "Upsert",
			"user_id": policy.UserID,
		}).WithError(err).Error("Failed to save risk policy")
		return persistence("RiskPolicy.Upsert", err)
	}

	logger.WithFields(map[string]interface{}{
		"repo":      "RiskPolicyRepository",
		"op":        "Upsert",
		"user_id":   policy.UserID,
		"automated": policy.AutomatedTradingEnabled,
	}).Info("Risk policy saved")

	return nil
}

// ListAutomated returns the users that have automated trading switched on.
func (r *RiskPolicyRepository) ListAutomated(ctx context.Context) ([]string, error) {
	var userIDs []string
	err := r.db.WithContext(ctx).
		Model(&model.RiskPolicy{}).
		Where("automated_trading_enabled = ?", true).
		Order("user_id").
		Pluck("user_id", &userIDs).Error
	if err != nil {
		return nil, persistence("RiskPolicy.ListAutomated", err)
	}
	return userIDs, nil
}
