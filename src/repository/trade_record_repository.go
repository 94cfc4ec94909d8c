package repository

import (
	"context"
	"errors"
	"strings"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"papertrader/src/database"
	"papertrader/src/model"
)

const (
	defaultRecentLimit = 10
	maxRecentLimit     = 100
)

// TradeRecordRepository is the append-only trade ledger. It has no delete.
type TradeRecordRepository struct {
	db *gorm.DB
}

// NewTradeRecordRepository creates a repository on the main database.
func NewTradeRecordRepository() *TradeRecordRepository {
	return &TradeRecordRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *TradeRecordRepository) WithDB(db *gorm.DB) *TradeRecordRepository {
	return &TradeRecordRepository{db: db}
}

// TradeFilter selects ledger rows. Empty fields are ignored.
type TradeFilter struct {
	UserID        string
	Symbol        string
	Side          string
	Status        string
	BrokerOrderID string
	Origin        string
	ExcludeOrigin string
}

// TradePatch lists the mutable columns of a ledger row. Nil fields are left untouched.
type TradePatch struct {
	Status        *string
	EntryPrice    *float64
	CurrentPrice  *float64
	ProfitLossPct *float64
}

func (p TradePatch) columns() map[string]interface{} {
	cols := map[string]interface{}{}
	if p.Status != nil {
		cols["status"] = *p.Status
	}
	if p.EntryPrice != nil {
		cols["entry_price"] = *p.EntryPrice
	}
	if p.CurrentPrice != nil {
		cols["current_price"] = *p.CurrentPrice
	}
	if p.ProfitLossPct != nil {
		cols["profit_loss_percentage"] = *p.ProfitLossPct
	}
	return cols
}

func applyFilter(q *gorm.DB, f TradeFilter) *gorm.DB {
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Symbol != "" {
		q = q.Where("symbol = ?", strings.ToUpper(f.Symbol))
	}
	if f.Side != "" {
		q = q.Where("side = ?", f.Side)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.BrokerOrderID != "" {
		q = q.Where("broker_order_id = ?", f.BrokerOrderID)
	}
	if f.Origin != "" {
		q = q.Where("origin = ?", f.Origin)
	}
	if f.ExcludeOrigin != "" {
		q = q.Where("origin <> ?", f.ExcludeOrigin)
	}
	return q
}

// Insert appends a new record. Records start as pending, or as failed when
// they only document a rejected submission.
func (r *TradeRecordRepository) Insert(ctx context.Context, rec *model.TradeRecord) error {
	if rec.Status == "" {
		rec.Status = model.TradeStatusPending
	}
	if rec.Origin == "" {
		rec.Origin = model.TradeOriginManual
	}
	if rec.OrderKind == "" {
		rec.OrderKind = model.OrderKindMarket
	}
	if rec.Status != model.TradeStatusPending && rec.Status != model.TradeStatusFailed {
		return persistence("Insert", errors.New("new trade records must be pending or failed"))
	}

	logger.WithFields(map[string]interface{}{
		"repo":    "TradeRecordRepository",
		"op":      "Insert",
		"user_id": rec.UserID,
		"symbol":  rec.Symbol,
		"side":    rec.Side,
		"qty":     rec.Quantity,
		"status":  rec.Status,
	}).Debug("Inserting trade record")

	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "TradeRecordRepository",
			"op":   "Insert",
		}).WithError(err).Error("Failed to insert trade record")
		return persistence("Insert", err)
	}

	logger.WithFields(map[string]interface{}{
		"repo":     "TradeRecordRepository",
		"op":       "Insert",
		"trade_id": rec.ID,
	}).Info("Trade record inserted")

	return nil
}

// UpdateWhere applies patch to every row matching filter and returns the
// number of rows changed. A status in the patch only lands on rows allowed
// to move to it (pending, or already in that status). Without a status, only
// pending and filled rows take price refreshes.
func (r *TradeRecordRepository) UpdateWhere(ctx context.Context, filter TradeFilter, patch TradePatch) (int64, error) {
	if filter.UserID == "" && filter.BrokerOrderID == "" {
		return 0, persistence("UpdateWhere", ErrUnscopedUpdate)
	}

	cols := patch.columns()
	if len(cols) == 0 {
		return 0, nil
	}

	q := applyFilter(r.db.WithContext(ctx).Model(&model.TradeRecord{}), filter)

	switch {
	case patch.Status == nil:
		q = q.Where("status IN ?", []string{model.TradeStatusPending, model.TradeStatusFilled})
	case *patch.Status == model.TradeStatusPending:
		q = q.Where("status = ?", model.TradeStatusPending)
	default:
		q = q.Where("status IN ?", []string{model.TradeStatusPending, *patch.Status})
	}

	res := q.Updates(cols)
	if res.Error != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "TradeRecordRepository",
			"op":      "UpdateWhere",
			"user_id": filter.UserID,
			"symbol":  filter.Symbol,
		}).WithError(res.Error).Error("Failed to update trade records")
		return 0, persistence("UpdateWhere", res.Error)
	}

	logger.WithFields(map[string]interface{}{
		"repo":     "TradeRecordRepository",
		"op":       "UpdateWhere",
		"user_id":  filter.UserID,
		"symbol":   filter.Symbol,
		"affected": res.RowsAffected,
	}).Debug("Trade records updated")

	return res.RowsAffected, nil
}

// ListRecent returns the newest records of a user.
func (r *TradeRecordRepository) ListRecent(ctx context.Context, userID string, limit int) ([]model.TradeRecord, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	var records []model.TradeRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, persistence("ListRecent", err)
	}
	return records, nil
}

// Find returns the records matching filter, oldest first.
func (r *TradeRecordRepository) Find(ctx context.Context, filter TradeFilter) ([]model.TradeRecord, error) {
	var records []model.TradeRecord
	err := applyFilter(r.db.WithContext(ctx), filter).
		Order("created_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, persistence("Find", err)
	}
	return records, nil
}

// HasPendingExit reports whether an automated exit for symbol is still in flight.
func (r *TradeRecordRepository) HasPendingExit(ctx context.Context, userID, symbol string) (bool, error) {
	var count int64
	err := applyFilter(r.db.WithContext(ctx).Model(&model.TradeRecord{}), TradeFilter{
		UserID: userID,
		Symbol: symbol,
		Side:   model.SideSell,
		Status: model.TradeStatusPending,
		Origin: model.TradeOriginAutoExit,
	}).Count(&count).Error
	if err != nil {
		return false, persistence("HasPendingExit", err)
	}
	return count > 0, nil
}

// ListPending returns the pending records of a user, optionally narrowed to one side.
func (r *TradeRecordRepository) ListPending(ctx context.Context, userID, side string) ([]model.TradeRecord, error) {
	return r.Find(ctx, TradeFilter{UserID: userID, Side: side, Status: model.TradeStatusPending})
}
