package migrations

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Tables of the dashboard this service replaces. They only exist on
// databases shared with it.
const (
	legacyTradesTable   = "automated_trades"
	legacySettingsTable = "user_trading_settings"
)

func importLegacyTrades(db *gorm.DB) error {
	if !db.Migrator().HasTable(legacyTradesTable) {
		return nil
	}

	res := db.Exec(`
INSERT INTO trade_records
  (id, user_id, symbol, side, order_kind, quantity, entry_price, current_price,
   profit_loss_percentage, status, broker_order_id, origin, created_at, updated_at)
SELECT CAST(a.id AS TEXT), CAST(a.user_id AS TEXT), UPPER(a.symbol), a.order_type, 'market', a.quantity,
       a.entry_price, a.current_price, a.profit_loss_percentage, CAST(a.status AS TEXT),
       a.alpaca_order_id, 'manual', a.created_at, a.updated_at
FROM automated_trades a
WHERE NOT EXISTS (SELECT 1 FROM trade_records t WHERE t.id = CAST(a.id AS TEXT))`)
	if res.Error != nil {
		return fmt.Errorf("import %s: %w", legacyTradesTable, res.Error)
	}

	logrus.WithField("rows", res.RowsAffected).Info("[migrations] imported legacy trades")
	return nil
}

func importLegacySettings(db *gorm.DB) error {
	if !db.Migrator().HasTable(legacySettingsTable) {
		return nil
	}

	res := db.Exec(`
INSERT INTO risk_policies
  (user_id, risk_profile, profit_target_percentage, stop_loss_percentage,
   stop_loss_enabled, automated_trading_enabled, created_at, updated_at)
SELECT CAST(s.user_id AS TEXT), CAST(s.risk_profile AS TEXT), s.profit_target_percentage,
       COALESCE(s.stop_loss_percentage, 2), s.stop_loss_enabled, s.automated_trading_enabled,
       s.created_at, s.updated_at
FROM user_trading_settings s
WHERE NOT EXISTS (SELECT 1 FROM risk_policies p WHERE p.user_id = CAST(s.user_id AS TEXT))`)
	if res.Error != nil {
		return fmt.Errorf("import %s: %w", legacySettingsTable, res.Error)
	}

	logrus.WithField("rows", res.RowsAffected).Info("[migrations] imported legacy trading settings")
	return nil
}
