package model

import "time"

// Exception is a persisted system-level failure, kept for auditing the
// unattended reconciliation paths.
type Exception struct {
	ID uint `gorm:"primaryKey" json:"id"`

	Service string `gorm:"size:100;index" json:"service"` // e.g. "reconciler"
	Module  string `gorm:"size:100;index" json:"module"`  // e.g. "exit_evaluator"
	Method  string `gorm:"size:100" json:"method"`        // e.g. "PlaceOrder"

	UserID string `gorm:"size:64;index" json:"user_id,omitempty"`
	Symbol string `gorm:"size:20" json:"symbol,omitempty"`

	Message string `gorm:"type:text" json:"message"`
	Stack   string `gorm:"type:text" json:"stack"`

	Level string `gorm:"size:20;index" json:"level"` // debug | info | warn | error | fatal

	// Extra context stored as JSON (optional)
	Context string `gorm:"type:text" json:"context,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
