package inventory

import (
	"time"

	"github.com/google/uuid"
)

// MedicationCategory groups medications for browsing (antibiotiques,
// antalgiques, ...).
type MedicationCategory struct {
	ID   uuid.UUID `db:"id" json:"id"`
	Name string    `db:"name" json:"nom"`
}

// Medication is a pharmacy stock item.
type Medication struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	CategoryID    *uuid.UUID `db:"category_id" json:"categorie_id,omitempty"`
	Name          string     `db:"name" json:"nom"`
	Description   *string    `db:"description" json:"description,omitempty"`
	Price         float64    `db:"price" json:"prix"`
	StockQuantity int        `db:"stock_quantity" json:"quantite_stock"`
	MinStockLevel int        `db:"min_stock_level" json:"seuil_alerte"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// NeedsRestock reports whether the stock has fallen to or below the
// alert threshold.
func (m *Medication) NeedsRestock() bool {
	return m.StockQuantity <= m.MinStockLevel
}

// Stock movement kinds.
const (
	MovementIn     = "in"
	MovementOut    = "out"
	MovementAdjust = "adjust"
)

// StockMovement records one change to a medication's stock. Delta is
// signed: receipts are positive, dispensals negative.
type StockMovement struct {
	ID           uuid.UUID `db:"id" json:"id"`
	MedicationID uuid.UUID `db:"medication_id" json:"medicament_id"`
	Delta        int       `db:"delta" json:"delta"`
	Kind         string    `db:"kind" json:"type"`
	Reason       *string   `db:"reason" json:"raison,omitempty"`
	CreatedBy    string    `db:"created_by" json:"created_by"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
