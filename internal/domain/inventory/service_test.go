package inventory

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/trimed/hospital/pkg/apperror"
)

type mockCategoryRepo struct{ categories map[uuid.UUID]*MedicationCategory }

func (m *mockCategoryRepo) Create(_ context.Context, c *MedicationCategory) error {
	c.ID = uuid.New()
	cp := *c
	m.categories[c.ID] = &cp
	return nil
}

func (m *mockCategoryRepo) GetByID(_ context.Context, id uuid.UUID) (*MedicationCategory, error) {
	c, ok := m.categories[id]
	if !ok {
		return nil, apperror.NewNotFound("medication category")
	}
	cp := *c
	return &cp, nil
}

func (m *mockCategoryRepo) GetByName(_ context.Context, name string) (*MedicationCategory, error) {
	for _, c := range m.categories {
		if strings.EqualFold(c.Name, name) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFound("medication category")
}

func (m *mockCategoryRepo) List(_ context.Context) ([]*MedicationCategory, error) {
	var out []*MedicationCategory
	for _, c := range m.categories {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

type mockMedicationRepo struct{ meds map[uuid.UUID]*Medication }

func (m *mockMedicationRepo) Create(_ context.Context, med *Medication) error {
	med.ID = uuid.New()
	cp := *med
	m.meds[med.ID] = &cp
	return nil
}

func (m *mockMedicationRepo) GetByID(_ context.Context, id uuid.UUID) (*Medication, error) {
	med, ok := m.meds[id]
	if !ok {
		return nil, apperror.NewNotFound("medication")
	}
	cp := *med
	return &cp, nil
}

func (m *mockMedicationRepo) Update(_ context.Context, med *Medication) error {
	if _, ok := m.meds[med.ID]; !ok {
		return apperror.NewNotFound("medication")
	}
	cp := *med
	m.meds[med.ID] = &cp
	return nil
}

func (m *mockMedicationRepo) List(_ context.Context, f MedicationFilter, limit, offset int) ([]*Medication, int, error) {
	var out []*Medication
	for _, med := range m.meds {
		if f.CategoryID != nil && (med.CategoryID == nil || *med.CategoryID != *f.CategoryID) {
			continue
		}
		if f.Name != "" && !strings.Contains(strings.ToLower(med.Name), strings.ToLower(f.Name)) {
			continue
		}
		if f.LowStock && !med.NeedsRestock() {
			continue
		}
		cp := *med
		out = append(out, &cp)
	}
	return out, len(out), nil
}

type mockMovementRepo struct{ movements []*StockMovement }

func (m *mockMovementRepo) Create(_ context.Context, mv *StockMovement) error {
	mv.ID = uuid.New()
	cp := *mv
	m.movements = append(m.movements, &cp)
	return nil
}

func (m *mockMovementRepo) ListByMedication(_ context.Context, medicationID uuid.UUID) ([]*StockMovement, error) {
	var out []*StockMovement
	for _, mv := range m.movements {
		if mv.MedicationID == medicationID {
			cp := *mv
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fixture struct {
	svc       *Service
	movements *mockMovementRepo
}

func newFixture() *fixture {
	movements := &mockMovementRepo{}
	svc := NewService(
		&mockCategoryRepo{categories: make(map[uuid.UUID]*MedicationCategory)},
		&mockMedicationRepo{meds: make(map[uuid.UUID]*Medication)},
		movements,
		zerolog.Nop(),
	)
	return &fixture{svc: svc, movements: movements}
}

func (f *fixture) addMedication(t *testing.T, stock, threshold int) *Medication {
	t.Helper()
	m, err := f.svc.CreateMedication(context.Background(), MedicationInput{
		Name:          "Paracetamol 500mg",
		Price:         2.5,
		StockQuantity: stock,
		MinStockLevel: threshold,
	})
	if err != nil {
		t.Fatalf("CreateMedication: %v", err)
	}
	return m
}

func TestCreateCategory_Duplicate(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.CreateCategory(context.Background(), "Antibiotiques"); err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	if _, err := f.svc.CreateCategory(context.Background(), "antibiotiques"); !apperror.IsConflict(err) {
		t.Fatalf("expected conflict for duplicate category, got %v", err)
	}
}

func TestCreateMedication(t *testing.T) {
	f := newFixture()
	m := f.addMedication(t, 40, 10)

	if m.ID == uuid.Nil {
		t.Error("medication ID not assigned")
	}
	if m.NeedsRestock() {
		t.Error("40 units against a threshold of 10 should not need restock")
	}

	// opening balance shows up in the history
	history, err := f.svc.StockHistory(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("StockHistory: %v", err)
	}
	if len(history) != 1 || history[0].Delta != 40 || history[0].Kind != MovementIn {
		t.Errorf("unexpected opening movement: %+v", history)
	}
}

func TestCreateMedication_Validation(t *testing.T) {
	f := newFixture()
	cases := []struct {
		name  string
		in    MedicationInput
		field string
	}{
		{"missing name", MedicationInput{Price: 1}, "nom"},
		{"negative price", MedicationInput{Name: "Ibuprofene", Price: -1}, "prix"},
		{"negative stock", MedicationInput{Name: "Ibuprofene", StockQuantity: -3}, "quantite_stock"},
		{"negative threshold", MedicationInput{Name: "Ibuprofene", MinStockLevel: -1}, "seuil_alerte"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreateMedication(context.Background(), tc.in)
			v, ok := apperror.AsValidation(err)
			if !ok {
				t.Fatalf("expected validation error, got %v", err)
			}
			if len(v.Fields[tc.field]) == 0 {
				t.Errorf("expected error on field %q, got %v", tc.field, v.Fields)
			}
		})
	}
}

func TestCreateMedication_UnknownCategory(t *testing.T) {
	f := newFixture()
	bogus := uuid.New()
	_, err := f.svc.CreateMedication(context.Background(), MedicationInput{
		Name:       "Amoxicilline",
		CategoryID: &bogus,
	})
	if v, ok := apperror.AsValidation(err); !ok || len(v.Fields["categorie_id"]) == 0 {
		t.Fatalf("expected validation error on categorie_id, got %v", err)
	}
}

func TestAdjustStock(t *testing.T) {
	f := newFixture()
	m := f.addMedication(t, 40, 10)

	updated, err := f.svc.AdjustStock(context.Background(), m.ID, "user-1", AdjustInput{
		Delta: -15, Kind: MovementOut,
	})
	if err != nil {
		t.Fatalf("AdjustStock: %v", err)
	}
	if updated.StockQuantity != 25 {
		t.Errorf("stock = %d, want 25", updated.StockQuantity)
	}

	updated, err = f.svc.AdjustStock(context.Background(), m.ID, "user-1", AdjustInput{
		Delta: 100, Kind: MovementIn,
	})
	if err != nil {
		t.Fatalf("AdjustStock: %v", err)
	}
	if updated.StockQuantity != 125 {
		t.Errorf("stock = %d, want 125", updated.StockQuantity)
	}

	history, err := f.svc.StockHistory(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("StockHistory: %v", err)
	}
	if len(history) != 3 {
		t.Errorf("expected 3 movements including opening balance, got %d", len(history))
	}
}

func TestAdjustStock_NeverNegative(t *testing.T) {
	f := newFixture()
	m := f.addMedication(t, 10, 2)

	_, err := f.svc.AdjustStock(context.Background(), m.ID, "user-1", AdjustInput{
		Delta: -11, Kind: MovementOut,
	})
	if v, ok := apperror.AsValidation(err); !ok || len(v.Fields["delta"]) == 0 {
		t.Fatalf("expected validation error on delta, got %v", err)
	}

	current, err := f.svc.GetMedication(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("GetMedication: %v", err)
	}
	if current.StockQuantity != 10 {
		t.Errorf("stock changed on rejected adjustment: %d", current.StockQuantity)
	}
}

func TestAdjustStock_KindValidation(t *testing.T) {
	f := newFixture()
	m := f.addMedication(t, 10, 2)

	cases := []struct {
		name string
		in   AdjustInput
	}{
		{"zero delta", AdjustInput{Delta: 0, Kind: MovementAdjust}},
		{"unknown kind", AdjustInput{Delta: 5, Kind: "transfer"}},
		{"negative inbound", AdjustInput{Delta: -5, Kind: MovementIn}},
		{"positive outbound", AdjustInput{Delta: 5, Kind: MovementOut}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.svc.AdjustStock(context.Background(), m.ID, "user-1", tc.in); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLowStock(t *testing.T) {
	f := newFixture()
	low := f.addMedication(t, 3, 10)
	f.addMedication(t, 80, 10)

	out, err := f.svc.LowStock(context.Background())
	if err != nil {
		t.Fatalf("LowStock: %v", err)
	}
	if len(out) != 1 || out[0].ID != low.ID {
		t.Errorf("expected only the low medication, got %d entries", len(out))
	}
}

func TestUpdateMedication_StockUntouched(t *testing.T) {
	f := newFixture()
	m := f.addMedication(t, 40, 10)

	updated, err := f.svc.UpdateMedication(context.Background(), m.ID, MedicationInput{
		Name:          "Paracetamol 1g",
		Price:         3.2,
		StockQuantity: 999, // ignored: stock only moves through adjustments
		MinStockLevel: 15,
	})
	if err != nil {
		t.Fatalf("UpdateMedication: %v", err)
	}
	if updated.StockQuantity != 40 {
		t.Errorf("stock = %d, want 40 unchanged", updated.StockQuantity)
	}
	if updated.Name != "Paracetamol 1g" || updated.MinStockLevel != 15 {
		t.Errorf("fields not applied: %+v", updated)
	}
}
