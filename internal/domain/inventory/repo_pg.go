package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trimed/hospital/internal/platform/db"
	"github.com/trimed/hospital/pkg/apperror"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func conn(ctx context.Context, pool *pgxpool.Pool) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return pool
}

// ---- categories ----

type categoryRepoPG struct {
	pool *pgxpool.Pool
}

func NewCategoryRepoPG(pool *pgxpool.Pool) CategoryRepository {
	return &categoryRepoPG{pool: pool}
}

func (r *categoryRepoPG) Create(ctx context.Context, c *MedicationCategory) error {
	c.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO medication_category (id, name) VALUES ($1, $2)`,
		c.ID, c.Name)
	return err
}

func (r *categoryRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*MedicationCategory, error) {
	row := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, name FROM medication_category WHERE id = $1`, id)
	return scanCategory(row)
}

func (r *categoryRepoPG) GetByName(ctx context.Context, name string) (*MedicationCategory, error) {
	row := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT id, name FROM medication_category WHERE lower(name) = lower($1)`, name)
	return scanCategory(row)
}

func (r *categoryRepoPG) List(ctx context.Context) ([]*MedicationCategory, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT id, name FROM medication_category ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*MedicationCategory
	for rows.Next() {
		var c MedicationCategory
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func scanCategory(row pgx.Row) (*MedicationCategory, error) {
	var c MedicationCategory
	if err := row.Scan(&c.ID, &c.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewNotFound("medication category")
		}
		return nil, err
	}
	return &c, nil
}

// ---- medications ----

const medicationCols = `id, category_id, name, description, price, stock_quantity, min_stock_level, created_at, updated_at`

type medicationRepoPG struct {
	pool *pgxpool.Pool
}

func NewMedicationRepoPG(pool *pgxpool.Pool) MedicationRepository {
	return &medicationRepoPG{pool: pool}
}

func (r *medicationRepoPG) Create(ctx context.Context, m *Medication) error {
	m.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO medication (`+medicationCols+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())`,
		m.ID, m.CategoryID, m.Name, m.Description, m.Price, m.StockQuantity, m.MinStockLevel)
	return err
}

func (r *medicationRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Medication, error) {
	row := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+medicationCols+` FROM medication WHERE id = $1`, id)
	return scanMedication(row)
}

func (r *medicationRepoPG) Update(ctx context.Context, m *Medication) error {
	tag, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE medication SET category_id = $2, name = $3, description = $4, price = $5,
		        stock_quantity = $6, min_stock_level = $7, updated_at = now()
		 WHERE id = $1`,
		m.ID, m.CategoryID, m.Name, m.Description, m.Price, m.StockQuantity, m.MinStockLevel)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("medication")
	}
	return nil
}

func (r *medicationRepoPG) List(ctx context.Context, f MedicationFilter, limit, offset int) ([]*Medication, int, error) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	idx := 1

	if f.CategoryID != nil {
		where += fmt.Sprintf(` AND category_id = $%d`, idx)
		args = append(args, *f.CategoryID)
		idx++
	}
	if f.Name != "" {
		where += fmt.Sprintf(` AND name ILIKE $%d`, idx)
		args = append(args, "%"+f.Name+"%")
		idx++
	}
	if f.LowStock {
		where += ` AND stock_quantity <= min_stock_level`
	}

	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM medication`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + medicationCols + ` FROM medication` + where +
		fmt.Sprintf(` ORDER BY name LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Medication
	for rows.Next() {
		var m Medication
		if err := rows.Scan(&m.ID, &m.CategoryID, &m.Name, &m.Description, &m.Price,
			&m.StockQuantity, &m.MinStockLevel, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, &m)
	}
	return out, total, rows.Err()
}

func scanMedication(row pgx.Row) (*Medication, error) {
	var m Medication
	if err := row.Scan(&m.ID, &m.CategoryID, &m.Name, &m.Description, &m.Price,
		&m.StockQuantity, &m.MinStockLevel, &m.CreatedAt, &m.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NewNotFound("medication")
		}
		return nil, err
	}
	return &m, nil
}

// ---- stock movements ----

type movementRepoPG struct {
	pool *pgxpool.Pool
}

func NewMovementRepoPG(pool *pgxpool.Pool) MovementRepository {
	return &movementRepoPG{pool: pool}
}

func (r *movementRepoPG) Create(ctx context.Context, mv *StockMovement) error {
	mv.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx,
		`INSERT INTO stock_movement (id, medication_id, delta, kind, reason, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		mv.ID, mv.MedicationID, mv.Delta, mv.Kind, mv.Reason, mv.CreatedBy, mv.CreatedAt)
	return err
}

func (r *movementRepoPG) ListByMedication(ctx context.Context, medicationID uuid.UUID) ([]*StockMovement, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT id, medication_id, delta, kind, reason, created_by, created_at
		 FROM stock_movement WHERE medication_id = $1 ORDER BY created_at DESC`, medicationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*StockMovement
	for rows.Next() {
		var mv StockMovement
		if err := rows.Scan(&mv.ID, &mv.MedicationID, &mv.Delta, &mv.Kind, &mv.Reason,
			&mv.CreatedBy, &mv.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &mv)
	}
	return out, rows.Err()
}
