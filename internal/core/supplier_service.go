package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type supplierService struct {
	pool *pgxpool.Pool
}

// NewSupplierService constructs a SupplierService backed by PostgreSQL.
func NewSupplierService(pool *pgxpool.Pool) SupplierService {
	return &supplierService{pool: pool}
}

// CreateSupplier inserts a new supplier record.
func (s *supplierService) CreateSupplier(ctx context.Context, input SupplierInput) (*Supplier, error) {
	if input.Code == "" || input.Name == "" {
		return nil, invalidInput("supplier code and name are required")
	}

	v := &Supplier{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO suppliers (code, name, contact_person, email, phone)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, code, name, contact_person, email, phone, is_active, created_at`,
		input.Code, input.Name, toPtr(input.ContactPerson), toPtr(input.Email), toPtr(input.Phone),
	).Scan(&v.ID, &v.Code, &v.Name, &v.ContactPerson, &v.Email, &v.Phone, &v.IsActive, &v.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create supplier %q: %w", input.Code, err)
	}
	return v, nil
}

func (s *supplierService) GetSuppliers(ctx context.Context) ([]Supplier, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, code, name, contact_person, email, phone, is_active, created_at
		FROM suppliers
		WHERE is_active = true
		ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("get suppliers: %w", err)
	}
	defer rows.Close()

	var suppliers []Supplier
	for rows.Next() {
		var v Supplier
		if err := rows.Scan(&v.ID, &v.Code, &v.Name, &v.ContactPerson, &v.Email, &v.Phone,
			&v.IsActive, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan supplier: %w", err)
		}
		suppliers = append(suppliers, v)
	}
	return suppliers, nil
}

func (s *supplierService) GetSupplierByCode(ctx context.Context, code string) (*Supplier, error) {
	v := &Supplier{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, code, name, contact_person, email, phone, is_active, created_at
		FROM suppliers
		WHERE code = $1`,
		code,
	).Scan(&v.ID, &v.Code, &v.Name, &v.ContactPerson, &v.Email, &v.Phone, &v.IsActive, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("supplier %q: %w", code, ErrNotFound)
		}
		return nil, fmt.Errorf("get supplier %q: %w", code, err)
	}
	return v, nil
}

func (s *supplierService) SetPrice(ctx context.Context, input SupplierPriceInput) (*SupplierPrice, error) {
	if input.UnitPrice.IsNegative() {
		return nil, invalidInput("unit price cannot be negative, got %s", input.UnitPrice)
	}
	if input.LeadTimeDays < 0 {
		return nil, invalidInput("lead time cannot be negative, got %d", input.LeadTimeDays)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := registerPartTx(ctx, tx, input.PartNumber); err != nil {
		return nil, err
	}

	p := &SupplierPrice{}
	err = tx.QueryRow(ctx, `
		WITH upserted AS (
			INSERT INTO supplier_pricing (supplier_id, part_number, unit_price, lead_time_days, preferred)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (supplier_id, part_number) DO UPDATE
			SET unit_price = EXCLUDED.unit_price,
			    lead_time_days = EXCLUDED.lead_time_days,
			    preferred = EXCLUDED.preferred,
			    is_active = true,
			    updated_at = NOW()
			RETURNING supplier_id, part_number, unit_price, lead_time_days, preferred, is_active, updated_at
		)
		SELECT u.supplier_id, s.code, u.part_number, u.unit_price, u.lead_time_days,
		       u.preferred, u.is_active, u.updated_at
		FROM upserted u
		JOIN suppliers s ON s.id = u.supplier_id`,
		input.SupplierID, input.PartNumber, input.UnitPrice, input.LeadTimeDays, input.Preferred,
	).Scan(&p.SupplierID, &p.SupplierCode, &p.PartNumber, &p.UnitPrice, &p.LeadTimeDays,
		&p.Preferred, &p.IsActive, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("set price for %s from supplier %d: %w", input.PartNumber, input.SupplierID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit supplier price: %w", err)
	}
	return p, nil
}

func (s *supplierService) DeactivatePrice(ctx context.Context, supplierID int, partNumber string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE supplier_pricing SET is_active = false, updated_at = NOW()
		WHERE supplier_id = $1 AND part_number = $2`,
		supplierID, partNumber,
	)
	if err != nil {
		return fmt.Errorf("deactivate price: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("price for %s from supplier %d: %w", partNumber, supplierID, ErrNotFound)
	}
	return nil
}

// PricingForPart returns every pricing record for the part, active or not,
// from active suppliers.
func (s *supplierService) PricingForPart(ctx context.Context, partNumber string) ([]SupplierPrice, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT sp.supplier_id, s.code, sp.part_number, sp.unit_price, sp.lead_time_days,
		       sp.preferred, sp.is_active, sp.updated_at
		FROM supplier_pricing sp
		JOIN suppliers s ON s.id = sp.supplier_id
		WHERE sp.part_number = $1 AND s.is_active = true
		ORDER BY sp.preferred DESC, sp.unit_price, sp.supplier_id`,
		partNumber,
	)
	if err != nil {
		return nil, fmt.Errorf("query pricing for %s: %w", partNumber, err)
	}
	defer rows.Close()

	var prices []SupplierPrice
	for rows.Next() {
		var p SupplierPrice
		if err := rows.Scan(&p.SupplierID, &p.SupplierCode, &p.PartNumber, &p.UnitPrice, &p.LeadTimeDays,
			&p.Preferred, &p.IsActive, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan supplier price: %w", err)
		}
		prices = append(prices, p)
	}
	return prices, rows.Err()
}
