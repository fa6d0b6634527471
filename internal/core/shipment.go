package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ShipmentStatus string

const (
	ShipmentPending   ShipmentStatus = "PENDING"
	ShipmentInTransit ShipmentStatus = "IN_TRANSIT"
	ShipmentDelivered ShipmentStatus = "DELIVERED"
	ShipmentException ShipmentStatus = "EXCEPTION"
)

func (s ShipmentStatus) Valid() bool {
	switch s {
	case ShipmentPending, ShipmentInTransit, ShipmentDelivered, ShipmentException:
		return true
	}
	return false
}

// Shipment carries tracking for one or more orders. Its status moves
// independently of the orders it covers.
type Shipment struct {
	ID             int            `json:"id"`
	Carrier        string         `json:"carrier"`
	TrackingNumber string         `json:"tracking_number"`
	Status         ShipmentStatus `json:"status"`
	OrderIDs       []int          `json:"order_ids"`
	DeliveredAt    *time.Time     `json:"delivered_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

type ShipmentInput struct {
	Carrier        string
	TrackingNumber string
	OrderIDs       []int
}

type ShipmentService interface {
	CreateShipment(ctx context.Context, in ShipmentInput) (*Shipment, error)
	UpdateStatus(ctx context.Context, id int, status ShipmentStatus) (*Shipment, error)
	GetShipment(ctx context.Context, id int) (*Shipment, error)
}

type shipmentService struct {
	pool *pgxpool.Pool
}

func NewShipmentService(pool *pgxpool.Pool) ShipmentService {
	return &shipmentService{pool: pool}
}

func (s *shipmentService) CreateShipment(ctx context.Context, in ShipmentInput) (*Shipment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int
	if err := tx.QueryRow(ctx,
		"INSERT INTO shipments (carrier, tracking_number) VALUES ($1, $2) RETURNING id",
		in.Carrier, in.TrackingNumber,
	).Scan(&id); err != nil {
		return nil, fmt.Errorf("insert shipment: %w", err)
	}

	for _, orderID := range in.OrderIDs {
		if _, _, err := lockPO(ctx, tx, orderID); err != nil {
			return nil, err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO shipment_orders (shipment_id, order_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING`, id, orderID,
		); err != nil {
			return nil, fmt.Errorf("link order %d to shipment: %w", orderID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit shipment: %w", err)
	}
	return s.GetShipment(ctx, id)
}

// UpdateStatus records the carrier status. DELIVERED stamps delivered_at once.
func (s *shipmentService) UpdateStatus(ctx context.Context, id int, status ShipmentStatus) (*Shipment, error) {
	if !status.Valid() {
		return nil, invalidInput("unknown shipment status %q", status)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE shipments
		SET status = $1,
		    delivered_at = CASE WHEN $1 = 'DELIVERED' THEN COALESCE(delivered_at, NOW()) ELSE delivered_at END
		WHERE id = $2`,
		string(status), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update shipment %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("shipment %d: %w", id, ErrNotFound)
	}
	return s.GetShipment(ctx, id)
}

func (s *shipmentService) GetShipment(ctx context.Context, id int) (*Shipment, error) {
	sh := &Shipment{}
	err := s.pool.QueryRow(ctx, `
		SELECT s.id, s.carrier, s.tracking_number, s.status, s.delivered_at, s.created_at,
		       COALESCE(array_agg(so.order_id ORDER BY so.order_id) FILTER (WHERE so.order_id IS NOT NULL), '{}')
		FROM shipments s
		LEFT JOIN shipment_orders so ON so.shipment_id = s.id
		WHERE s.id = $1
		GROUP BY s.id`, id,
	).Scan(&sh.ID, &sh.Carrier, &sh.TrackingNumber, &sh.Status, &sh.DeliveredAt, &sh.CreatedAt, &sh.OrderIDs)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("shipment %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get shipment %d: %w", id, err)
	}
	return sh, nil
}
