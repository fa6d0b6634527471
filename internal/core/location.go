package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type LocationInput struct {
	ParentID *int
	Name     string
	Type     LocationType
}

// LocationService is the storage-location tree parts point into. Parts hold
// only a location reference; the tree itself is managed here.
type LocationService interface {
	CreateLocation(ctx context.Context, in LocationInput) (*StorageLocation, error)
	GetLocation(ctx context.Context, id int) (*StorageLocation, error)
	ListLocations(ctx context.Context) ([]StorageLocation, error)
	// Path renders the location as "Van 2 / Rear Shelf / Bin 4".
	Path(ctx context.Context, id int) (string, error)
}

type locationService struct {
	pool *pgxpool.Pool
}

func NewLocationService(pool *pgxpool.Pool) LocationService {
	return &locationService{pool: pool}
}

func (s *locationService) CreateLocation(ctx context.Context, in LocationInput) (*StorageLocation, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, invalidInput("location name is required")
	}
	if !in.Type.Valid() {
		return nil, invalidInput("unknown location type %q", in.Type)
	}
	if in.ParentID != nil {
		if _, err := s.GetLocation(ctx, *in.ParentID); err != nil {
			return nil, fmt.Errorf("parent location: %w", err)
		}
	}

	l := &StorageLocation{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO storage_locations (parent_id, name, type)
		VALUES ($1, $2, $3)
		RETURNING id, parent_id, name, type, created_at`,
		in.ParentID, in.Name, string(in.Type),
	).Scan(&l.ID, &l.ParentID, &l.Name, &l.Type, &l.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create location %q: %w", in.Name, err)
	}
	return l, nil
}

func (s *locationService) GetLocation(ctx context.Context, id int) (*StorageLocation, error) {
	l := &StorageLocation{}
	err := s.pool.QueryRow(ctx,
		"SELECT id, parent_id, name, type, created_at FROM storage_locations WHERE id = $1", id,
	).Scan(&l.ID, &l.ParentID, &l.Name, &l.Type, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("storage location %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get location %d: %w", id, err)
	}
	return l, nil
}

func (s *locationService) ListLocations(ctx context.Context) ([]StorageLocation, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id, parent_id, name, type, created_at FROM storage_locations ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	defer rows.Close()

	var out []StorageLocation
	for rows.Next() {
		var l StorageLocation
		if err := rows.Scan(&l.ID, &l.ParentID, &l.Name, &l.Type, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Path walks up the tree with a recursive CTE. The depth guard stops a
// corrupted cycle from looping forever.
func (s *locationService) Path(ctx context.Context, id int) (string, error) {
	rows, err := s.pool.Query(ctx, `
		WITH RECURSIVE chain AS (
			SELECT id, parent_id, name, 0 AS depth
			FROM storage_locations WHERE id = $1
			UNION ALL
			SELECT l.id, l.parent_id, l.name, c.depth + 1
			FROM storage_locations l
			JOIN chain c ON l.id = c.parent_id
			WHERE c.depth < 32
		)
		SELECT name FROM chain ORDER BY depth DESC`, id)
	if err != nil {
		return "", fmt.Errorf("resolve path for location %d: %w", id, err)
	}
	defer rows.Close()

	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return "", fmt.Errorf("resolve path for location %d: %w", id, err)
	}
	if len(names) == 0 {
		return "", fmt.Errorf("storage location %d: %w", id, ErrNotFound)
	}
	return strings.Join(names, " / "), nil
}
