package core

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CreateGroupInput struct {
	PartNumbers   []string
	Description   string
	MinStockGroup int
	AutoReplenish bool
}

type GroupSettings struct {
	Description   string
	MinStockGroup int
	AutoReplenish bool
}

// XrefGroupService manages cross-reference groups. Membership lives on
// parts.xref_group_id, so a part can never sit in two groups, and combined
// stock is summed from the members on every read.
type XrefGroupService interface {
	// CreateGroup fails with *GroupMembershipConflictError if any part is
	// already grouped. Parts are never moved implicitly.
	CreateGroup(ctx context.Context, in CreateGroupInput) (*XrefGroup, error)
	// AddMember is a no-op when the part is already in this group.
	AddMember(ctx context.Context, groupID int, partNumber string) error
	RemoveMember(ctx context.Context, groupID int, partNumber string) error
	UpdateGroup(ctx context.Context, groupID int, in GroupSettings) (*XrefGroup, error)

	CombinedStock(ctx context.Context, groupID int) (int, error)
	// IsBelowMinimum reports combined stock <= the group minimum.
	IsBelowMinimum(ctx context.Context, groupID int) (bool, error)
	GetGroup(ctx context.Context, groupID int) (*XrefGroup, error)
	ListGroups(ctx context.Context) ([]XrefGroup, error)
}

type xrefGroupService struct {
	pool *pgxpool.Pool
}

func NewXrefGroupService(pool *pgxpool.Pool) XrefGroupService {
	return &xrefGroupService{pool: pool}
}

func belowMinimum(combined, minStockGroup int) bool {
	return combined <= minStockGroup
}

func (s *xrefGroupService) CreateGroup(ctx context.Context, in CreateGroupInput) (*XrefGroup, error) {
	parts := uniqueSorted(in.PartNumbers)
	if len(parts) == 0 {
		return nil, invalidInput("cross-reference group needs at least one part")
	}
	if in.MinStockGroup < 0 {
		return nil, invalidInput("group minimum cannot be negative, got %d", in.MinStockGroup)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var conflicts []string
	for _, pn := range parts {
		if err := registerPartTx(ctx, tx, pn); err != nil {
			return nil, err
		}
		current, err := lockPartGroup(ctx, tx, pn)
		if err != nil {
			return nil, err
		}
		if current != nil {
			conflicts = append(conflicts, pn)
		}
	}
	if len(conflicts) > 0 {
		return nil, &GroupMembershipConflictError{Parts: conflicts}
	}

	var id int
	if err := tx.QueryRow(ctx, `
		INSERT INTO xref_groups (description, min_stock_group, auto_replenish)
		VALUES ($1, $2, $3)
		RETURNING id`,
		in.Description, in.MinStockGroup, in.AutoReplenish,
	).Scan(&id); err != nil {
		return nil, fmt.Errorf("insert cross-reference group: %w", err)
	}

	if _, err := tx.Exec(ctx,
		"UPDATE parts SET xref_group_id = $1, updated_at = NOW() WHERE part_number = ANY($2)",
		id, parts,
	); err != nil {
		return nil, fmt.Errorf("assign group members: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit cross-reference group: %w", err)
	}
	return s.GetGroup(ctx, id)
}

func (s *xrefGroupService) AddMember(ctx context.Context, groupID int, partNumber string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockGroup(ctx, tx, groupID); err != nil {
		return err
	}
	if err := registerPartTx(ctx, tx, partNumber); err != nil {
		return err
	}
	current, err := lockPartGroup(ctx, tx, partNumber)
	if err != nil {
		return err
	}
	switch {
	case current != nil && *current == groupID:
		return nil
	case current != nil:
		return &GroupMembershipConflictError{GroupID: *current, Parts: []string{partNumber}}
	}

	if _, err := tx.Exec(ctx,
		"UPDATE parts SET xref_group_id = $1, updated_at = NOW() WHERE part_number = $2",
		groupID, partNumber,
	); err != nil {
		return fmt.Errorf("add %s to group %d: %w", partNumber, groupID, err)
	}
	return tx.Commit(ctx)
}

func (s *xrefGroupService) RemoveMember(ctx context.Context, groupID int, partNumber string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockGroup(ctx, tx, groupID); err != nil {
		return err
	}
	current, err := lockPartGroup(ctx, tx, partNumber)
	if err != nil {
		return err
	}
	if current == nil || *current != groupID {
		return fmt.Errorf("part %s is not a member of group %d: %w", partNumber, groupID, ErrNotFound)
	}

	if _, err := tx.Exec(ctx,
		"UPDATE parts SET xref_group_id = NULL, updated_at = NOW() WHERE part_number = $1",
		partNumber,
	); err != nil {
		return fmt.Errorf("remove %s from group %d: %w", partNumber, groupID, err)
	}
	return tx.Commit(ctx)
}

func (s *xrefGroupService) UpdateGroup(ctx context.Context, groupID int, in GroupSettings) (*XrefGroup, error) {
	if in.MinStockGroup < 0 {
		return nil, invalidInput("group minimum cannot be negative, got %d", in.MinStockGroup)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE xref_groups SET description = $1, min_stock_group = $2, auto_replenish = $3
		WHERE id = $4`,
		in.Description, in.MinStockGroup, in.AutoReplenish, groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("update group %d: %w", groupID, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("cross-reference group %d: %w", groupID, ErrNotFound)
	}
	return s.GetGroup(ctx, groupID)
}

func (s *xrefGroupService) CombinedStock(ctx context.Context, groupID int) (int, error) {
	g, err := s.GetGroup(ctx, groupID)
	if err != nil {
		return 0, err
	}
	return g.CombinedStock, nil
}

func (s *xrefGroupService) IsBelowMinimum(ctx context.Context, groupID int) (bool, error) {
	g, err := s.GetGroup(ctx, groupID)
	if err != nil {
		return false, err
	}
	return belowMinimum(g.CombinedStock, g.MinStockGroup), nil
}

func (s *xrefGroupService) GetGroup(ctx context.Context, groupID int) (*XrefGroup, error) {
	groups, err := s.queryGroups(ctx, "WHERE g.id = $1", groupID)
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("cross-reference group %d: %w", groupID, ErrNotFound)
	}
	return &groups[0], nil
}

func (s *xrefGroupService) ListGroups(ctx context.Context) ([]XrefGroup, error) {
	return s.queryGroups(ctx, "")
}

// queryGroups reads groups with their members and combined stock in one statement,
// so the sum always matches the member list it was computed from.
func (s *xrefGroupService) queryGroups(ctx context.Context, where string, args ...any) ([]XrefGroup, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT g.id, g.description, g.min_stock_group, g.auto_replenish, g.created_at,
		       COALESCE(array_agg(p.part_number ORDER BY p.part_number)
		                FILTER (WHERE p.part_number IS NOT NULL), '{}'),
		       COALESCE(SUM(p.current_stock), 0)::int
		FROM xref_groups g
		LEFT JOIN parts p ON p.xref_group_id = g.id
		`+where+`
		GROUP BY g.id
		ORDER BY g.id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query cross-reference groups: %w", err)
	}
	defer rows.Close()

	var groups []XrefGroup
	for rows.Next() {
		var g XrefGroup
		if err := rows.Scan(&g.ID, &g.Description, &g.MinStockGroup, &g.AutoReplenish, &g.CreatedAt,
			&g.Members, &g.CombinedStock); err != nil {
			return nil, fmt.Errorf("scan cross-reference group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func lockGroup(ctx context.Context, tx pgx.Tx, groupID int) error {
	var id int
	err := tx.QueryRow(ctx, "SELECT id FROM xref_groups WHERE id = $1 FOR UPDATE", groupID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("cross-reference group %d: %w", groupID, ErrNotFound)
		}
		return fmt.Errorf("lock group %d: %w", groupID, err)
	}
	return nil
}

// lockPartGroup takes the part row lock and returns its current group, if any.
func lockPartGroup(ctx context.Context, tx pgx.Tx, partNumber string) (*int, error) {
	var groupID *int
	err := tx.QueryRow(ctx,
		"SELECT xref_group_id FROM parts WHERE part_number = $1 FOR UPDATE", partNumber,
	).Scan(&groupID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("part %s: %w", partNumber, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to lock part %s: %w", partNumber, err)
	}
	return groupID, nil
}

func uniqueSorted(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
