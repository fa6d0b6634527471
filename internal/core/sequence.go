package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// nextDocumentNumber issues the next gapless number for typeCode in year,
// formatted as TYPE-YEAR-00001. The sequence row is locked by the upsert until
// the caller's transaction ends, so a rolled-back caller never leaves a gap.
func nextDocumentNumber(ctx context.Context, tx pgx.Tx, typeCode string, year int) (string, error) {
	var lastNumber int64
	err := tx.QueryRow(ctx, `
		INSERT INTO document_sequences (type_code, year, last_number)
		VALUES ($1, $2, 1)
		ON CONFLICT (type_code, year)
		DO UPDATE SET last_number = document_sequences.last_number + 1
		RETURNING last_number`,
		typeCode, year,
	).Scan(&lastNumber)
	if err != nil {
		return "", fmt.Errorf("failed to generate gapless sequence number: %w", err)
	}
	return formatDocumentNumber(typeCode, year, lastNumber), nil
}

func formatDocumentNumber(typeCode string, year int, n int64) string {
	return fmt.Sprintf("%s-%d-%05d", typeCode, year, n)
}
