package index

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"pipeline_server/core/domain"
	"pipeline_server/core/port/out"
)

// PgVectorIndex queries the embedding column on the emails table via
// pgvector's cosine operator. The entries themselves are written by
// the email store inside its transaction; Insert here only backfills.
type PgVectorIndex struct {
	db  *pgxpool.Pool
	dim int
}

func NewPgVectorIndex(db *pgxpool.Pool, dim int) *PgVectorIndex {
	return &PgVectorIndex{db: db, dim: dim}
}

// Insert backfills the embedding for an already-stored email. Rows
// that already carry an embedding are left alone.
func (p *PgVectorIndex) Insert(ctx context.Context, id uuid.UUID, vector []float32) error {
	if len(vector) != p.dim {
		return domain.NewDimensionMismatch(p.dim, len(vector))
	}

	query := `
		UPDATE emails
		SET embedding = $1::vector
		WHERE id = $2 AND embedding IS NULL
	`
	if _, err := p.db.Exec(ctx, query, PgVector(domain.NormalizeVector(vector)), id); err != nil {
		return fmt.Errorf("failed to store embedding: %w", err)
	}
	return nil
}

func (p *PgVectorIndex) Query(ctx context.Context, vector []float32, k int, maxDistance float64) ([]out.Neighbor, error) {
	if len(vector) != p.dim {
		return nil, domain.NewDimensionMismatch(p.dim, len(vector))
	}
	if k <= 0 {
		return []out.Neighbor{}, nil
	}

	// Ties on distance resolve by insertion order, same as the
	// in-process index.
	query := `
		SELECT id, embedding <=> $1::vector AS distance
		FROM emails
		WHERE embedding IS NOT NULL
		  AND embedding <=> $1::vector <= $2
		ORDER BY distance ASC, created_at ASC, id ASC
		LIMIT $3
	`
	rows, err := p.db.Query(ctx, query, PgVector(domain.NormalizeVector(vector)), maxDistance, k)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer rows.Close()

	neighbors := make([]out.Neighbor, 0, k)
	for rows.Next() {
		var n out.Neighbor
		if err := rows.Scan(&n.EmailID, &n.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan neighbor: %w", err)
		}
		neighbors = append(neighbors, n)
	}
	return neighbors, rows.Err()
}

// Remove clears the embedding column. Deleting the email row removes
// the entry implicitly; this covers the un-index-without-delete path.
func (p *PgVectorIndex) Remove(ctx context.Context, id uuid.UUID) error {
	if _, err := p.db.Exec(ctx, `UPDATE emails SET embedding = NULL WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to remove embedding: %w", err)
	}
	return nil
}

func (p *PgVectorIndex) Len(ctx context.Context) (int, error) {
	var count int
	err := p.db.QueryRow(ctx, `SELECT count(*) FROM emails WHERE embedding IS NOT NULL`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count embeddings: %w", err)
	}
	return count, nil
}

// PgVector renders a float32 slice in pgvector's text format.
func PgVector(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(x), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// ParsePgVector parses pgvector's text format back into a slice.
func ParsePgVector(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return nil, fmt.Errorf("malformed vector literal")
	}
	body := s[1 : len(s)-1]
	if body == "" {
		return []float32{}, nil
	}
	parts := strings.Split(body, ",")
	v := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("malformed vector element %d: %w", i, err)
		}
		v[i] = float32(f)
	}
	return v, nil
}
