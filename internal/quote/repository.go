package quote

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abdulmahfud/ongkir-service/internal/expedition"
	"github.com/abdulmahfud/ongkir-service/internal/platform/db"
)

// HistoryEntry is one row of the quote history kept in PostgreSQL for
// reporting. Unlike the Redis batch it survives batch expiry.
type HistoryEntry struct {
	BatchID      string    `json:"batch_id"`
	Generation   int64     `json:"generation"`
	Origin       string    `json:"origin"`
	Destination  string    `json:"destination"`
	WeightGrams  int       `json:"weight_grams"`
	OptionCount  int       `json:"option_count"`
	BestOptionID *string   `json:"best_option_id,omitempty"`
	BestPrice    *int64    `json:"best_price,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Repository provides PostgreSQL backed persistence for quote history.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// RecordBatch appends one history row for a freshly created batch plus
// one row per harvested option, all in a single transaction. The
// cheapest option, when any exists, is denormalized into the batch row.
func (r *Repository) RecordBatch(ctx context.Context, batch *Batch) error {
	var bestID *string
	var bestPrice *int64
	for _, opt := range batch.Options {
		if bestPrice == nil || opt.Price < *bestPrice {
			id, price := opt.ID, opt.Price
			bestID, bestPrice = &id, &price
		}
	}

	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		batchQuery := `
			INSERT INTO quote_batches (
				id, generation, session_key, origin, destination,
				weight_grams, option_count, best_option_id, best_price, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`
		_, err := tx.Exec(ctx, batchQuery,
			batch.ID, batch.Generation, batch.Request.SessionKey,
			batch.Request.Origin.Regency, batch.Request.Destination.Name(expedition.ScopeDistrictRegency),
			batch.Request.WeightGrams, len(batch.Options),
			bestID, bestPrice, batch.CreatedAt,
		)
		if err != nil {
			return err
		}

		optionQuery := `
			INSERT INTO quote_batch_options (
				batch_id, option_id, name, price, display_price,
				duration, recommended, position
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`
		for i, opt := range batch.Options {
			_, err := tx.Exec(ctx, optionQuery,
				batch.ID, opt.ID, opt.Name, opt.Price, opt.DisplayPrice,
				opt.Duration, opt.Recommended, i,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// RecentBatches lists the newest history rows, most recent first.
func (r *Repository) RecentBatches(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query := `
		SELECT id, generation, origin, destination, weight_grams,
		       option_count, best_option_id, best_price, created_at
		FROM quote_batches
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(
			&e.BatchID, &e.Generation, &e.Origin, &e.Destination,
			&e.WeightGrams, &e.OptionCount, &e.BestOptionID, &e.BestPrice, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// PurgeOlderThan deletes history rows created before cutoff and
// returns the number removed.
func (r *Repository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM quote_batches WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
