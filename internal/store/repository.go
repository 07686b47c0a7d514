package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/wonny/salescast/internal/contracts"
)

// ErrNoBusinessID rejects loads that cannot be keyed
var ErrNoBusinessID = errors.New("business id is required")

// Repository stores input and forecast rows keyed by (business_id, date)
type Repository struct {
	pool   *pgxpool.Pool
	schema string
	log    zerolog.Logger
}

// NewRepository 새 저장소 생성
func NewRepository(pool *pgxpool.Pool, schema string, log zerolog.Logger) *Repository {
	return &Repository{
		pool:   pool,
		schema: schema,
		log:    log.With().Str("component", "store").Logger(),
	}
}

// ReplaceInputs purges the business' input rows and inserts rows in one transaction
func (r *Repository) ReplaceInputs(ctx context.Context, businessID string, rows []contracts.InputRecord) error {
	businessID = strings.TrimSpace(businessID)
	if businessID == "" {
		return ErrNoBusinessID
	}

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		return r.replace(ctx, tx, inputTable, businessID, r.inputBatch(businessID, rows))
	})
	if err != nil {
		return fmt.Errorf("replace inputs for %s: %w", businessID, err)
	}

	r.log.Info().Str("business_id", businessID).Int("rows", len(rows)).Msg("input rows replaced")
	return nil
}

// ReplaceForecasts purges the business' forecast rows and inserts rows.
// generatedAt nil means the database time of the upsert.
func (r *Repository) ReplaceForecasts(ctx context.Context, businessID string, rows []contracts.ForecastRecord, generatedAt *time.Time) error {
	businessID = strings.TrimSpace(businessID)
	if businessID == "" {
		return ErrNoBusinessID
	}

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		return r.replace(ctx, tx, forecastTable, businessID, r.forecastBatch(businessID, rows, generatedAt))
	})
	if err != nil {
		return fmt.Errorf("replace forecasts for %s: %w", businessID, err)
	}

	r.log.Info().Str("business_id", businessID).Int("rows", len(rows)).Msg("forecast rows replaced")
	return nil
}

// ReplaceBusiness replaces both the input and the forecast rows of a
// business in a single transaction, so readers never see one without the other
func (r *Repository) ReplaceBusiness(ctx context.Context, businessID string, inputs []contracts.InputRecord, forecasts []contracts.ForecastRecord, generatedAt *time.Time) error {
	businessID = strings.TrimSpace(businessID)
	if businessID == "" {
		return ErrNoBusinessID
	}

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		if err := r.replace(ctx, tx, inputTable, businessID, r.inputBatch(businessID, inputs)); err != nil {
			return fmt.Errorf("inputs: %w", err)
		}
		if err := r.replace(ctx, tx, forecastTable, businessID, r.forecastBatch(businessID, forecasts, generatedAt)); err != nil {
			return fmt.Errorf("forecasts: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace business %s: %w", businessID, err)
	}

	r.log.Info().
		Str("business_id", businessID).
		Int("inputs", len(inputs)).
		Int("forecasts", len(forecasts)).
		Msg("business rows replaced")
	return nil
}

func (r *Repository) inputBatch(businessID string, rows []contracts.InputRecord) *pgx.Batch {
	query := fmt.Sprintf(`
		INSERT INTO %s (business_id, date, sales)
		VALUES ($1, $2, $3)
		ON CONFLICT (business_id, date) DO UPDATE SET
			sales = EXCLUDED.sales`, tableName(r.schema, inputTable))

	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(query, businessID, row.Date, row.Sales)
	}
	return batch
}

func (r *Repository) forecastBatch(businessID string, rows []contracts.ForecastRecord, generatedAt *time.Time) *pgx.Batch {
	table := tableName(r.schema, forecastTable)
	batch := &pgx.Batch{}

	if generatedAt == nil {
		query := fmt.Sprintf(`
			INSERT INTO %s (business_id, date, predicted_sales, lower_bound, upper_bound)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (business_id, date) DO UPDATE SET
				predicted_sales = EXCLUDED.predicted_sales,
				lower_bound = EXCLUDED.lower_bound,
				upper_bound = EXCLUDED.upper_bound,
				generated_at = NOW()`, table)
		for _, row := range rows {
			batch.Queue(query, businessID, row.Date, row.PredictedSales, row.LowerBound, row.UpperBound)
		}
		return batch
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (business_id, date, predicted_sales, lower_bound, upper_bound, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (business_id, date) DO UPDATE SET
			predicted_sales = EXCLUDED.predicted_sales,
			lower_bound = EXCLUDED.lower_bound,
			upper_bound = EXCLUDED.upper_bound,
			generated_at = EXCLUDED.generated_at`, table)
	for _, row := range rows {
		batch.Queue(query, businessID, row.Date, row.PredictedSales, row.LowerBound, row.UpperBound, *generatedAt)
	}
	return batch
}

// inTx runs fn in a transaction, committing only when fn succeeds
func (r *Repository) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// replace deletes every row of businessID in table, then runs batch
func (r *Repository) replace(ctx context.Context, tx pgx.Tx, table, businessID string, batch *pgx.Batch) error {
	if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE business_id = $1", tableName(r.schema, table)), businessID); err != nil {
		return fmt.Errorf("purge: %w", err)
	}

	if batch.Len() == 0 {
		return nil
	}
	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("upsert row %d: %w", i, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}
	return nil
}

// ListBusinesses returns every business with input or forecast rows
func (r *Repository) ListBusinesses(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT business_id FROM %s
		UNION
		SELECT business_id FROM %s
		ORDER BY business_id`,
		tableName(r.schema, inputTable), tableName(r.schema, forecastTable))

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list businesses: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list businesses: %w", err)
	}
	return ids, nil
}

// GetInputs returns a business' input rows ordered by date
func (r *Repository) GetInputs(ctx context.Context, businessID string) ([]contracts.InputRecord, error) {
	query := fmt.Sprintf(`
		SELECT business_id, date, sales
		FROM %s
		WHERE business_id = $1
		ORDER BY date`, tableName(r.schema, inputTable))

	rows, err := r.pool.Query(ctx, query, businessID)
	if err != nil {
		return nil, fmt.Errorf("get inputs for %s: %w", businessID, err)
	}
	defer rows.Close()

	var out []contracts.InputRecord
	for rows.Next() {
		var rec contracts.InputRecord
		if err := rows.Scan(&rec.BusinessID, &rec.Date, &rec.Sales); err != nil {
			return nil, fmt.Errorf("scan input row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get inputs for %s: %w", businessID, err)
	}
	return out, nil
}

// GetForecasts returns a business' forecast rows ordered by date
func (r *Repository) GetForecasts(ctx context.Context, businessID string) ([]contracts.ForecastRecord, error) {
	query := fmt.Sprintf(`
		SELECT business_id, date, predicted_sales, lower_bound, upper_bound, generated_at
		FROM %s
		WHERE business_id = $1
		ORDER BY date`, tableName(r.schema, forecastTable))

	rows, err := r.pool.Query(ctx, query, businessID)
	if err != nil {
		return nil, fmt.Errorf("get forecasts for %s: %w", businessID, err)
	}
	defer rows.Close()

	var out []contracts.ForecastRecord
	for rows.Next() {
		var rec contracts.ForecastRecord
		var generatedAt time.Time
		if err := rows.Scan(&rec.BusinessID, &rec.Date, &rec.PredictedSales,
			&rec.LowerBound, &rec.UpperBound, &generatedAt); err != nil {
			return nil, fmt.Errorf("scan forecast row: %w", err)
		}
		rec.GeneratedAt = &generatedAt
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get forecasts for %s: %w", businessID, err)
	}
	return out, nil
}
