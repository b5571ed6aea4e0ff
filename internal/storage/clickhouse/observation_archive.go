package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/armpit-symphony/pump-me-fun/internal/domain"
	"github.com/armpit-symphony/pump-me-fun/internal/observability"
	"github.com/armpit-symphony/pump-me-fun/internal/storage"
)

// ObservationArchive implements storage.ObservationArchive on ClickHouse.
// Observations land in token_observations, alerts in token_alerts; both
// tables are append-only.
type ObservationArchive struct {
	conn *Conn
}

// NewObservationArchive creates an archive backed by the given connection.
// The archive owns the connection and closes it on Close.
func NewObservationArchive(conn *Conn) *ObservationArchive {
	return &ObservationArchive{conn: conn}
}

var _ storage.ObservationArchive = (*ObservationArchive)(nil)

// recordQuery reports query timing and outcome.
func recordQuery(operation string, start time.Time, errp *error) {
	observability.RecordDBQuery("clickhouse", operation, time.Since(start).Seconds(), *errp)
}

// AppendObservations adds a batch of observations in one insert.
func (a *ObservationArchive) AppendObservations(ctx context.Context, observations []*domain.TokenObservation) (err error) {
	if len(observations) == 0 {
		return nil
	}
	defer recordQuery("append_observations", time.Now(), &err)

	batch, err := a.conn.PrepareBatch(ctx, `
		INSERT INTO token_observations (
			address, symbol, name, liquidity_usd, price_usd, txn_count,
			age_hours, age_clamped, observed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare observations batch: %w", err)
	}

	for _, obs := range observations {
		if obs == nil || obs.Address == "" {
			return fmt.Errorf("%w: observation without address", storage.ErrInvalidInput)
		}
		if err := batch.Append(
			obs.Address,
			obs.Symbol,
			obs.Name,
			obs.LiquidityUSD,
			obs.PriceUSD,
			obs.TxnCount,
			obs.AgeHours,
			obs.AgeClamped,
			obs.ObservedAt,
		); err != nil {
			return fmt.Errorf("append observation to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send observations batch: %w", err)
	}

	return nil
}

// AppendAlert adds one emitted alert.
func (a *ObservationArchive) AppendAlert(ctx context.Context, alert *domain.AlertRecord) (err error) {
	if alert == nil || alert.Address == "" {
		return fmt.Errorf("%w: alert without address", storage.ErrInvalidInput)
	}
	defer recordQuery("append_alert", time.Now(), &err)

	batch, err := a.conn.PrepareBatch(ctx, `
		INSERT INTO token_alerts (
			address, symbol, kind, indicators, liquidity_usd, age_hours, emitted_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare alerts batch: %w", err)
	}

	if err := batch.Append(
		alert.Address,
		alert.Symbol,
		string(alert.Kind),
		alert.Indicators,
		alert.LiquidityUSD,
		alert.AgeHours,
		alert.EmittedAt,
	); err != nil {
		return fmt.Errorf("append alert to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send alert: %w", err)
	}

	return nil
}

// GetObservationsByTimeRange retrieves observations with observed_at in
// [from, to], ordered by observed_at then address.
func (a *ObservationArchive) GetObservationsByTimeRange(ctx context.Context, from, to time.Time) (observations []*domain.TokenObservation, err error) {
	defer recordQuery("get_observations", time.Now(), &err)

	query := `
		SELECT address, symbol, name, liquidity_usd, price_usd, txn_count,
		       age_hours, age_clamped, observed_at
		FROM token_observations
		WHERE observed_at >= ? AND observed_at <= ?
		ORDER BY observed_at ASC, address ASC
	`

	rows, err := a.conn.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// Close closes the underlying connection.
func (a *ObservationArchive) Close() error {
	return a.conn.Close()
}

// chRows is the minimal row iterator surface shared by query results.
type chRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanObservations(rows chRows) ([]*domain.TokenObservation, error) {
	var out []*domain.TokenObservation
	for rows.Next() {
		var o domain.TokenObservation
		if err := rows.Scan(
			&o.Address,
			&o.Symbol,
			&o.Name,
			&o.LiquidityUSD,
			&o.PriceUSD,
			&o.TxnCount,
			&o.AgeHours,
			&o.AgeClamped,
			&o.ObservedAt,
		); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		o.ObservedAt = o.ObservedAt.UTC()
		out = append(out, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observations: %w", err)
	}
	return out, nil
}
