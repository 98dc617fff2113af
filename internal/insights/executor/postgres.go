package executor

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/weni-ai/insights/internal/querygen"
)

// SQLExecutor runs generated queries. It does not own connections or transactions.
type SQLExecutor interface {
	Scalar(ctx context.Context, query *querygen.Query) (interface{}, error)
	Rows(ctx context.Context, query *querygen.Query) ([]map[string]interface{}, error)
}

type PostgresExecutor struct {
	db *pgxpool.Pool
}

func NewPostgresExecutor(db *pgxpool.Pool) *PostgresExecutor {
	return &PostgresExecutor{db: db}
}

// Scalar returns the single value of a single row query, e.g. an aggregate. SQL NULL is nil.
func (e *PostgresExecutor) Scalar(ctx context.Context, query *querygen.Query) (interface{}, error) {
	log.Debugf("Running scalar query: %s", query.Interpolated)
	var value interface{}
	err := e.db.QueryRow(ctx, query.Sql, query.Args...).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "running scalar query")
	}
	return normalise(value), nil
}

func (e *PostgresExecutor) Rows(ctx context.Context, query *querygen.Query) ([]map[string]interface{}, error) {
	log.Debugf("Running query: %s", query.Interpolated)
	rows, err := e.db.Query(ctx, query.Sql, query.Args...)
	if err != nil {
		return nil, errors.Wrap(err, "running query")
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	result := []map[string]interface{}{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, errors.WithStack(err)
		}
		row := make(map[string]interface{}, len(values))
		for i, value := range values {
			row[string(fields[i].Name)] = normalise(value)
		}
		result = append(result, row)
	}
	return result, errors.WithStack(rows.Err())
}

// normalise turns driver specific values into ones that encode cleanly to JSON.
func normalise(value interface{}) interface{} {
	switch v := value.(type) {
	case pgtype.Numeric:
		var f float64
		if err := v.AssignTo(&f); err != nil {
			log.WithError(err).Warn("Could not convert numeric result")
			return nil
		}
		return f
	case [16]byte:
		return uuid.UUID(v).String()
	default:
		return value
	}
}
