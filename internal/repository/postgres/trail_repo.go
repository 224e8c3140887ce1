package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xela07ax/payops-agent-gateway/internal/audit"

	_ "github.com/jackc/pgx/v5/stdlib" // Драйвер Postgres
)

// TrailRepo — персистентный сток следа расследований.
// Пишется только батчами (см. audit.Trail), построчных вставок нет.
type TrailRepo struct {
	db *sql.DB
}

func NewTrailRepo(connString string) (*TrailRepo, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	return &TrailRepo{db: db}, nil
}

// Ping — проверка соединения на старте (в main падение тут фатально)
func (r *TrailRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *TrailRepo) Close() error {
	return r.db.Close()
}

func (r *TrailRepo) WriteBatch(ctx context.Context, events []audit.Event) error {
	if len(events) == 0 {
		return nil
	}

	// Количество колонок в таблице investigation_trail
	numFields := 10
	placeholderStr := ""
	vals := make([]interface{}, 0, len(events)*numFields)

	// Динамически строим запрос для пакетной вставки
	for i, e := range events {
		p := i * numFields
		placeholderStr += fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d),",
			p+1, p+2, p+3, p+4, p+5, p+6, p+7, p+8, p+9, p+10)

		params, _ := json.Marshal(e.Params)
		result, _ := json.Marshal(e.Result)

		vals = append(vals,
			e.ID, e.TraceID, e.ThreadID, e.Op,
			params, e.Status, result, e.Error, e.DurationMs, e.Timestamp,
		)
	}

	// Убираем лишнюю запятую в конце
	query := fmt.Sprintf(
		"INSERT INTO investigation_trail (id, trace_id, thread_id, op, params, status, result, error, duration_ms, timestamp) VALUES %s",
		strings.TrimSuffix(placeholderStr, ","),
	)

	_, err := r.db.ExecContext(ctx, query, vals...)
	return err
}
