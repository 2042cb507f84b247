package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/squadra-app/livetrack/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Append(ctx context.Context, rideID string, ev models.ActivityEvent) error {
	var checkpoint []byte
	if ev.Checkpoint != nil {
		checkpoint, _ = json.Marshal(ev.Checkpoint)
	}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO activities(id, ride_id, activity_type, user_id, user_name, message, created_at, checkpoint, latitude, longitude)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		ev.ID, rideID, string(ev.ActivityType), ev.UserID, ev.UserName, ev.Message, ev.CreatedAt, checkpoint, ev.Latitude, ev.Longitude)
	return err
}

func (p *PostgresStore) List(ctx context.Context, rideID string, before string, limit int) ([]models.ActivityEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, activity_type, user_id, user_name, message, created_at, checkpoint, latitude, longitude
		  FROM activities WHERE ride_id = $1`
	args := []interface{}{rideID}
	if before != "" {
		query += ` AND created_at < (SELECT created_at FROM activities WHERE id = $2)`
		args = append(args, before)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ActivityEvent
	for rows.Next() {
		var ev models.ActivityEvent
		var at string
		var checkpoint []byte
		if err := rows.Scan(&ev.ID, &at, &ev.UserID, &ev.UserName, &ev.Message, &ev.CreatedAt, &checkpoint, &ev.Latitude, &ev.Longitude); err != nil {
			return nil, err
		}
		ev.ActivityType = models.ActivityType(at)
		if len(checkpoint) > 0 {
			var cp models.Checkpoint
			if err := json.Unmarshal(checkpoint, &cp); err == nil {
				ev.Checkpoint = &cp
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
