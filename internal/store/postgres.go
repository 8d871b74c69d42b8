// Package store implements the room document store against Postgres.
// The relay only ever reads a room's existence and rewrites its cached
// participant list; everything else in the rooms table belongs to the
// CRUD API.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/seenuaaa/casmi/internal/core"
	"github.com/seenuaaa/casmi/internal/domain"
)

type Repository struct {
	connection *sqlx.DB
}

func New(dsn string) (*Repository, error) {
	conn, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return &Repository{connection: conn}, nil
}

func (r *Repository) Close() {
	_ = r.connection.Close()
}

func (r *Repository) FetchRoom(ctx context.Context, roomID domain.RoomID) (*domain.RoomRecord, error) {
	query, args, err := sq.Select("id", "name", "updated_at").
		From("rooms").
		Where(sq.Eq{"id": string(roomID)}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build sql query: %w", err)
	}

	var record domain.RoomRecord
	err = r.connection.GetContext(ctx, &record, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// UpdateParticipants overwrites the room's cached participant list
// wholesale. No merging: the in-memory registry is ground truth and the
// stored list is informational only.
func (r *Repository) UpdateParticipants(
	ctx context.Context,
	roomID domain.RoomID,
	participants []domain.Participant,
	updatedAt time.Time,
) error {
	encoded, err := json.Marshal(participants)
	if err != nil {
		return fmt.Errorf("failed to encode participants: %w", err)
	}

	query, args, err := sq.Update("rooms").
		Set("participants", encoded).
		Set("updated_at", updatedAt).
		Where(sq.Eq{"id": string(roomID)}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build sql query: %w", err)
	}

	_, err = r.connection.ExecContext(ctx, query, args...)
	return err
}
