package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"kniti.io/focus-monitor/internal/snapshot"
)

const (
	activeRollQuery = `
	SELECT roll_id, roll_number, roll_name, revolution
	FROM roll_details
	WHERE roll_sts_id = 1
	LIMIT 1`

	activeCameraQuery = `
	SELECT cam_name
	FROM cam_details
	WHERE CAST(camsts_id AS INTEGER) = 1
	LIMIT 1`

	liveCamerasQuery = `
	SELECT cam_name
	FROM cam_details
	WHERE CAST(livecamsts_id AS INTEGER) = 1
	ORDER BY cam_name ASC`
)

// Reader maps the active rows of the line controller's tables into snapshots.
type Reader struct {
	db *DB
}

func NewReader(db *DB) *Reader { return &Reader{db: db} }

func (r *Reader) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.db.readTimeout <= 0 {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, r.db.readTimeout)
}

// ReadActiveRoll returns the active roll, or nil when no roll is active.
func (r *Reader) ReadActiveRoll(ctx context.Context) (*snapshot.Roll, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var (
		roll       snapshot.Roll
		number     sql.NullString
		name       sql.NullString
		revolution sql.NullInt64
	)

	err := r.db.conn.QueryRowContext(ctx, activeRollQuery).Scan(&roll.RollID, &number, &name, &revolution)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("%w: active roll: %w", ErrReadFailure, err)
	}

	roll.RollNumber = number.String
	roll.RollName = name.String
	roll.Revolution = revolution.Int64

	return &roll, nil
}

// ReadActiveCamera returns the active camera, or nil when no camera is active.
func (r *Reader) ReadActiveCamera(ctx context.Context) (*snapshot.Camera, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var cam snapshot.Camera

	err := r.db.conn.QueryRowContext(ctx, activeCameraQuery).Scan(&cam.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("%w: active camera: %w", ErrReadFailure, err)
	}

	return &cam, nil
}

// ReadLiveCameras returns the names of all cameras currently streaming, sorted by name.
func (r *Reader) ReadLiveCameras(ctx context.Context) ([]string, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.conn.QueryContext(ctx, liveCamerasQuery)
	if err != nil {
		return nil, fmt.Errorf("%w: live cameras: %w", ErrReadFailure, err)
	}
	defer rows.Close()

	var names []string

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("%w: live cameras: %w", ErrReadFailure, err)
		}

		names = append(names, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: live cameras: %w", ErrReadFailure, err)
	}

	return names, nil
}
