//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"kniti.io/focus-monitor/internal/snapshot"
)

func setupPostgres(t *testing.T) *DB {
	t.Helper()

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("knitting"),
		postgres.WithUsername("knitting"),
		postgres.WithPassword("knitting_test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := Open(ctx, Config{Type: TypePostgres, DSN: dsn, ReadTimeout: 5 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.EnsureSchema(ctx))

	return db
}

func TestPostgres_ReadActiveEntities(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()
	r := NewReader(db)

	roll, err := r.ReadActiveRoll(ctx)
	require.NoError(t, err)
	require.Nil(t, roll)

	_, err = db.Conn().ExecContext(ctx,
		`INSERT INTO roll_details (roll_id, roll_number, roll_name, revolution, roll_sts_id) VALUES ($1, $2, $3, $4, 1)`,
		5, "R5", "fifth", 100)
	require.NoError(t, err)

	_, err = db.Conn().ExecContext(ctx,
		`INSERT INTO cam_details (cam_name, camsts_id, livecamsts_id) VALUES ('greencam1', '1', '1'), ('greencam2', '0', '1')`)
	require.NoError(t, err)

	roll, err = r.ReadActiveRoll(ctx)
	require.NoError(t, err)
	require.Equal(t, &snapshot.Roll{RollID: 5, RollNumber: "R5", RollName: "fifth", Revolution: 100}, roll)

	cam, err := r.ReadActiveCamera(ctx)
	require.NoError(t, err)
	require.Equal(t, "greencam1", cam.Name)

	live, err := r.ReadLiveCameras(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"greencam1", "greencam2"}, live)
}
