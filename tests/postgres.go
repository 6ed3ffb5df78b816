package testutil

import (
	"context"
	"database/sql"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/trezcool/evidencehub/storage/database"
)

// PostgresDB starts a throwaway postgres container and migrates it up.
// Integration tests are skipped unless TEST_INTEGRATION is set.
func PostgresDB(t *testing.T) *sql.DB {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" || testing.Short() {
		t.Skip("skipping integration test: TEST_INTEGRATION is not set")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("evidencehub_test"),
		postgres.WithUsername("evidencehub"),
		postgres.WithPassword("evidencehub"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("postgres.Run(): %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("container.Terminate(): %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container.Host(): %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("container.MappedPort(): %v", err)
	}

	conf := NewConfig()
	conf.Database.Engine = "postgres"
	conf.Database.Host = host
	conf.Database.Port, _ = strconv.Atoi(port.Port())
	conf.Database.Name = "evidencehub_test"
	conf.Database.User = "evidencehub"
	conf.Database.Password = "evidencehub"
	conf.Database.DisableTLS = true

	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("database.Open(): %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err = database.Ping(pingCtx, db); err != nil {
		t.Fatalf("database.Ping(): %v", err)
	}
	if err = database.Migrate(db, "up"); err != nil {
		t.Fatalf("database.Migrate(): %v", err)
	}
	return db
}
