// Package dbtest provides a shared Postgres testcontainer for integration
// tests against internal/store, one fresh database per test for
// isolation.
//
// Grounded on test/util/database.go's getOrCreateSharedDatabase (shared
// container started once per package via sync.Once, CI_DATABASE_URL
// override) and SetupTestDatabase (per-test isolation + t.Cleanup drop).
// The ent-specific half of that file (entsql.OpenDB, entClient.Schema.
// Create) has no counterpart here: internal/store.Open already embeds
// and applies its own golang-migrate migrations, so a fresh per-test
// *database* (not a schema + ent client) is all a caller needs.
package dbtest

import (
	"context"
	"crypto/rand"
	stdsql "database/sql"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/nexuscore/nexus/internal/store"
)

var (
	sharedAdminDSN string
	containerOnce  sync.Once
	containerErr   error
)

// NewStore starts (or reuses) the shared container, creates a fresh
// database for this test, applies migrations via store.Open, and
// registers a t.Cleanup that closes the store and drops the database.
func NewStore(t *testing.T) *store.Store {
	t.Helper()

	adminDSN := getOrCreateSharedContainer(t)
	dbName := generateDatabaseName(t)

	admin, err := stdsql.Open("pgx", adminDSN)
	require.NoError(t, err)
	defer admin.Close()

	_, err = admin.ExecContext(context.Background(), fmt.Sprintf("CREATE DATABASE %s", dbName))
	require.NoError(t, err)

	t.Cleanup(func() {
		a, err := stdsql.Open("pgx", adminDSN)
		if err != nil {
			t.Logf("dbtest: reconnect for drop failed: %v", err)
			return
		}
		defer a.Close()
		if _, err := a.ExecContext(context.Background(), fmt.Sprintf("DROP DATABASE IF EXISTS %s WITH (FORCE)", dbName)); err != nil {
			t.Logf("dbtest: failed to drop database %s: %v", dbName, err)
		}
	})

	cfg := parseAdminDSN(t, adminDSN)
	cfg.Database = dbName

	st, err := store.Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(st.Close)

	return st
}

// getOrCreateSharedContainer returns an admin connection string to a
// shared postgres instance: CI_DATABASE_URL if set, otherwise a
// testcontainer started once for the whole test binary run.
func getOrCreateSharedContainer(t *testing.T) string {
	if ci := os.Getenv("CI_DATABASE_URL"); ci != "" {
		return ci
	}

	containerOnce.Do(func() {
		ctx := context.Background()
		t.Log("dbtest: starting shared postgres testcontainer")

		pgContainer, err := postgres.Run(ctx,
			"postgres:17-alpine",
			postgres.WithDatabase("nexus_test"),
			postgres.WithUsername("nexus_test"),
			postgres.WithPassword("nexus_test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
		if err != nil {
			containerErr = fmt.Errorf("start postgres container: %w", err)
			return
		}

		connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			containerErr = fmt.Errorf("get connection string: %w", err)
			return
		}
		sharedAdminDSN = connStr
	})

	require.NoError(t, containerErr, "dbtest: failed to set up shared container")
	return sharedAdminDSN
}

func generateDatabaseName(t *testing.T) string {
	testName := strings.ToLower(t.Name())
	testName = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, testName)
	if len(testName) > 40 {
		testName = testName[:40]
	}

	randomBytes := make([]byte, 4)
	_, err := rand.Read(randomBytes)
	require.NoError(t, err)

	return fmt.Sprintf("test_%s_%s", testName, hex.EncodeToString(randomBytes))
}

// parseAdminDSN pulls host/port/user/password/sslmode out of the
// postgres:// connection string testcontainers' postgres module returns,
// so NewStore can rebuild a store.Config pointed at a different database.
func parseAdminDSN(t *testing.T, dsn string) store.Config {
	t.Helper()
	u, err := url.Parse(dsn)
	require.NoError(t, err)

	host := u.Hostname()
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	password, _ := u.User.Password()

	return store.Config{
		Host:     host,
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		SSLMode:  u.Query().Get("sslmode"),
	}
}
