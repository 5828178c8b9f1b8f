//go:build acceptance

package acceptance

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"groundtruth/internal/app"
	appstore "groundtruth/internal/app/store"
	"groundtruth/internal/platform/logger"
	"groundtruth/pkg/testutil/containers"
)

// TestApp is the application booted over a shared Postgres container, the
// same way an operator would run it, reachable for a real browser.
type TestApp struct {
	Server *httptest.Server
	URL    string
	Store  *appstore.Postgres
	App    *app.App
}

const (
	adminEmail    = "admin@groundtruth.dev"
	adminPassword = "admin-pass-1"
)

// NewTestApp applies the schema, seeds the admin identity and starts the
// application on an ephemeral port.
func NewTestApp(t *testing.T) *TestApp {
	t.Helper()
	ctx := context.Background()

	pg := containers.GetManager().GetPostgres(t)
	require.NoError(t, pg.ApplySchema(ctx, appstore.Schema))
	require.NoError(t, pg.TruncateTables(ctx, appstore.TableNames()...))

	st := appstore.NewPostgres(pg.DB)
	a, err := app.New(app.Config{
		JWTSecret:  "acceptance-secret",
		LoginLimit: 100,
	}, st, logger.Discard())
	require.NoError(t, err)

	require.NoError(t, a.SeedUsers(ctx, []app.SeedUser{
		{Name: "Acceptance Admin", Email: adminEmail, Password: adminPassword, Role: "admin"},
	}))

	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)

	return &TestApp{Server: srv, URL: srv.URL, Store: st, App: a}
}

// SeedCustomer inserts a customer row directly, bypassing the API; browser
// tests only care that it shows up on the page.
func (ta *TestApp) SeedCustomer(t *testing.T, name, email string) string {
	t.Helper()
	row, err := ta.Store.Insert(context.Background(), "customers", map[string]any{
		"name":   name,
		"email":  email,
		"status": "active",
	})
	require.NoError(t, err)
	id, _ := row["id"].(string)
	require.NotEmpty(t, id)
	return id
}
