package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard/internal/auth"
	"taskboard/internal/board"
	"taskboard/internal/client"
	"taskboard/internal/config"
	"taskboard/internal/logger"
	"taskboard/internal/server"
	"taskboard/internal/tasks"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	db, err := server.OpenSQLite(":memory:")
	require.NoError(t, err)

	store, err := server.NewTaskStore(config.StoreConfig{Driver: "sqlite"}, db)
	require.NoError(t, err)

	authSvc, err := server.NewAuthService(config.AuthConfig{
		JWTSecret:  "test-secret",
		TokenTTL:   time.Hour,
		Issuer:     "taskboard-test",
		BcryptCost: 4,
	}, db)
	require.NoError(t, err)

	srv := httptest.NewServer(server.NewRouter(server.Deps{
		Tasks: tasks.NewService(store),
		Auth:  authSvc,
		Log:   logger.Discard(),
	}))
	t.Cleanup(srv.Close)
	return srv
}

func loggedIn(t *testing.T, srv *httptest.Server, email string) *client.Client {
	t.Helper()
	ctx := context.Background()

	c := client.New(srv.URL, "", 5*time.Second)
	_, err := c.Register(ctx, auth.RegisterRequest{Email: email, Password: "secret1"})
	require.NoError(t, err)
	_, err = c.Login(ctx, auth.LoginRequest{Email: email, Password: "secret1"})
	require.NoError(t, err)
	return c
}

func TestClient_Unauthorized(t *testing.T) {
	srv := newServer(t)
	c := client.New(srv.URL, "", 5*time.Second)

	_, err := c.List(context.Background())
	require.Error(t, err)
	assert.True(t, client.IsStatus(err, http.StatusUnauthorized))
	assert.Equal(t, "unauthorized", err.Error())
}

func TestClient_DuplicateRegistration(t *testing.T) {
	srv := newServer(t)
	loggedIn(t, srv, "alice@example.com")

	c := client.New(srv.URL, "", 5*time.Second)
	_, err := c.Register(context.Background(), auth.RegisterRequest{Email: "alice@example.com", Password: "secret1"})
	assert.True(t, client.IsStatus(err, http.StatusConflict))
	assert.Equal(t, "email already used", err.Error())
}

func TestClient_TaskLifecycle(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t)
	c := loggedIn(t, srv, "alice@example.com")

	list, err := c.List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	created, err := c.Create(ctx, "Buy milk")
	require.NoError(t, err)
	assert.False(t, created.Done)

	done := true
	patched, err := c.Patch(ctx, created.ID, tasks.PatchTaskRequest{Done: &done})
	require.NoError(t, err)
	assert.True(t, patched.Done)

	_, err = c.Create(ctx, " ")
	assert.True(t, client.IsStatus(err, http.StatusBadRequest))
	assert.Equal(t, "title required", err.Error())

	require.NoError(t, c.ClearCompleted(ctx))

	err = c.Delete(ctx, created.ID)
	assert.True(t, client.IsStatus(err, http.StatusNotFound))
}

func TestClient_OwnersIsolated(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t)
	alice := loggedIn(t, srv, "alice@example.com")
	bob := loggedIn(t, srv, "bob@example.com")

	created, err := alice.Create(ctx, "Alice only")
	require.NoError(t, err)

	list, err := bob.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	err = bob.Delete(ctx, created.ID)
	assert.True(t, client.IsStatus(err, http.StatusNotFound))
}

// Доска поверх настоящего клиента и сервера.
func TestBoardOverHTTP(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t)
	c := loggedIn(t, srv, "alice@example.com")

	b := board.New(c, board.Options{UndoDelay: time.Hour})
	require.NoError(t, b.Refresh(ctx))

	require.NoError(t, b.Add(ctx, "Buy milk"))
	require.NoError(t, b.Add(ctx, "Walk dog"))
	require.Len(t, b.Tasks(), 2)

	milk := b.View()[1]
	require.Equal(t, "Buy milk", milk.Title)
	require.NoError(t, b.Toggle(ctx, milk.ID))

	view := b.View()
	assert.Equal(t, "Walk dog", view[0].Title)
	assert.Equal(t, "Buy milk", view[1].Title)
	assert.Equal(t, board.Stats{Total: 2, Active: 1, Done: 1}, b.Stats())

	// Удаление с отменой не доходит до сервера.
	require.True(t, b.Delete(view[0].ID))
	require.True(t, b.Undo())
	remote, err := c.List(ctx)
	require.NoError(t, err)
	assert.Len(t, remote, 2)

	require.NoError(t, b.ClearCompleted(ctx, func(n int) bool { return n == 1 }))
	remote, err = c.List(ctx)
	require.NoError(t, err)
	require.Len(t, remote, 1)
	assert.Equal(t, "Walk dog", remote[0].Title)

	require.True(t, b.Delete(remote[0].ID))
	require.NoError(t, b.Flush(ctx))
	remote, err = c.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, remote)
}
