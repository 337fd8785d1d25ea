package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// fakeAPI is a minimal server with one protected route.  Login hands out
// "t1"; a refresh hands out "t2".  Only the token in valid is accepted.
type fakeAPI struct {
	mu        sync.Mutex
	valid     string
	failNext  bool
	refreshes atomic.Int32
	*httptest.Server
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "rt", Value: "refresh-1", Path: "/", HttpOnly: true})
		f.setValid("t1")
		writeJSON(w, http.StatusOK, map[string]string{"accessToken": "t1"})
	})
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		f.refreshes.Add(1)
		// hold the refresh open so concurrent 401s pile up behind it
		time.Sleep(50 * time.Millisecond)
		f.mu.Lock()
		fail := f.failNext
		f.mu.Unlock()
		if _, err := r.Cookie("rt"); err != nil || fail {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "Plan expired"})
			return
		}
		f.setValid("t2")
		writeJSON(w, http.StatusOK, map[string]string{"accessToken": "t2"})
	})
	mux.HandleFunc("/api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})
	mux.HandleFunc("/api/user/plan", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		ok := f.valid != "" && r.Header.Get("Authorization") == "Bearer "+f.valid
		f.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			return
		}
		writeJSON(w, http.StatusOK, Plan{EnrollDate: "2024-01-01", StartDate: "2024-01-02", DietDays: 21, DayIndex: 3, TZ: "Asia/Jerusalem"})
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *fakeAPI) setValid(tok string) {
	f.mu.Lock()
	f.valid = tok
	f.mu.Unlock()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newClient(t *testing.T, api *fakeAPI) *Client {
	t.Helper()
	c, err := New(api.URL)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestLoginThenPlan(t *testing.T) {
	api := newFakeAPI(t)
	c := newClient(t, api)
	ctx := context.Background()

	require.NoError(t, c.Login(ctx, "dana@example.com", "secret123"))
	p, err := c.Plan(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, p.DayIndex)
	assert.Nil(t, p.EndDate)
	assert.Zero(t, api.refreshes.Load())
}

func TestConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	api := newFakeAPI(t)
	c := newClient(t, api)
	ctx := context.Background()
	require.NoError(t, c.Login(ctx, "dana@example.com", "secret123"))

	// the access token dies server side
	api.setValid("rotated")

	const callers = 10
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < callers; i++ {
		g.Go(func() error {
			_, err := c.Plan(gctx)
			return err
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), api.refreshes.Load())

	tok, err := c.AccessToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "t2", tok)
}

func TestRefreshFailureRejectsEveryCaller(t *testing.T) {
	api := newFakeAPI(t)
	c := newClient(t, api)
	ctx := context.Background()

	expired := make(chan error, 4)
	c.OnSessionExpired = func(err error) { expired <- err }

	require.NoError(t, c.Login(ctx, "dana@example.com", "secret123"))
	api.setValid("rotated")
	api.mu.Lock()
	api.failNext = true
	api.mu.Unlock()

	const callers = 5
	errs := make([]error, callers)
	var g errgroup.Group
	for i := 0; i < callers; i++ {
		i := i
		g.Go(func() error {
			_, errs[i] = c.Plan(ctx)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for _, err := range errs {
		assert.ErrorIs(t, err, ErrSessionExpired)
	}
	assert.Equal(t, int32(1), api.refreshes.Load())

	select {
	case err := <-expired:
		assert.ErrorIs(t, err, ErrSessionExpired)
	case <-time.After(2 * time.Second):
		t.Fatal("OnSessionExpired was not called")
	}

	tok, err := c.AccessToken(ctx)
	require.NoError(t, err)
	assert.Empty(t, tok)

	// later calls fail fast without another refresh
	_, err = c.Plan(ctx)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, int32(1), api.refreshes.Load())

	// a new login revives the client
	require.NoError(t, c.Login(ctx, "dana@example.com", "secret123"))
	_, err = c.Plan(ctx)
	assert.NoError(t, err)
}

func TestLogoutForgetsSession(t *testing.T) {
	api := newFakeAPI(t)
	c := newClient(t, api)
	ctx := context.Background()

	require.NoError(t, c.Login(ctx, "dana@example.com", "secret123"))
	require.NoError(t, c.Logout(ctx))

	tok, err := c.AccessToken(ctx)
	require.NoError(t, err)
	assert.Empty(t, tok)

	// no cookie left, so the refresh attempt is refused
	_, err = c.Plan(ctx)
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestClosedClient(t *testing.T) {
	api := newFakeAPI(t)
	c, err := New(api.URL)
	require.NoError(t, err)
	c.Close()
	c.Close()

	_, err = c.Plan(context.Background())
	assert.ErrorIs(t, err, errClosed)
}
