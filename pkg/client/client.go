// Package client is a Go client for the smartplate API.  It keeps the
// refresh cookie in a cookie jar and the access token in memory, and
// transparently refreshes the access token when a call is rejected with 401.
//
// Concurrent calls that hit 401 together share one refresh: a single
// coordinator goroutine owns the token, the list of waiting callers and the
// in-flight flag.  When the refresh fails every waiter gets the error, the
// session is purged and OnSessionExpired fires.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ErrSessionExpired is returned once the session could not be refreshed.
// The caller has to log in again.
var ErrSessionExpired = errors.New("client: session expired")

// APIError is a non-2xx answer of the API.
type APIError struct {
	Status  int
	Message string `json:"error"`
	Code    string `json:"code"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

// Plan mirrors the plan window returned by GET /api/user/plan.
type Plan struct {
	EnrollDate string  `json:"enrollDate"`
	StartDate  string  `json:"startDate"`
	EndDate    *string `json:"endDate"`
	DietDays   int     `json:"dietDays"`
	DayIndex   int     `json:"dayIndex"`
	Expired    bool    `json:"expired"`
	TZ         string  `json:"tz"`
}

// Client talks to one API base URL.  Create it with New and release it with
// Close.
type Client struct {
	BaseURL string
	// OnSessionExpired is called after a failed refresh purged the session.
	OnSessionExpired func(err error)

	http *http.Client
	jar  *purgeableJar

	cmds chan any
	done chan struct{}
	wg   sync.WaitGroup
	stop sync.Once
}

// New returns a client for baseURL, e.g. "https://api.example.com".
func New(baseURL string) (*Client, error) {
	jar, err := newPurgeableJar()
	if err != nil {
		return nil, err
	}
	c := &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Jar: jar, Timeout: 30 * time.Second},
		jar:     jar,
		cmds:    make(chan any),
		done:    make(chan struct{}),
	}
	c.wg.Add(1)
	go c.coordinate()
	return c, nil
}

// Close stops the coordinator.  Calls made afterwards fail.
func (c *Client) Close() {
	c.stop.Do(func() { close(c.done) })
	c.wg.Wait()
}

type loginResp struct {
	AccessToken string `json:"accessToken"`
}

// Login signs a client account in.
func (c *Client) Login(ctx context.Context, email, password string) error {
	return c.login(ctx, "/api/auth/login", email, password)
}

// AdminLogin signs the coach in.
func (c *Client) AdminLogin(ctx context.Context, email, password string) error {
	return c.login(ctx, "/api/admin/login", email, password)
}

func (c *Client) login(ctx context.Context, path, email, password string) error {
	var out loginResp
	if err := c.send(ctx, http.MethodPost, path, "", map[string]string{"email": email, "password": password}, &out); err != nil {
		return err
	}
	return c.command(ctx, setToken{token: out.AccessToken})
}

// Logout revokes the refresh cookie on the server and forgets the session.
func (c *Client) Logout(ctx context.Context) error {
	err := c.send(ctx, http.MethodPost, "/api/auth/logout", "", nil, nil)
	c.jar.purge()
	if cerr := c.command(ctx, setToken{}); err == nil {
		err = cerr
	}
	return err
}

// Plan fetches the caller's plan window.
func (c *Client) Plan(ctx context.Context) (Plan, error) {
	var p Plan
	err := c.Do(ctx, http.MethodGet, "/api/user/plan", nil, &p)
	return p, err
}

// AccessToken returns the current access token, "" when signed out.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	reply := make(chan string, 1)
	if err := c.command(ctx, getToken{reply: reply}); err != nil {
		return "", err
	}
	select {
	case t := <-reply:
		return t, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Do sends an authenticated JSON request and decodes the answer into out
// when out is non-nil.  A 401 triggers one shared refresh and one retry.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	tok, err := c.AccessToken(ctx)
	if err != nil {
		return err
	}
	err = c.send(ctx, method, path, tok, body, out)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		return err
	}
	fresh, err := c.refreshAfter(ctx, tok)
	if err != nil {
		return err
	}
	return c.send(ctx, method, path, fresh, body, out)
}

// send performs one HTTP exchange.
func (c *Client) send(ctx context.Context, method, path, token string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return apiErr
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return errors.Wrap(json.NewDecoder(resp.Body).Decode(out), "decode response")
}

// purgeableJar is a cookie jar that can be emptied while requests run.
type purgeableJar struct {
	mu  sync.RWMutex
	jar *cookiejar.Jar
}

func newPurgeableJar() (*purgeableJar, error) {
	j, err := cookiejar.New(nil)
	if err != nil {
		return nil, errors.Wrap(err, "cookie jar")
	}
	return &purgeableJar{jar: j}, nil
}

func (p *purgeableJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	p.jar.SetCookies(u, cookies)
}

func (p *purgeableJar) Cookies(u *url.URL) []*http.Cookie {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.jar.Cookies(u)
}

func (p *purgeableJar) purge() {
	j, _ := cookiejar.New(nil)
	p.mu.Lock()
	p.jar = j
	p.mu.Unlock()
}
