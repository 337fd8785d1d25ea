package client

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
)

// Commands understood by the coordinator goroutine.
type (
	getToken struct{ reply chan string }
	setToken struct{ token string }

	// refreshReq asks for a token newer than stale.
	refreshReq struct {
		stale string
		reply chan refreshResult
	}
)

type refreshResult struct {
	token string
	err   error
}

var errClosed = errors.New("client: closed")

// command hands cmd to the coordinator.
func (c *Client) command(ctx context.Context, cmd any) error {
	select {
	case c.cmds <- cmd:
		return nil
	case <-c.done:
		return errClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// refreshAfter returns a token newer than stale, refreshing at most once for
// all callers that hold the same stale token.
func (c *Client) refreshAfter(ctx context.Context, stale string) (string, error) {
	reply := make(chan refreshResult, 1)
	if err := c.command(ctx, refreshReq{stale: stale, reply: reply}); err != nil {
		return "", err
	}
	select {
	case r := <-reply:
		return r.token, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// coordinate owns the session state.  Nothing else reads or writes token,
// expired, inflight or waiters.
func (c *Client) coordinate() {
	defer c.wg.Done()

	var (
		token    string
		expired  bool
		inflight bool
		waiters  []chan refreshResult
	)
	results := make(chan refreshResult, 1)

	for {
		select {
		case <-c.done:
			for _, w := range waiters {
				w <- refreshResult{err: errClosed}
			}
			return

		case cmd := <-c.cmds:
			switch m := cmd.(type) {
			case getToken:
				m.reply <- token
			case setToken:
				token, expired = m.token, false
			case refreshReq:
				switch {
				case expired:
					m.reply <- refreshResult{err: ErrSessionExpired}
				case m.stale != token:
					// someone already refreshed past this token
					m.reply <- refreshResult{token: token}
				default:
					waiters = append(waiters, m.reply)
					if !inflight {
						inflight = true
						go func() { results <- c.refresh() }()
					}
				}
			}

		case r := <-results:
			inflight = false
			if r.err != nil {
				token, expired = "", true
				c.jar.purge()
				r.err = errors.Wrap(ErrSessionExpired, r.err.Error())
			} else {
				token = r.token
			}
			for _, w := range waiters {
				w <- r
			}
			waiters = nil
			if r.err != nil && c.OnSessionExpired != nil {
				go c.OnSessionExpired(r.err)
			}
		}
	}
}

// refresh exchanges the refresh cookie for a new access token.
func (c *Client) refresh() refreshResult {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-c.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	var out loginResp
	if err := c.send(ctx, http.MethodPost, "/api/auth/refresh", "", nil, &out); err != nil {
		return refreshResult{err: err}
	}
	if out.AccessToken == "" {
		return refreshResult{err: errors.New("refresh returned no token")}
	}
	return refreshResult{token: out.AccessToken}
}
