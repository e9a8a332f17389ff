package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"bikemetro/internal/session"
	"bikemetro/internal/status"
	"bikemetro/models"
	"bikemetro/monitoring"
	"bikemetro/utils"

	"golang.org/x/sync/singleflight"
)

// errServerStatus marks a 5xx reply so the breaker counts it as a failure.
var errServerStatus = errors.New("api: server error status")

type Client struct {
	// baseURL is the API root, including the /api prefix.
	baseURL string

	// store holds the access and refresh tokens.
	store session.Store

	// breaker fails requests fast while the backend is unreachable.
	breaker *utils.CircuitBreaker

	// refreshGroup collapses concurrent refreshes into one call.
	refreshGroup singleflight.Group

	// mu guards onSessionExpired.
	mu               sync.Mutex
	onSessionExpired func()

	// timeout bounds the shared refresh, which outlives its callers' contexts.
	timeout time.Duration

	// hc is the http client.
	hc *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default http client. Its timeout is kept.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

func WithBreaker(cb *utils.CircuitBreaker) Option {
	return func(c *Client) { c.breaker = cb }
}

// NewClient creates a client for baseURL with a fixed per-request timeout.
func NewClient(baseURL string, timeout time.Duration, store session.Store, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		store:   store,
		timeout: timeout,

		// set http client with timeout.
		hc: &http.Client{
			Timeout: timeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = utils.NewCircuitBreaker("api", 5, 30*time.Second)
	}
	return c
}

// OnSessionExpired registers fn to run after a failed refresh cleared the session.
func (c *Client) OnSessionExpired(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSessionExpired = fn
}

func (c *Client) sessionExpired() {
	c.mu.Lock()
	fn := c.onSessionExpired
	c.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// request describes one logical call. Authenticated calls may be replayed
// once after a token refresh.
type request struct {
	endpoint string
	method   string
	path     string
	body     any
	auth     bool
}

type reply struct {
	code int
	body []byte
}

// do performs the call and decodes a 2xx body into out. Every error it
// returns is a *status.Failure.
func (c *Client) do(ctx context.Context, r request, out any) error {
	start := time.Now()
	err := c.doWithRefresh(ctx, r, out)

	outcome := "ok"
	if err != nil {
		outcome = status.KindOf(err).String()
	}
	monitoring.TrackRequest(r.endpoint, outcome, time.Since(start))
	slog.Debug("api request", "endpoint", r.endpoint, "method", r.method, "path", r.path, "outcome", outcome, "duration", time.Since(start))

	return err
}

func (c *Client) doWithRefresh(ctx context.Context, r request, out any) error {
	var payload []byte
	if r.body != nil {
		raw, err := json.Marshal(r.body)
		if err != nil {
			return status.Unexpected(0, fmt.Errorf("%s: json.Marshal: %w", r.endpoint, err))
		}
		payload = raw
	}

	token := ""
	if r.auth {
		sess, err := c.store.Load(ctx)
		if err != nil {
			slog.Warn("api: could not read session", "error", err)
		}
		token = sess.AccessToken
	}

	rep, err := c.send(ctx, r, payload, token)
	if err != nil {
		return err
	}

	// One refresh and one replay per original request.
	if rep.code == http.StatusUnauthorized && r.auth {
		newToken, rerr := c.Refresh(ctx)
		if rerr != nil {
			// No verdict on the token; the session was kept.
			if k := status.KindOf(rerr); k == status.KindTransport || k == status.KindServer {
				return rerr
			}
			return status.FromResponse(rep.code, rep.body)
		}
		if rep, err = c.send(ctx, r, payload, newToken); err != nil {
			return err
		}
	}

	if rep.code < 200 || rep.code >= 300 {
		return status.FromResponse(rep.code, rep.body)
	}

	if out == nil || len(bytes.TrimSpace(rep.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(rep.body, out); err != nil {
		return status.Unexpected(rep.code, fmt.Errorf("%s: json.Unmarshal: %w", r.endpoint, err))
	}
	return nil
}

// send performs a single HTTP exchange through the breaker.
func (c *Client) send(ctx context.Context, r request, payload []byte, token string) (reply, error) {
	var rep reply

	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, body)
		if err != nil {
			return fmt.Errorf("%s: http.NewReq: %w", r.endpoint, err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Request-ID", utils.RequestID())
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.hc.Do(req)
		if err != nil {
			return fmt.Errorf("%s: http.Do: %w", r.endpoint, err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%s: io.ReadAll: %w", r.endpoint, err)
		}

		rep = reply{code: resp.StatusCode, body: data}
		if resp.StatusCode >= http.StatusInternalServerError {
			return errServerStatus
		}
		return nil
	})

	switch {
	case err == nil, errors.Is(err, errServerStatus):
		return rep, nil
	default:
		return rep, status.FromTransport(err)
	}
}

// Refresh exchanges the stored refresh token for a new access token.
// Concurrent callers share a single request, which runs detached from any
// one caller's context; a caller whose ctx ends stops waiting without
// affecting the others. The session is cleared, and the session-expired
// hook run once, only when the server rejects the refresh token.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	ch := c.refreshGroup.DoChan("refresh", func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		token, err := c.refresh(rctx)
		if err != nil {
			monitoring.TrackRefresh("failure")
			if !refreshRejected(err) {
				slog.Warn("token refresh failed, keeping session", "error", err)
				return "", err
			}
			slog.Info("refresh token rejected, clearing session", "error", err)
			if cerr := c.store.Clear(rctx); cerr != nil {
				slog.Warn("api: could not clear session", "error", cerr)
			}
			c.sessionExpired()
			return "", err
		}
		monitoring.TrackRefresh("success")
		return token, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", status.FromTransport(ctx.Err())
	}
}

// refreshRejected reports whether err means the refresh token is no good,
// as opposed to the refresh not getting an answer.
func refreshRejected(err error) bool {
	if errors.Is(err, status.ErrNoRefreshToken) {
		return true
	}
	switch status.KindOf(err) {
	case status.KindAuthentication, status.KindValidation:
		return true
	}
	return false
}

func (c *Client) refresh(ctx context.Context) (string, error) {
	refreshToken, err := c.store.RefreshToken(ctx)
	if err != nil {
		return "", fmt.Errorf("refresh: %w", err)
	}
	if refreshToken == "" {
		return "", status.ErrNoRefreshToken
	}

	var tokens models.Tokens
	err = c.do(ctx, request{
		endpoint: "auth_refresh",
		method:   http.MethodPost,
		path:     "/auth/refresh/",
		body:     models.RefreshRequest{Refresh: refreshToken},
	}, &tokens)
	if err != nil {
		return "", err
	}
	if tokens.Access == "" {
		return "", status.Unexpected(http.StatusOK, errors.New("refresh: empty access token"))
	}

	if tokens.Refresh == "" {
		err = c.store.SetAccessToken(ctx, tokens.Access)
	} else {
		// Rotated refresh token.
		var sess session.Session
		if sess, err = c.store.Load(ctx); err == nil {
			sess.AccessToken, sess.RefreshToken = tokens.Access, tokens.Refresh
			err = c.store.Save(ctx, sess)
		}
	}
	if err != nil {
		return "", fmt.Errorf("refresh: %w", err)
	}
	return tokens.Access, nil
}

// list accepts either a bare JSON array or a paginated {"results": [...]} body.
type list[T any] []T

func (l *list[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var page struct {
			Results []T `json:"results"`
		}
		if err := json.Unmarshal(trimmed, &page); err != nil {
			return err
		}
		*l = page.Results
		return nil
	}

	var items []T
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return err
	}
	*l = items
	return nil
}
