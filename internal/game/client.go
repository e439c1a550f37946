package game

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/danmuck/spacectl/internal/crds"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Observer receives one sample per HTTP round trip. status is the HTTP
// status code as text, or "error" when no response arrived.
type Observer func(endpoint, status string, elapsed time.Duration)

// DefaultMaxResponseBytes caps a response body read from the game API.
const DefaultMaxResponseBytes = 4 << 20

type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	Rate       float64 // requests per second; <= 0 disables limiting
	Burst      int
	HTTPClient *http.Client
	Observer   Observer

	// MaxResponseBytes <= 0 means DefaultMaxResponseBytes.
	MaxResponseBytes int64
}

// Client is the HTTP implementation of Service. All sessions derived from one
// Client share its rate limiter.
type Client struct {
	baseURL  string
	http     *http.Client
	limiter  *rate.Limiter
	observer Observer
	maxBody  int64
}

func NewClient(cfg ClientConfig) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("game: base url %q: %w", cfg.BaseURL, err)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	limit := rate.Inf
	burst := cfg.Burst
	if cfg.Rate > 0 {
		limit = rate.Limit(cfg.Rate)
		if burst <= 0 {
			burst = 1
		}
	}
	maxBody := cfg.MaxResponseBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxResponseBytes
	}
	return &Client{
		baseURL:  base,
		http:     httpClient,
		limiter:  rate.NewLimiter(limit, burst),
		observer: cfg.Observer,
		maxBody:  maxBody,
	}, nil
}

type registerRequest struct {
	Symbol  string       `json:"symbol"`
	Faction crds.Faction `json:"faction"`
}

func (c *Client) Register(ctx context.Context, symbol string, faction crds.Faction) (RegisterResult, error) {
	var out RegisterResult
	err := c.do(ctx, request{
		endpoint: "register",
		method:   http.MethodPost,
		path:     "/register",
		body:     registerRequest{Symbol: symbol, Faction: faction},
	}, &out, nil)
	if err != nil {
		return RegisterResult{}, err
	}
	if out.Token == "" {
		return RegisterResult{}, fmt.Errorf("game: register %s: empty token in response", symbol)
	}
	return out, nil
}

func (c *Client) Status(ctx context.Context) (ServerStatus, error) {
	// GET / is not wrapped in a data envelope.
	var out ServerStatus
	err := c.do(ctx, request{endpoint: "status", method: http.MethodGet, path: "/", raw: true}, &out, nil)
	return out, err
}

func (c *Client) Authenticate(token string) Session {
	return &session{client: c, token: token}
}

type session struct {
	client *Client
	token  string
}

func (s *session) GetAgent(ctx context.Context) (Agent, error) {
	var out Agent
	err := s.call(ctx, "agent", http.MethodGet, "/my/agent", nil, &out, nil)
	return out, err
}

func (s *session) ListShips(ctx context.Context, page, limit int) (ShipPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	var ships []Ship
	var meta Meta
	if err := s.call(ctx, "ships", http.MethodGet, "/my/ships?"+q.Encode(), nil, &ships, &meta); err != nil {
		return ShipPage{}, err
	}
	return ShipPage{Ships: ships, Meta: meta}, nil
}

func (s *session) GetShip(ctx context.Context, symbol string) (Ship, error) {
	var out Ship
	err := s.call(ctx, "ship", http.MethodGet, shipPath(symbol, ""), nil, &out, nil)
	return out, err
}

type navResponse struct {
	Nav Nav `json:"nav"`
}

func (s *session) OrbitShip(ctx context.Context, symbol string) (Nav, error) {
	var out navResponse
	err := s.call(ctx, "orbit", http.MethodPost, shipPath(symbol, "orbit"), nil, &out, nil)
	return out.Nav, err
}

func (s *session) DockShip(ctx context.Context, symbol string) (Nav, error) {
	var out navResponse
	err := s.call(ctx, "dock", http.MethodPost, shipPath(symbol, "dock"), nil, &out, nil)
	return out.Nav, err
}

type navigateRequest struct {
	WaypointSymbol string `json:"waypointSymbol"`
}

func (s *session) NavigateShip(ctx context.Context, symbol, destination string) (Nav, error) {
	var out navResponse
	err := s.call(ctx, "navigate", http.MethodPost, shipPath(symbol, "navigate"), navigateRequest{WaypointSymbol: destination}, &out, nil)
	return out.Nav, err
}

func (s *session) call(ctx context.Context, endpoint, method, path string, body, out any, meta *Meta) error {
	if s.token == "" {
		return ErrMissingToken
	}
	return s.client.do(ctx, request{endpoint: endpoint, method: method, path: path, token: s.token, body: body}, out, meta)
}

func shipPath(symbol, action string) string {
	p := "/my/ships/" + url.PathEscape(symbol)
	if action != "" {
		p += "/" + action
	}
	return p
}

type request struct {
	endpoint string
	method   string
	path     string
	token    string
	body     any
	raw      bool
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Meta  *Meta           `json:"meta"`
	Error *errorBody      `json:"error"`
}

type errorBody struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func (c *Client) do(ctx context.Context, r request, out any, meta *Meta) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("game: %s: rate limit wait: %w", r.endpoint, err)
	}

	var reader io.Reader
	if r.body != nil {
		payload, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("game: %s: encode request: %w", r.endpoint, err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, reader)
	if err != nil {
		return fmt.Errorf("game: %s: build request: %w", r.endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(r.endpoint, "error", time.Since(start))
		return fmt.Errorf("game: %s: %w", r.endpoint, err)
	}
	defer resp.Body.Close()
	c.observe(r.endpoint, strconv.Itoa(resp.StatusCode), time.Since(start))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return fmt.Errorf("game: %s: read response: %w", r.endpoint, err)
	}
	if int64(len(raw)) > c.maxBody {
		return fmt.Errorf("%w: %s exceeds %d bytes", ErrResponseTooLarge, r.endpoint, c.maxBody)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Endpoint: r.endpoint, Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var env envelope
		if json.Unmarshal(raw, &env) == nil && env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		log.Debug().
			Str("endpoint", r.endpoint).
			Int("status", resp.StatusCode).
			Int("code", apiErr.Code).
			Msg("game api error")
		return apiErr
	}

	if out == nil {
		return nil
	}
	if r.raw {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("game: %s: decode response: %w", r.endpoint, err)
		}
		return nil
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("game: %s: decode response: %w", r.endpoint, err)
	}
	if len(env.Data) == 0 {
		return fmt.Errorf("game: %s: response missing data", r.endpoint)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("game: %s: decode data: %w", r.endpoint, err)
	}
	if meta != nil && env.Meta != nil {
		*meta = *env.Meta
	}
	return nil
}

func (c *Client) observe(endpoint, status string, elapsed time.Duration) {
	if c.observer != nil {
		c.observer(endpoint, status, elapsed)
	}
}
