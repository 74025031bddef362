package gutendex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"bookshelf/internal/types"
)

const (
	DefaultBaseURL     = "https://gutendex.com/books/"
	DefaultMaxBodySize = 16 << 20
)

var errTooLarge = errors.New("response too large")

type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	// RPS <= 0 disables rate limiting.
	RPS        float64
	MaxRetries int
	// Backoff is the delay before the first retry, doubled on every next one.
	Backoff time.Duration
	// MaxBodySize <= 0 means DefaultMaxBodySize.
	MaxBodySize int64
}

type Client struct {
	client     *http.Client
	base       *url.URL
	userAgent  string
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
	maxBody    int64
	logger     *slog.Logger
}

func NewClient(cfg Config, l *slog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing gutendex base url: %w", err)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}

	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultMaxBodySize
	}

	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}

	return &Client{
		client:     &http.Client{Timeout: cfg.Timeout},
		base:       base,
		userAgent:  cfg.UserAgent,
		limiter:    rate.NewLimiter(limit, 1),
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
		maxBody:    cfg.MaxBodySize,
		logger:     l.With(slog.String("upstream", base.Host)),
	}, nil
}

func (c *Client) Search(ctx context.Context, term string, f Filters) (string, error) {
	q := url.Values{}
	if term = strings.TrimSpace(term); term != "" {
		q.Set("search", term)
	}

	if f.Language != "" {
		q.Set("languages", strings.ToLower(strings.ReplaceAll(f.Language, " ", "")))
	}

	if f.Page > 1 {
		q.Set("page", strconv.Itoa(f.Page))
	}

	u := *c.base
	u.RawQuery = q.Encode()

	body, err := c.get(ctx, &u)
	if err != nil {
		return "", fmt.Errorf("%w: searching %q: %w", types.ErrUpstream, term, err)
	}

	return body, nil
}

func (c *Client) GetBook(ctx context.Context, id int64) (string, error) {
	u := c.base.ResolveReference(&url.URL{Path: strconv.FormatInt(id, 10) + "/"})

	body, err := c.get(ctx, u)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return "", fmt.Errorf("%w: book %d", types.ErrNotFound, id)
		}

		return "", fmt.Errorf("%w: fetching book %d: %w", types.ErrUpstream, id, err)
	}

	return body, nil
}

// Ping checks that the API answers at all.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Search(ctx, "", Filters{})
	return err
}

func (c *Client) get(ctx context.Context, u *url.URL) (string, error) {
	l := c.logger.With(slog.String("url", u.String()))

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff << (attempt - 1)
			l.DebugContext(ctx, "Retrying in "+delay.String()+" after: "+lastErr.Error())

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}

		body, err := c.fetch(ctx, u)
		if err == nil {
			return body, nil
		}

		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		var se *StatusError
		if errors.As(err, &se) && !se.Temporary() || errors.Is(err, errTooLarge) {
			return "", err
		}

		l.WarnContext(ctx, "Request to gutendex failed: "+err.Error())
		lastErr = err
	}

	return "", lastErr
}

func (c *Client) fetch(ctx context.Context, u *url.URL) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}

	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return "", err
	}

	var bs []byte
	func() {
		defer res.Body.Close()
		bs, err = io.ReadAll(io.LimitReader(res.Body, c.maxBody+1))
	}()

	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return "", &StatusError{Code: res.StatusCode, Body: string(bs)}
	}

	if int64(len(bs)) > c.maxBody {
		return "", fmt.Errorf("%w: more than %d bytes", errTooLarge, c.maxBody)
	}

	return string(bs), nil
}
