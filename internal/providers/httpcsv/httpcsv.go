package httpcsv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"tradelens/internal/model"
	"tradelens/internal/providers"
)

const (
	defaultPathTemplate    = "{study}/{table}"
	defaultAPIKeyParam     = "token"
	defaultRateLimitPerSec = 5
	defaultRateLimitBurst  = 3
	defaultTimeoutSeconds  = 20
	defaultUserAgent       = "tradelens/0.1"
	defaultMaxBodyBytes    = 32 << 20
)

type Config struct {
	BaseURL         string
	PathTemplate    string
	APIKey          string
	APIKeyParam     string
	RateLimitPerSec int
	RateLimitBurst  int
	Timeout         time.Duration
	UserAgent       string
	MaxBodyBytes    int64
}

type Provider struct {
	config  Config
	client  *http.Client
	limiter *rateLimiter
}

func New() (*Provider, error) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return NewWithConfig(cfg)
}

func NewWithConfig(cfg Config) (*Provider, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("httpcsv: base url is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("httpcsv: invalid base url: %w", err)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/") + "/"
	if strings.TrimSpace(cfg.PathTemplate) == "" {
		cfg.PathTemplate = defaultPathTemplate
	}
	if cfg.APIKeyParam == "" {
		cfg.APIKeyParam = defaultAPIKeyParam
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = defaultRateLimitBurst
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeoutSeconds * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	return &Provider{
		config:  cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: newRateLimiter(cfg.RateLimitPerSec, cfg.RateLimitBurst),
	}, nil
}

func ConfigFromEnv() (Config, error) {
	cfg := Config{
		BaseURL:      getenv("TRADELENS_HTTP_BASE_URL", ""),
		PathTemplate: getenv("TRADELENS_HTTP_PATH", defaultPathTemplate),
		APIKey:       strings.TrimSpace(os.Getenv("TRADELENS_HTTP_API_KEY")),
		APIKeyParam:  getenv("TRADELENS_HTTP_API_KEY_PARAM", defaultAPIKeyParam),
		UserAgent:    getenv("TRADELENS_HTTP_USER_AGENT", defaultUserAgent),
	}

	cfg.RateLimitPerSec = getenvInt("TRADELENS_HTTP_RATE_LIMIT_PER_SEC", defaultRateLimitPerSec)
	cfg.RateLimitBurst = getenvInt("TRADELENS_HTTP_RATE_LIMIT_BURST", defaultRateLimitBurst)
	cfg.Timeout = time.Duration(getenvInt("TRADELENS_HTTP_TIMEOUT_SECONDS", defaultTimeoutSeconds)) * time.Second
	cfg.MaxBodyBytes = int64(getenvInt("TRADELENS_HTTP_MAX_BODY_BYTES", defaultMaxBodyBytes))

	if cfg.BaseURL == "" {
		return cfg, errors.New("httpcsv: TRADELENS_HTTP_BASE_URL is not set")
	}
	return cfg, nil
}

func (p *Provider) Name() string {
	return "httpcsv"
}

// Close releases the rate limiter. Fetches after Close fail.
func (p *Provider) Close() error {
	p.limiter.Close()
	return nil
}

func (p *Provider) FetchTable(ctx context.Context, study model.CaseStudy, table model.Table) ([]byte, error) {
	return p.doRequest(ctx, p.tablePath(study, table))
}

func (p *Provider) tablePath(study model.CaseStudy, table model.Table) string {
	dataPath := study.DataPath
	if dataPath == "" {
		dataPath = study.ID
	}
	path := p.config.PathTemplate
	if strings.Contains(path, "{study}") {
		segments := strings.Split(strings.Trim(dataPath, "/"), "/")
		for i, segment := range segments {
			segments[i] = url.PathEscape(segment)
		}
		path = strings.ReplaceAll(path, "{study}", strings.Join(segments, "/"))
	}
	if strings.Contains(path, "{table}") {
		path = strings.ReplaceAll(path, "{table}", url.PathEscape(table.FileName()))
	}
	return path
}

func (p *Provider) doRequest(ctx context.Context, path string) ([]byte, error) {
	endpoint := p.buildURL(path)

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/csv")
	if p.config.UserAgent != "" {
		req.Header.Set("User-Agent", p.config.UserAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, p.config.MaxBodyBytes))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", providers.ErrNotFound, path)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("httpcsv: request failed (%s): %s", resp.Status, strings.TrimSpace(string(body)))
	}

	return body, nil
}

func (p *Provider) buildURL(path string) string {
	base := strings.TrimRight(p.config.BaseURL, "/")
	path = strings.TrimLeft(path, "/")
	endpoint := base + "/" + path

	if p.config.APIKey != "" && p.config.APIKeyParam != "" {
		query := url.Values{}
		query.Set(p.config.APIKeyParam, p.config.APIKey)
		endpoint += "?" + query.Encode()
	}
	return endpoint
}

var errClosed = errors.New("httpcsv: provider closed")

type rateLimiter struct {
	tokens chan struct{}
	stop   chan struct{}
	once   sync.Once
}

func newRateLimiter(ratePerSec, burst int) *rateLimiter {
	if ratePerSec <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}

	limiter := &rateLimiter{
		tokens: make(chan struct{}, burst),
		stop:   make(chan struct{}),
	}
	for i := 0; i < burst; i++ {
		limiter.tokens <- struct{}{}
	}

	interval := time.Second / time.Duration(ratePerSec)
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-limiter.stop:
				return
			case <-ticker.C:
			}
			select {
			case limiter.tokens <- struct{}{}:
			default:
			}
		}
	}()

	return limiter
}

func (l *rateLimiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	select {
	case <-l.stop:
		return errClosed
	default:
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stop:
		return errClosed
	case <-l.tokens:
		return nil
	}
}

// Close stops the refill goroutine. It is safe to call more than once.
func (l *rateLimiter) Close() {
	if l == nil {
		return
	}
	l.once.Do(func() { close(l.stop) })
}

func getenv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

var (
	_ providers.Provider = (*Provider)(nil)
	_ io.Closer          = (*Provider)(nil)
)
