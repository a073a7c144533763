package carriers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// TokenProvider supplies a valid bearer token for carrier calls. It owns
// expiry and refresh; callers never cache tokens themselves.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

const (
	// Carrier tokens are valid for 10 days; refresh a day early so a token
	// never expires mid-batch.
	tokenValidity = 10 * 24 * time.Hour
	tokenSlack    = 24 * time.Hour

	tokenCacheKey = "shipments:carrier:token"
)

// CachedTokenProvider logs in against the carrier auth endpoint and caches
// the token until shortly before expiry. When a Redis client is present the
// token is shared across replicas; otherwise caching is in-process only.
type CachedTokenProvider struct {
	cfg        Config
	httpClient *http.Client
	redis      *redis.Client
	logger     *logrus.Entry

	mu     sync.Mutex
	token  string
	expiry time.Time
}

// NewCachedTokenProvider creates a token provider. redisClient may be nil.
func NewCachedTokenProvider(cfg Config, redisClient *redis.Client, logger *logrus.Logger) *CachedTokenProvider {
	return &CachedTokenProvider{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		redis:      redisClient,
		logger:     logger.WithField("component", "carriers.token"),
	}
}

// Token returns a cached token or authenticates for a fresh one.
func (p *CachedTokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && time.Now().Before(p.expiry) {
		return p.token, nil
	}

	if p.redis != nil {
		if token, err := p.redis.Get(ctx, tokenCacheKey).Result(); err == nil && token != "" {
			ttl, err := p.redis.TTL(ctx, tokenCacheKey).Result()
			if err == nil && ttl > 0 {
				p.token = token
				p.expiry = time.Now().Add(ttl)
				return p.token, nil
			}
		}
	}

	token, err := p.authenticate(ctx)
	if err != nil {
		return "", err
	}

	p.token = token
	p.expiry = time.Now().Add(tokenValidity - tokenSlack)

	if p.redis != nil {
		if err := p.redis.Set(ctx, tokenCacheKey, token, tokenValidity-tokenSlack).Err(); err != nil {
			p.logger.WithError(err).Warn("Failed to cache carrier token in Redis")
		}
	}

	return token, nil
}

// Invalidate drops the cached token so the next Token call re-authenticates.
func (p *CachedTokenProvider) Invalidate(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.token = ""
	p.expiry = time.Time{}
	if p.redis != nil {
		if err := p.redis.Del(ctx, tokenCacheKey).Err(); err != nil {
			p.logger.WithError(err).Warn("Failed to drop carrier token from Redis")
		}
	}
}

// authenticate performs the carrier login call.
func (p *CachedTokenProvider) authenticate(ctx context.Context) (string, error) {
	payload := map[string]string{
		"email":    p.cfg.Email,
		"password": p.cfg.Password,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal auth request: %w", err)
	}

	url := p.cfg.BaseURL + "/v1/external/auth/login"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send auth request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("auth failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var authResp struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		return "", fmt.Errorf("failed to decode auth response: %w", err)
	}
	if authResp.Token == "" {
		return "", fmt.Errorf("auth response contained no token")
	}

	p.logger.Info("Authenticated with carrier")
	return authResp.Token, nil
}

// StaticTokenProvider returns a fixed token. Used in tests.
type StaticTokenProvider string

func (s StaticTokenProvider) Token(ctx context.Context) (string, error) {
	return string(s), nil
}
