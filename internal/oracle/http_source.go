package oracle

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"

	"github.com/chigozirigeorge/omnixec-sub000/internal/resilience"
)

const (
	defaultHTTPTimeout   = 5 * time.Second
	defaultHTTPBodyLimit = int64(1 << 16)
)

// HTTPSource fetches a rate from a configurable REST endpoint that returns a
// JSON document with `rate`, `confidence_pct` and `publish_time` fields (as
// Unix seconds). It is the fallback "some external collaborator" source
// named by the price oracle contract. Requests are wrapped in a retry with
// backoff and a circuit breaker so a flaky or down price feed degrades
// rather than stalling every quote request behind it.
type HTTPSource struct {
	baseURL string
	client  *http.Client
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
}

func NewHTTPSource(baseURL string) *HTTPSource {
	return &HTTPSource{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultHTTPTimeout},
		retry:   resilience.DefaultRetryConfig(),
		breaker: resilience.NewCircuitBreaker(resilience.DefaultBreakerConfig()),
	}
}

func (s *HTTPSource) GetPrice(ctx context.Context, base, quote string) (Price, error) {
	var price Price
	err := s.breaker.Execute(ctx, func() error {
		return resilience.Retry(ctx, s.retry, func() error {
			p, err := s.fetch(ctx, base, quote)
			if err != nil {
				return err
			}
			price = p
			return nil
		})
	})
	return price, err
}

func (s *HTTPSource) fetch(ctx context.Context, base, quote string) (Price, error) {
	if s.baseURL == "" {
		return Price{}, fmt.Errorf("oracle: http source has no base url configured")
	}

	u, err := url.Parse(s.baseURL)
	if err != nil {
		return Price{}, fmt.Errorf("oracle: parse base url: %w", err)
	}
	q := u.Query()
	q.Set("base", base)
	q.Set("quote", quote)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Price{}, fmt.Errorf("oracle: build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Price{}, fmt.Errorf("oracle: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Price{}, fmt.Errorf("oracle: upstream returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, defaultHTTPBodyLimit))
	if err != nil {
		return Price{}, fmt.Errorf("oracle: read response: %w", err)
	}

	parsed := gjson.ParseBytes(body)
	if !parsed.Get("rate").Exists() {
		return Price{}, fmt.Errorf("oracle: response missing rate field")
	}

	publishTime := time.Now().UTC()
	if ts := parsed.Get("publish_time"); ts.Exists() {
		publishTime = time.Unix(ts.Int(), 0).UTC()
	}

	return Price{
		Rate:          parsed.Get("rate").Float(),
		ConfidencePct: parsed.Get("confidence_pct").Float(),
		PublishTime:   publishTime,
	}, nil
}
