package metricsource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// HTTPSource queries an aggregation endpoint over HTTP.
//
// The endpoint contract is
//
//	GET {base}/api/v1/aggregate?service=<name>&metric=<type>&window=<seconds>
//
// responding 200 with {"value": <float>} when data exists, and either 404 or
// 200 with {"status": "no_data"} when the window holds no samples.
type HTTPSource struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPSource creates an HTTPSource for the given base URL.
func NewHTTPSource(baseURL string) (*HTTPSource, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("metrics base URL is required")
	}
	return &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

type aggregateResponse struct {
	Status string   `json:"status,omitempty"`
	Value  *float64 `json:"value,omitempty"`
}

// Value implements Source.
func (s *HTTPSource) Value(ctx context.Context, service, metric string, window time.Duration) (float64, bool, error) {
	q := url.Values{}
	q.Set("service", service)
	q.Set("metric", metric)
	q.Set("window", strconv.Itoa(int(window.Seconds())))

	reqURL := fmt.Sprintf("%s/api/v1/aggregate?%s", s.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, false, fmt.Errorf("create metrics request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, false, fmt.Errorf("query metrics provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return 0, false, fmt.Errorf("metrics provider error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var agg aggregateResponse
	if err := json.NewDecoder(resp.Body).Decode(&agg); err != nil {
		return 0, false, fmt.Errorf("decode metrics response: %w", err)
	}

	if agg.Status == "no_data" || agg.Value == nil {
		return 0, false, nil
	}
	return *agg.Value, true, nil
}
