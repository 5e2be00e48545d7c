package results

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/stakeline/betengine/internal/models"
)

// FeedClient is a Source backed by an external results-feed HTTP API.
// Requests are retried with linear backoff before giving up.
type FeedClient struct {
	baseURL        string
	httpClient     *http.Client
	maxRetries     int
	retryDelayBase time.Duration
}

// feedResponse is the wire shape of the results feed.
type feedResponse struct {
	Settled bool     `json:"settled"`
	Result  string   `json:"result"` // "won", "lost" or "void"
	Profit  *float64 `json:"profit,omitempty"`
}

// NewFeedClient creates a results-feed client.
func NewFeedClient(baseURL string, timeout time.Duration, maxRetries int, retryDelayBase time.Duration) *FeedClient {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}
	return &FeedClient{
		baseURL:        baseURL,
		httpClient:     &http.Client{Timeout: timeout},
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}
}

// Result queries the feed for the bet's selection. A feed entry that is not
// yet settled yields (nil, nil) so the caller retries on a later sweep.
func (c *FeedClient) Result(ctx context.Context, bet models.Bet) (*Outcome, error) {
	endpoint := fmt.Sprintf("%s/results?match_id=%s&market=%s&selection=%s",
		c.baseURL,
		url.QueryEscape(bet.Match.ID),
		url.QueryEscape(string(bet.Market)),
		url.QueryEscape(bet.Selection),
	)

	resp, err := c.doRequest(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch result for %s: %w", bet.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// Feed does not know the match yet.
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("results feed returned status %d for %s", resp.StatusCode, bet.ID)
	}

	var fr feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
		return nil, fmt.Errorf("failed to decode result for %s: %w", bet.ID, err)
	}

	if !fr.Settled {
		return nil, nil
	}

	var status models.BetStatus
	switch fr.Result {
	case "won":
		status = models.BetWon
	case "lost":
		status = models.BetLost
	case "void":
		status = models.BetVoid
	default:
		return nil, fmt.Errorf("results feed returned unknown result %q for %s", fr.Result, bet.ID)
	}

	return &Outcome{Status: status, Profit: fr.Profit}, nil
}

// doRequest performs an HTTP GET with retry and linear backoff.
func (c *FeedClient) doRequest(ctx context.Context, endpoint string) (*http.Response, error) {
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err == nil && resp.StatusCode < http.StatusInternalServerError {
			return resp, nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("server error: status %d", resp.StatusCode)
			resp.Body.Close()
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.retryDelayBase * time.Duration(i+1)):
		}
	}

	return nil, fmt.Errorf("request failed after %d retries: %w", c.maxRetries, lastErr)
}
