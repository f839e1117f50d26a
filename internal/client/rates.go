package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-redis/redis/v9"
	"github.com/pkg/errors"

	"scoutloot/internal/misc"
)

// ErrRateUnavailable means no conversion rate could be obtained. The
// evaluator skips the affected watch rather than comparing prices
// across currencies with a guessed rate.
var ErrRateUnavailable = errors.New("conversion rate unavailable")

type ratesAPIResponse struct {
	Rates map[string]float64 `json:"rates"`
}

// Rate returns the conversion rate from one currency to another,
// consulting the Redis cache before the external rates API.
func (c Client) Rate(ctx context.Context, from string, to string) (float64, error) {
	if from == to {
		return 1, nil
	}

	cacheKey := "FXR-" + from + "-" + to
	cached, err := c.Redis.Get(ctx, cacheKey).Result()
	if err == nil {
		rate, err := strconv.ParseFloat(cached, 64)
		if err == nil {
			return rate, nil
		}
		c.Logger.Errorf("Rate: Error parsing cached rate, key: %s, value: %s, err: %v", cacheKey, cached, err)
	} else if err != redis.Nil {
		c.Logger.Errorf("Rate: Error getting Redis cache with key: %s, err: %v", cacheKey, err)
	}

	apiURL := fmt.Sprintf("%s?base=%s&symbols=%s", c.RatesAPIURL, from, to)
	req, err := newRequest(http.MethodGet, apiURL, nil)
	if err != nil {
		return 0, errors.Wrapf(ErrRateUnavailable, "failed to create request to URL: %s, err: %v", apiURL, err)
	}
	req = req.WithContext(ctx)

	c.Logger.Debugf("Rate: Sending request to %s", apiURL)
	resp, err := c.Do(req)
	if err != nil {
		return 0, errors.Wrapf(ErrRateUnavailable, "error doing request to URL: %s, err: %v", apiURL, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(http.MaxBytesReader(nil, resp.Body, 32*1024))
	if err != nil {
		return 0, errors.Wrapf(ErrRateUnavailable, "error reading RatesAPI response body, status: %s, err: %v",
			resp.Status, err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, errors.Wrapf(ErrRateUnavailable, "RatesAPI status: %s, body:\n%s",
			resp.Status, misc.BytesLimit(body, 2000))
	}

	var apiResp ratesAPIResponse
	if err = json.Unmarshal(body, &apiResp); err != nil {
		return 0, errors.Wrapf(ErrRateUnavailable, "error unmarshalling RatesAPI response body:\n%s,\nerr: %v",
			misc.BytesLimit(body, 2000), err)
	}
	rate, ok := apiResp.Rates[to]
	if !ok || rate <= 0 {
		return 0, errors.Wrapf(ErrRateUnavailable, "RatesAPI response has no usable rate for %s, body:\n%s",
			to, misc.BytesLimit(body, 2000))
	}

	if err = c.Redis.Set(ctx, cacheKey, strconv.FormatFloat(rate, 'f', -1, 64), c.RateCacheTTL).Err(); err != nil {
		c.Logger.Errorf("Rate: Error setting Redis cache with key: %s, err: %v", cacheKey, err)
	}
	return rate, nil
}
