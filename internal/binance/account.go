package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Balance is one asset line from the spot account.
type Balance struct {
	Asset  string  `json:"asset"`
	Free   float64 `json:"free,string"`
	Locked float64 `json:"locked,string"`
}

// GetAccountBalances fetches non-zero spot balances over the authenticated
// channel. Requires API credentials.
func (c *Client) GetAccountBalances(ctx context.Context) ([]Balance, error) {
	if !c.HasCredentials() {
		return nil, fmt.Errorf("binance API credentials not configured")
	}

	params := url.Values{}
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	params.Set("signature", c.sign(params))

	body, err := c.signedGet(ctx, "/api/v3/account", params)
	if err != nil {
		return nil, fmt.Errorf("error fetching account: %w", err)
	}

	var account struct {
		Balances []Balance `json:"balances"`
	}
	if err := json.Unmarshal(body, &account); err != nil {
		return nil, fmt.Errorf("error parsing account: %w", err)
	}

	balances := make([]Balance, 0, len(account.Balances))
	for _, b := range account.Balances {
		if b.Free > 0 || b.Locked > 0 {
			balances = append(balances, b)
		}
	}
	return balances, nil
}

func (c *Client) signedGet(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := c.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-MBX-APIKEY", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, newAPIError(resp, body)
	}

	return body, nil
}

// sign creates an HMAC-SHA256 signature over the query string, excluding any
// existing signature parameter.
func (c *Client) sign(params url.Values) string {
	filtered := url.Values{}
	for k, vs := range params {
		if k == "signature" {
			continue
		}
		for _, v := range vs {
			filtered.Add(k, v)
		}
	}

	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(filtered.Encode()))
	return hex.EncodeToString(mac.Sum(nil))
}
