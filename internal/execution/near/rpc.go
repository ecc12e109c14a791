package near

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"
)

// rpcClient is a minimal JSON-RPC 2.0 client for the NEAR node API. No NEAR
// Go SDK is available here, so this mirrors the same bounded-timeout,
// size-limited HTTP client shape used by the oracle package rather than
// introducing an unvetted library.
type rpcClient struct {
	url    string
	client *http.Client
}

func newRPCClient(url string) *rpcClient {
	return &rpcClient{url: url, client: &http.Client{}}
}

func (c *rpcClient) call(ctx context.Context, method string, params interface{}) (gjson.Result, error) {
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      "dontcare",
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return gjson.Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return gjson.Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return gjson.Result{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return gjson.Result{}, err
	}

	parsed := gjson.ParseBytes(raw)
	if errResult := parsed.Get("error"); errResult.Exists() {
		return gjson.Result{}, fmt.Errorf("near rpc %s: %s", method, errResult.Raw)
	}
	return parsed.Get("result"), nil
}
