// Package rpc implements a thin REST client over an ordered,
// health-ranked, circuit-broken pool of base URLs, exposing the six
// operations the builder and reconciler need.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/kaspax/txkernel/internal/clock"
	"github.com/kaspax/txkernel/internal/config"
	"github.com/kaspax/txkernel/internal/kaspa"
	"github.com/kaspax/txkernel/internal/kerrors"
)

// retryableStatus reports whether an HTTP status code should be retried
// within one endpoint.
func retryableStatus(status int) bool {
	return status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= 500
}

// Client is the RpcClient: one instance per process, shared across networks.
type Client struct {
	http     *http.Client
	health   *HealthTracker
	pool     *PoolResolver
	limiters map[string]*rate.Limiter
	clk      clock.Clock
}

// New creates an RpcClient using the given health tracker, pool resolver and clock.
func New(health *HealthTracker, pool *PoolResolver, clk clock.Clock) *Client {
	return &Client{
		http:     &http.Client{Timeout: config.MillisDuration(config.RequestTimeoutMS)},
		health:   health,
		pool:     pool,
		limiters: make(map[string]*rate.Limiter),
		clk:      clk,
	}
}

func (c *Client) limiterFor(baseURL string) *rate.Limiter {
	if l, ok := c.limiters[baseURL]; ok {
		return l
	}
	// Burst(1) spreads requests evenly instead of allowing bursts that would
	// themselves trip a remote provider's own rate limiting.
	l := rate.NewLimiter(rate.Limit(8), 1)
	c.limiters[baseURL] = l
	return l
}

// doWithRetry performs one logical request against a single endpoint,
// retrying up to config.MaxRetries times with exponential backoff, and
// updating health/breaker state on terminal success or failure.
func (c *Client) doWithRetry(ctx context.Context, baseURL, method, path string, body []byte) ([]byte, error) {
	if err := c.limiterFor(baseURL).Wait(ctx); err != nil {
		return nil, err
	}

	var lastErr error
	var lastStatus int

	for attempt := 1; attempt <= config.MaxRetries+1; attempt++ {
		start := c.clk.Now()
		raw, status, err := c.doOnce(ctx, method, baseURL+path, body)
		latency := c.clk.Now().Sub(start)

		if err == nil && status < 400 {
			c.health.RecordSuccess(baseURL, latency)
			return raw, nil
		}

		lastErr = err
		lastStatus = status
		if err == nil {
			lastErr = fmt.Errorf("unexpected status %d", status)
		}

		retryable := err != nil || retryableStatus(status)
		if !retryable || attempt > config.MaxRetries {
			break
		}

		backoff := time.Duration(config.RetryDelayBaseMS) * time.Millisecond * time.Duration(1<<uint(attempt-1))
		slog.Warn("rpc request failed, retrying", "baseURL", baseURL, "path", path, "attempt", attempt, "error", lastErr)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	c.health.RecordFailure(baseURL, lastStatus, lastErr)
	return nil, lastErr
}

func (c *Client) doOnce(ctx context.Context, method, url string, body []byte) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return raw, resp.StatusCode, nil
	}
	return raw, resp.StatusCode, nil
}

// request runs the full per-endpoint loop: rank the pool, skip Open
// breakers, try each endpoint with retry, return on first success.
func (c *Client) request(ctx context.Context, network kaspa.Network, opts ResolveOptions, method, path string, body []byte) ([]byte, error) {
	resolved := c.pool.Resolve(network, opts)
	ranked := c.health.Rank(resolved.URLs)
	if len(ranked) == 0 {
		return nil, kerrors.ErrEndpointUnavailable
	}

	var lastErr error
	for _, baseURL := range ranked {
		breaker := c.health.Breaker(baseURL)
		if !breaker.Allow() {
			lastErr = fmt.Errorf("%s: %w", baseURL, kerrors.ErrCircuitOpen)
			continue
		}

		raw, err := c.doWithRetry(ctx, baseURL, method, path, body)
		if err == nil {
			return raw, nil
		}
		lastErr = fmt.Errorf("%s: %w", baseURL, err)
	}

	return nil, fmt.Errorf("%w: %s", kerrors.ErrEndpointUnavailable, lastErr)
}

// ProbeEndpoint issues a single GET /info/blockdag against baseURL directly,
// bypassing pool resolution and ranking, and records the outcome onto the
// client's HealthTracker. Used at startup to seed health/breaker state for
// every configured endpoint before the pool has served a single real
// request.
func (c *Client) ProbeEndpoint(ctx context.Context, baseURL string) error {
	start := c.clk.Now()
	raw, status, err := c.doOnce(ctx, http.MethodGet, baseURL+"/info/blockdag", nil)
	latency := c.clk.Now().Sub(start)

	if err != nil {
		c.health.RecordFailure(baseURL, status, err)
		return err
	}
	if status >= 400 {
		failErr := fmt.Errorf("unexpected status %d", status)
		c.health.RecordFailure(baseURL, status, failErr)
		return failErr
	}

	var w dagInfoWire
	if err := json.Unmarshal(raw, &w); err != nil {
		c.health.RecordFailure(baseURL, status, err)
		return fmt.Errorf("decode blockdag info: %w", err)
	}

	c.health.RecordSuccess(baseURL, latency)
	return nil
}

// --- REST operations ---

// classifyScript is a stub: the pool's UTXO response carries no
// script-class discriminant, so every output decodes as
// ScriptClassStandard until a consensus-aware classifier replaces this
// function. Named and isolated so that replacement touches no callers.
func classifyScript(scriptPublicKey []byte) kaspa.ScriptClass {
	return kaspa.ScriptClassStandard
}

type utxoEntryWire struct {
	Amount          string `json:"amount"`
	ScriptPublicKey struct {
		Version         int    `json:"version"`
		ScriptPublicKey string `json:"scriptPublicKey"`
	} `json:"scriptPublicKey"`
	BlockDaaScore string `json:"blockDaaScore"`
	IsCoinbase    bool   `json:"isCoinbase"`
}

type utxoWire struct {
	Address  string `json:"address"`
	Outpoint struct {
		TransactionID string `json:"transactionId"`
		Index         uint32 `json:"index"`
	} `json:"outpoint"`
	UtxoEntry utxoEntryWire `json:"utxoEntry"`
}

// FetchUTXOs fetches the raw UTXO set for address from GET /addresses/{addr}/utxos.
func (c *Client) FetchUTXOs(ctx context.Context, network kaspa.Network, opts ResolveOptions, address string) ([]kaspa.UTXO, error) {
	raw, err := c.request(ctx, network, opts, http.MethodGet, "/addresses/"+address+"/utxos", nil)
	if err != nil {
		return nil, err
	}

	var wire []utxoWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("decode utxos: %w", err)
	}

	utxos := make([]kaspa.UTXO, 0, len(wire))
	for _, w := range wire {
		amount, err := parseSompi(w.UtxoEntry.Amount)
		if err != nil {
			return nil, fmt.Errorf("decode utxo amount: %w", err)
		}
		spk, err := decodeHex(w.UtxoEntry.ScriptPublicKey.ScriptPublicKey)
		if err != nil {
			return nil, fmt.Errorf("decode script pubkey: %w", err)
		}
		daaScore, err := parseUint(w.UtxoEntry.BlockDaaScore)
		if err != nil {
			return nil, fmt.Errorf("decode block daa score: %w", err)
		}
		utxos = append(utxos, kaspa.UTXO{
			Outpoint:        kaspa.Outpoint{TxID: w.Outpoint.TransactionID, OutputIndex: w.Outpoint.Index},
			OwnerAddress:    w.Address,
			Amount:          amount,
			ScriptPublicKey: spk,
			ScriptVersion:   w.UtxoEntry.ScriptPublicKey.Version,
			ScriptClass:     classifyScript(spk),
			BlockDAAScore:   daaScore,
			IsCoinbase:      w.UtxoEntry.IsCoinbase,
		})
	}
	return utxos, nil
}

type balanceWire struct {
	Balance json.Number `json:"balance"`
}

// FetchBalance fetches an address's confirmed balance from GET /addresses/{addr}/balance.
func (c *Client) FetchBalance(ctx context.Context, network kaspa.Network, opts ResolveOptions, address string) (kaspa.Sompi, error) {
	raw, err := c.request(ctx, network, opts, http.MethodGet, "/addresses/"+address+"/balance", nil)
	if err != nil {
		return 0, err
	}
	var w balanceWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return 0, fmt.Errorf("decode balance: %w", err)
	}
	amount, err := parseSompi(w.Balance.String())
	if err != nil {
		return 0, fmt.Errorf("decode balance value: %w", err)
	}
	return amount, nil
}

type feeBucketWire struct {
	Feerate float64 `json:"feerate"`
}

type feeEstimateWire struct {
	PriorityBucket feeBucketWire   `json:"priorityBucket"`
	NormalBuckets  []feeBucketWire `json:"normalBuckets"`
	LowBuckets     []feeBucketWire `json:"lowBuckets"`
}

// FetchFeeEstimate fetches the priority-bucket fee rate (sompi/gram) from
// GET /info/fee-estimate, falling back to config.DefaultFeeRate on any
// transport or decode failure rather than propagating the error.
func (c *Client) FetchFeeEstimate(ctx context.Context, network kaspa.Network, opts ResolveOptions) float64 {
	raw, err := c.request(ctx, network, opts, http.MethodGet, "/info/fee-estimate", nil)
	if err != nil {
		slog.Warn("fee estimate fetch failed, using default rate", "error", err)
		return config.DefaultFeeRate
	}
	var w feeEstimateWire
	if err := json.Unmarshal(raw, &w); err != nil || w.PriorityBucket.Feerate <= 0 {
		slog.Warn("fee estimate decode failed, using default rate", "error", err)
		return config.DefaultFeeRate
	}
	return w.PriorityBucket.Feerate
}

type dagInfoWire struct {
	NetworkName     string  `json:"networkName"`
	BlockCount      string  `json:"blockCount"`
	HeaderCount     string  `json:"headerCount"`
	VirtualDaaScore string  `json:"virtualDaaScore"`
	Difficulty      float64 `json:"difficulty"`
}

// DagInfo is the decoded GET /info/blockdag response.
type DagInfo struct {
	NetworkName     string
	BlockCount      uint64
	HeaderCount     uint64
	VirtualDaaScore uint64
	Difficulty      float64
}

// FetchDagInfo fetches network tip metadata from GET /info/blockdag.
func (c *Client) FetchDagInfo(ctx context.Context, network kaspa.Network, opts ResolveOptions) (*DagInfo, error) {
	raw, err := c.request(ctx, network, opts, http.MethodGet, "/info/blockdag", nil)
	if err != nil {
		return nil, err
	}
	var w dagInfoWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("decode blockdag info: %w", err)
	}
	blockCount, err := parseUint(w.BlockCount)
	if err != nil {
		return nil, fmt.Errorf("decode block count: %w", err)
	}
	headerCount, err := parseUint(w.HeaderCount)
	if err != nil {
		return nil, fmt.Errorf("decode header count: %w", err)
	}
	daaScore, err := parseUint(w.VirtualDaaScore)
	if err != nil {
		return nil, fmt.Errorf("decode virtual daa score: %w", err)
	}
	return &DagInfo{
		NetworkName:     w.NetworkName,
		BlockCount:      blockCount,
		HeaderCount:     headerCount,
		VirtualDaaScore: daaScore,
		Difficulty:      w.Difficulty,
	}, nil
}

type broadcastResponseWire struct {
	TransactionID string `json:"transactionId"`
	TxID          string `json:"txid"`
}

// BroadcastResult carries the txid plus which endpoint accepted the broadcast
// (recorded onto PendingTx for reconciliation provenance).
type BroadcastResult struct {
	TxID     string
	Endpoint string
}

// BroadcastTx posts a signed payload to POST /transactions.
func (c *Client) BroadcastTx(ctx context.Context, network kaspa.Network, opts ResolveOptions, serializedTx json.RawMessage) (*BroadcastResult, error) {
	body, err := json.Marshal(map[string]json.RawMessage{"transaction": serializedTx})
	if err != nil {
		return nil, fmt.Errorf("encode broadcast body: %w", err)
	}

	resolved := c.pool.Resolve(network, opts)
	ranked := c.health.Rank(resolved.URLs)
	if len(ranked) == 0 {
		return nil, kerrors.ErrEndpointUnavailable
	}

	var lastErr error
	for _, baseURL := range ranked {
		breaker := c.health.Breaker(baseURL)
		if !breaker.Allow() {
			lastErr = fmt.Errorf("%s: %w", baseURL, kerrors.ErrCircuitOpen)
			continue
		}
		raw, err := c.doWithRetry(ctx, baseURL, http.MethodPost, "/transactions", body)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", baseURL, err)
			continue
		}
		var w broadcastResponseWire
		if err := json.Unmarshal(raw, &w); err != nil {
			lastErr = fmt.Errorf("%s: decode broadcast response: %w", baseURL, err)
			continue
		}
		txid := w.TransactionID
		if txid == "" {
			txid = w.TxID
		}
		if txid == "" {
			lastErr = fmt.Errorf("%s: broadcast accepted with no txid in response", baseURL)
			continue
		}
		return &BroadcastResult{TxID: txid, Endpoint: baseURL}, nil
	}

	if lastErr == nil {
		lastErr = errors.New("pool exhausted")
	}
	return nil, fmt.Errorf("%w: %s", kerrors.ErrBroadcastFailed, lastErr)
}

type transactionWire struct {
	TransactionID     string  `json:"transactionId"`
	AcceptingBlockHash *string `json:"acceptingBlockHash"`
}

// TransactionReceipt is the decoded GET /transactions/{txid} response.
type TransactionReceipt struct {
	TxID               string
	AcceptingBlockHash *string
	Endpoint           string
}

// FetchTransaction probes a transaction's acceptance state from
// GET /transactions/{txid}. Transport errors are returned, not retried here
// beyond the normal request envelope — the reconciler treats them as
// "no update this probe", not as a pipeline failure.
func (c *Client) FetchTransaction(ctx context.Context, network kaspa.Network, opts ResolveOptions, txid string) (*TransactionReceipt, error) {
	resolved := c.pool.Resolve(network, opts)
	ranked := c.health.Rank(resolved.URLs)
	if len(ranked) == 0 {
		return nil, kerrors.ErrEndpointUnavailable
	}

	var lastErr error
	for _, baseURL := range ranked {
		breaker := c.health.Breaker(baseURL)
		if !breaker.Allow() {
			lastErr = fmt.Errorf("%s: %w", baseURL, kerrors.ErrCircuitOpen)
			continue
		}
		raw, err := c.doWithRetry(ctx, baseURL, http.MethodGet, "/transactions/"+txid, nil)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", baseURL, err)
			continue
		}
		var w transactionWire
		if err := json.Unmarshal(raw, &w); err != nil {
			lastErr = fmt.Errorf("%s: decode transaction: %w", baseURL, err)
			continue
		}
		return &TransactionReceipt{TxID: w.TransactionID, AcceptingBlockHash: w.AcceptingBlockHash, Endpoint: baseURL}, nil
	}
	return nil, lastErr
}
