package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"tokensale-coordinator/internal/domain"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// HTTPClient implements Client using HTTP JSON-RPC 2.0 against the sale
// gateway. Transport failures are retried with exponential backoff;
// ledger rejections are never retried.
type HTTPClient struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	requestID   atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts for transport failures.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a new ledger RPC client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile-time interface check.
var _ Client = (*HTTPClient)(nil)

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error. The message carries the
// ledger's rejection reason.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// call performs a JSON-RPC call. Transport errors are retried with
// exponential backoff and surface as ErrUnreachable once retries are
// exhausted; an RPC-level error becomes a *RejectionError immediately.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	reqID := c.requestID.Add(1)
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}

		if rpcResp.Error != nil {
			// Business rejection, never retried
			return &RejectionError{Op: method, Reason: rpcResp.Error.Message}
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}

		return nil
	}

	return fmt.Errorf("%w: %s: %v", ErrUnreachable, method, lastErr)
}

// phaseResult is the wire shape of a phase query result. All monetary
// fields are fixed-point base units; conversion to domain types happens
// here and nowhere else.
type phaseResult struct {
	Index         int    `json:"index"`
	Name          string `json:"name"`
	CoinDenom     string `json:"coinDenom"`
	Allotted      uint64 `json:"allotted"`
	Remaining     uint64 `json:"remaining"`
	Target        uint64 `json:"target"`
	Price         uint64 `json:"price"`
	StartTime     int64  `json:"start"`
	EndTime       int64  `json:"end"`
	Active        bool   `json:"active"`
	CollectedFund uint64 `json:"collectedFund"`
}

func (r *phaseResult) toDomain() *domain.Phase {
	return &domain.Phase{
		Index:         domain.PhaseIndex(r.Index),
		Name:          r.Name,
		CoinDenom:     r.CoinDenom,
		Allotted:      domain.CoinCount(r.Allotted),
		Remaining:     domain.CoinCount(r.Remaining),
		Target:        domain.Amount(r.Target),
		Price:         domain.Amount(r.Price),
		StartTime:     r.StartTime,
		EndTime:       r.EndTime,
		Active:        r.Active,
		CollectedFund: domain.Amount(r.CollectedFund),
	}
}

// CurrentPhase retrieves the active phase details.
func (c *HTTPClient) CurrentPhase(ctx context.Context) (*domain.Phase, error) {
	var result phaseResult
	if err := c.call(ctx, "currentPhase", nil, &result); err != nil {
		return nil, err
	}
	return result.toDomain(), nil
}

// PhaseByIndex retrieves one phase of the fixed sequence by ordinal.
func (c *HTTPClient) PhaseByIndex(ctx context.Context, index domain.PhaseIndex) (*domain.Phase, error) {
	if !index.IsValid() {
		return nil, fmt.Errorf("%w: phase index %d", ErrInvalidArgument, index)
	}
	var result phaseResult
	if err := c.call(ctx, "phaseByIndex", []interface{}{int(index)}, &result); err != nil {
		return nil, err
	}
	return result.toDomain(), nil
}

// RemainingTimeInStage retrieves the seconds left in the active phase.
// The value may be zero or negative once the phase window has elapsed.
func (c *HTTPClient) RemainingTimeInStage(ctx context.Context) (int64, error) {
	var result int64
	if err := c.call(ctx, "remainingTimeInStage", nil, &result); err != nil {
		return 0, err
	}
	return result, nil
}

// PendingApplicants retrieves the seed-round applicant addresses.
func (c *HTTPClient) PendingApplicants(ctx context.Context) ([]string, error) {
	var result []string
	if err := c.call(ctx, "pendingApplicants", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// AllowedApplicants retrieves the admitted seed-round buyer addresses.
func (c *HTTPClient) AllowedApplicants(ctx context.Context) ([]string, error) {
	var result []string
	if err := c.call(ctx, "allowedApplicants", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// StoredAddresses retrieves the full address roster in ledger order.
func (c *HTTPClient) StoredAddresses(ctx context.Context) ([]string, error) {
	var result []string
	if err := c.call(ctx, "storedAddresses", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// buyerResult is the wire shape of a buyer record query result.
type buyerResult struct {
	CoinsPurchased uint64 `json:"coinsPurchased"`
	AmountSpent    uint64 `json:"amountSpent"`
}

// BuyerRecord retrieves one buyer's contribution totals.
func (c *HTTPClient) BuyerRecord(ctx context.Context, address string) (*domain.BuyerRecord, error) {
	var result buyerResult
	if err := c.call(ctx, "buyerRecord", []interface{}{address}, &result); err != nil {
		return nil, err
	}
	return &domain.BuyerRecord{
		Address:        address,
		CoinsPurchased: domain.CoinCount(result.CoinsPurchased),
		AmountSpent:    domain.Amount(result.AmountSpent),
	}, nil
}

// TotalCollectedFunds retrieves the ledger's sale-wide collected amount.
func (c *HTTPClient) TotalCollectedFunds(ctx context.Context) (domain.Amount, error) {
	var result uint64
	if err := c.call(ctx, "totalCollectedFunds", nil, &result); err != nil {
		return 0, err
	}
	return domain.Amount(result), nil
}

// TotalCoinsSold retrieves the ledger's sale-wide sold-coin count.
func (c *HTTPClient) TotalCoinsSold(ctx context.Context) (domain.CoinCount, error) {
	var result uint64
	if err := c.call(ctx, "totalCoinsSold", nil, &result); err != nil {
		return 0, err
	}
	return domain.CoinCount(result), nil
}

// OwnerAddress retrieves the sale owner's address.
func (c *HTTPClient) OwnerAddress(ctx context.Context) (string, error) {
	var result string
	if err := c.call(ctx, "ownerAddress", nil, &result); err != nil {
		return "", err
	}
	return result, nil
}

// AdvanceStage issues the phase-advance command. The ledger enforces the
// real transition rules; the local view is refreshed by the caller after
// the command returns.
func (c *HTTPClient) AdvanceStage(ctx context.Context) error {
	return c.call(ctx, "advanceStage", nil, nil)
}

// ExtendStage extends the active phase duration by the given seconds.
func (c *HTTPClient) ExtendStage(ctx context.Context, seconds int64) error {
	return c.call(ctx, "extendStage", []interface{}{seconds}, nil)
}

// EndStage stops the active phase.
func (c *HTTPClient) EndStage(ctx context.Context) error {
	return c.call(ctx, "endStage", nil, nil)
}

// AdmitApplicant admits a seed-round applicant as an allowed buyer.
func (c *HTTPClient) AdmitApplicant(ctx context.Context, address string) error {
	return c.call(ctx, "admitApplicant", []interface{}{address}, nil)
}

// PurchaseCoins buys count coins for the given payment amount.
func (c *HTTPClient) PurchaseCoins(ctx context.Context, count domain.CoinCount, payment domain.Amount) error {
	return c.call(ctx, "purchaseCoins", []interface{}{uint64(count), uint64(payment)}, nil)
}

// ApplySeedRound applies the given address for the seed round.
func (c *HTTPClient) ApplySeedRound(ctx context.Context, address string) error {
	return c.call(ctx, "applySeedRound", []interface{}{address}, nil)
}

// FinalizeSale irreversibly finalizes the sale.
func (c *HTTPClient) FinalizeSale(ctx context.Context) error {
	return c.call(ctx, "finalizeSale", nil, nil)
}
