package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/l2p-cooperative/deposit-gateway/internal/config"
	"github.com/l2p-cooperative/deposit-gateway/internal/core/domain"
	"github.com/l2p-cooperative/deposit-gateway/internal/core/ports"
)

const (
	depositPath = "/api/payments/deposit"
	statusPath  = "/api/payments/status/"
)

type HTTPPaymentClient struct {
	baseURL    string
	httpClient *http.Client
	tokens     ports.TokenSource
}

func NewPaymentClient(cfg config.PaymentConfig, tokens ports.TokenSource) *HTTPPaymentClient {
	return &HTTPPaymentClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.ConnTimeout,
		},
		tokens: tokens,
	}
}

func (c *HTTPPaymentClient) InitiateDeposit(ctx context.Context, req domain.PaymentInitiateRequest, idempotencyKey string) (*domain.PaymentInitiateResponse, error) {
	resp, err := doJSON[domain.PaymentInitiateResponse](c, ctx, http.MethodPost, depositPath, req, idempotencyKey)
	if err != nil {
		return nil, err
	}
	if resp.TransactionID == "" {
		return nil, errors.New("payment api response has no transactionId")
	}
	return resp, nil
}

func (c *HTTPPaymentClient) GetDepositStatus(ctx context.Context, transactionID string) (*domain.PaymentStatusResponse, error) {
	resp, err := doJSON[domain.PaymentStatusResponse](c, ctx, http.MethodGet, statusPath+url.PathEscape(transactionID), nil, "")
	if err != nil {
		return nil, err
	}
	if resp.Status == "" {
		return nil, fmt.Errorf("payment api returned no status for %s", transactionID)
	}
	if resp.TransactionID == "" {
		resp.TransactionID = transactionID
	}
	return resp, nil
}

// doJSON sends body (if any) as JSON and decodes a 2xx JSON answer into Resp.
func doJSON[Resp any](c *HTTPPaymentClient, ctx context.Context, method, path string, body any, idempotencyKey string) (*Resp, error) {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("error marshalling json: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", idempotencyKey)
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting auth token: %w", err)
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeAPIError(resp)
	}

	var out Resp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("error decoding json response: %w", err)
	}

	return &out, nil
}

func decodeAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body ErrorResponse
	if err := json.Unmarshal(raw, &body); err == nil && (body.Err != "" || body.Message != "") {
		apiErr.Code = body.Err
		apiErr.Message = body.Message
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
