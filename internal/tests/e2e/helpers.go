package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakePaymentAPI plays the external payment processor. Status answers are
// served from a script; the last entry repeats once the script runs out.
type fakePaymentAPI struct {
	mu            sync.Mutex
	transactionID string
	initiateCode  int
	statuses      []string
	initiateCalls int
	statusCalls   int
	authHeaders   []string
	idemKeys      []string
}

func (f *fakePaymentAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.authHeaders = append(f.authHeaders, r.Header.Get("Authorization"))
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/payments/deposit":
		f.initiateCalls++
		f.idemKeys = append(f.idemKeys, r.Header.Get("Idempotency-Key"))
		if f.initiateCode != 0 && f.initiateCode != http.StatusOK {
			w.WriteHeader(f.initiateCode)
			_, _ = io.WriteString(w, `{"code":"internal_error","message":"processor unavailable"}`)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"transactionId": f.transactionID,
			"status":        "PENDING",
		})

	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/payments/status/"):
		status := "PENDING"
		if len(f.statuses) > 0 {
			idx := min(f.statusCalls, len(f.statuses)-1)
			status = f.statuses[idx]
		}
		f.statusCalls++
		_ = json.NewEncoder(w).Encode(map[string]string{
			"transactionId": strings.TrimPrefix(r.URL.Path, "/api/payments/status/"),
			"status":        status,
		})

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakePaymentAPI) script(statuses ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = statuses
}

func (f *fakePaymentAPI) failInitiate(code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initiateCode = code
}

func (f *fakePaymentAPI) counts() (initiate, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.initiateCalls, f.statusCalls
}

// TestClient wraps HTTP calls to the gateway.
type TestClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewTestClient(baseURL, token string) *TestClient {
	return &TestClient{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type dialog struct {
	ID            string `json:"id"`
	State         string `json:"state"`
	Message       string `json:"message"`
	TransactionID string `json:"transactionId"`
	Version       uint64 `json:"version"`
	Error         *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type envelope struct {
	Success bool   `json:"success"`
	Data    dialog `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *TestClient) do(t *testing.T, method, path string, body any) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env), "body: %s", raw)
	return resp.StatusCode, env
}

func (c *TestClient) Open(t *testing.T) dialog {
	t.Helper()
	code, env := c.do(t, http.MethodPost, "/dialogs", nil)
	require.Equal(t, http.StatusCreated, code)
	return env.Data
}

func (c *TestClient) Get(t *testing.T, id string) dialog {
	t.Helper()
	code, env := c.do(t, http.MethodGet, "/dialogs/"+id, nil)
	require.Equal(t, http.StatusOK, code)
	return env.Data
}

func (c *TestClient) Deposit(t *testing.T, id string, body map[string]any) (int, envelope) {
	t.Helper()
	return c.do(t, http.MethodPost, fmt.Sprintf("/dialogs/%s/deposit", id), body)
}

func (c *TestClient) Close(t *testing.T, id string) dialog {
	t.Helper()
	code, env := c.do(t, http.MethodDelete, "/dialogs/"+id, nil)
	require.Equal(t, http.StatusOK, code)
	return env.Data
}

func (c *TestClient) WaitForState(t *testing.T, id, state string) dialog {
	t.Helper()
	var last dialog
	require.Eventually(t, func() bool {
		last = c.Get(t, id)
		return last.State == state
	}, 5*time.Second, 10*time.Millisecond, "dialog never reached %s", state)
	return last
}

func depositBody(amount int64) map[string]any {
	return map[string]any{
		"accountId":   "acc-42",
		"amount":      amount,
		"phoneNumber": "+237670000000",
		"method":      "MTN",
	}
}
