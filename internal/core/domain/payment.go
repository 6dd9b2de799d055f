package domain

// PaymentInitiateRequest is the body sent to the initiation endpoint.
type PaymentInitiateRequest struct {
	AccountID   string        `json:"accountId"`
	Amount      int64         `json:"amount"`
	PhoneNumber string        `json:"phoneNumber"`
	Method      PaymentMethod `json:"method"`
}

// PaymentInitiateResponse is what the initiation endpoint returns. Only
// TransactionID is relied on; the processor may echo the request back.
type PaymentInitiateResponse struct {
	TransactionID string `json:"transactionId"`
	Status        string `json:"status,omitempty"`
}

// PaymentStatusResponse is what the status endpoint returns.
type PaymentStatusResponse struct {
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
}

// NewPaymentInitiateRequest converts a validated deposit request into the wire body.
func NewPaymentInitiateRequest(req DepositRequest) PaymentInitiateRequest {
	return PaymentInitiateRequest{
		AccountID:   req.AccountID,
		Amount:      req.Amount.IntPart(),
		PhoneNumber: req.PhoneNumber,
		Method:      req.Method,
	}
}
