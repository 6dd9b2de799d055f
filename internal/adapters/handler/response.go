package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/l2p-cooperative/deposit-gateway/internal/core/domain"
	"github.com/l2p-cooperative/deposit-gateway/internal/core/service"
)

const errCodeUnauthorized = "UNAUTHORIZED"

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// DialogResponse is the wire form of a dialog snapshot.
type DialogResponse struct {
	ID            uuid.UUID          `json:"id"`
	State         domain.DialogState `json:"state"`
	Message       string             `json:"message,omitempty"`
	TransactionID string             `json:"transactionId,omitempty"`
	Amount        string             `json:"amount,omitempty"`
	Method        string             `json:"method,omitempty"`
	Error         *APIError          `json:"error,omitempty"`
	Version       uint64             `json:"version"`
	UpdatedAt     time.Time          `json:"updatedAt"`
}

func toDialogResponse(s service.Snapshot) DialogResponse {
	resp := DialogResponse{
		ID:            s.DialogID,
		State:         s.State,
		Message:       s.Message,
		TransactionID: s.TransactionID,
		Method:        string(s.Method),
		Version:       s.Version,
		UpdatedAt:     s.UpdatedAt,
	}
	if s.TransactionID != "" {
		resp.Amount = s.Amount.String()
	}
	if s.Err != nil {
		resp.Error = toAPIError(s.Err)
	}
	return resp
}

func toAPIError(err error) *APIError {
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		return &APIError{Code: domainErr.Code, Message: domainErr.Message}
	}
	return &APIError{Code: "INTERNAL_ERROR", Message: "internal error"}
}

func respondWithJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := APIResponse{
		Success: status >= 200 && status < 300,
	}

	if response.Success {
		response.Data = data
	} else if apiErr, ok := data.(*APIError); ok {
		response.Error = apiErr
	}

	_ = json.NewEncoder(w).Encode(response)
}

func respondWithError(w http.ResponseWriter, err error) {
	var domainErr *domain.DomainError
	code := "INTERNAL_ERROR"
	message := "internal error"
	status := http.StatusInternalServerError

	if errors.As(err, &domainErr) {
		code = domainErr.Code
		message = domainErr.Message

		switch domainErr.Code {
		case domain.ErrCodeValidation, domain.ErrCodeMissingRequiredField:
			status = http.StatusBadRequest
		case domain.ErrCodeRequestFailed:
			status = http.StatusBadGateway
		case domain.ErrCodeDialogBusy, domain.ErrCodeInvalidTransition:
			status = http.StatusConflict
		case domain.ErrCodeDialogNotFound, domain.ErrCodeTicketNotFound:
			status = http.StatusNotFound
		case errCodeUnauthorized:
			status = http.StatusUnauthorized
		default:
			status = http.StatusBadRequest
		}
	}

	respondWithJSON(w, status, &APIError{
		Code:    code,
		Message: message,
	})
}
