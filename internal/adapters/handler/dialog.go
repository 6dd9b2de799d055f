package handler

import (
	"encoding/json"
	"net/http"

	"github.com/l2p-cooperative/deposit-gateway/internal/adapters/payment"
	"github.com/l2p-cooperative/deposit-gateway/internal/core/domain"
	"github.com/shopspring/decimal"
)

type DepositRequest struct {
	AccountID   string          `json:"accountId" example:"acc-42"`
	Amount      decimal.Decimal `json:"amount" swaggertype:"integer" example:"5000"`
	PhoneNumber string          `json:"phoneNumber" example:"+237670000000"`
	Method      string          `json:"method" example:"MTN"`
}

// HandleOpen opens a dialog bound to the caller's bearer token
// @Summary      Open a deposit dialog
// @Tags         dialogs
// @Produce      json
// @Security     BearerAuth
// @Success      201  {object}  APIResponse  "Dialog opened"
// @Failure      401  {object}  APIResponse  "Missing bearer token"
// @Router       /dialogs [post]
func (h *DialogHandler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		respondWithError(w, &domain.DomainError{
			Code:    errCodeUnauthorized,
			Message: "Authorization bearer token is required",
		})
		return
	}

	d := h.dialogs.Open(payment.StaticToken(token))
	respondWithJSON(w, http.StatusCreated, toDialogResponse(d.Snapshot()))
}

// HandleGet returns the current snapshot
// @Summary      Get a dialog
// @Tags         dialogs
// @Produce      json
// @Param        id   path      string       true  "Dialog ID"
// @Success      200  {object}  APIResponse
// @Failure      404  {object}  APIResponse
// @Router       /dialogs/{id} [get]
func (h *DialogHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	d, err := h.dialog(r)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, toDialogResponse(d.Snapshot()))
}

// HandleDeposit submits a deposit and returns once the processor has
// accepted it. The outcome arrives later on the events stream.
// @Summary      Submit a deposit
// @Tags         dialogs
// @Accept       json
// @Produce      json
// @Param        id       path      string          true  "Dialog ID"
// @Param        request  body      DepositRequest  true  "Deposit details"
// @Success      202      {object}  APIResponse     "Waiting for confirmation"
// @Failure      400      {object}  APIResponse     "Invalid deposit"
// @Failure      409      {object}  APIResponse     "A deposit is already in progress"
// @Failure      502      {object}  APIResponse     "Payment API rejected or unreachable"
// @Router       /dialogs/{id}/deposit [post]
func (h *DialogHandler) HandleDeposit(w http.ResponseWriter, r *http.Request) {
	d, err := h.dialog(r)
	if err != nil {
		respondWithError(w, err)
		return
	}

	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, domain.NewValidationError("body", "must be a JSON deposit request"))
		return
	}

	snap, err := d.Submit(r.Context(), domain.DepositRequest{
		AccountID:   req.AccountID,
		Amount:      req.Amount,
		PhoneNumber: req.PhoneNumber,
		Method:      domain.PaymentMethod(req.Method),
	})
	if err != nil {
		respondWithError(w, err)
		return
	}

	status := http.StatusAccepted
	if snap.State != domain.DialogWaiting {
		status = http.StatusOK
	}
	respondWithJSON(w, status, toDialogResponse(snap))
}

// HandleReset returns a finished dialog to IDLE
// @Summary      Reset a dialog
// @Tags         dialogs
// @Produce      json
// @Param        id   path      string       true  "Dialog ID"
// @Success      200  {object}  APIResponse
// @Failure      409  {object}  APIResponse  "Deposit still in progress"
// @Router       /dialogs/{id}/reset [post]
func (h *DialogHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	d, err := h.dialog(r)
	if err != nil {
		respondWithError(w, err)
		return
	}

	snap, err := d.Reset()
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, toDialogResponse(snap))
}

// HandleClose cancels any deposit in flight and forgets the dialog
// @Summary      Close a dialog
// @Tags         dialogs
// @Produce      json
// @Param        id   path      string       true  "Dialog ID"
// @Success      200  {object}  APIResponse
// @Failure      404  {object}  APIResponse
// @Router       /dialogs/{id} [delete]
func (h *DialogHandler) HandleClose(w http.ResponseWriter, r *http.Request) {
	d, err := h.dialog(r)
	if err != nil {
		respondWithError(w, err)
		return
	}

	snap, err := h.dialogs.Close(d.ID())
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, toDialogResponse(snap))
}
