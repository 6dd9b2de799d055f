package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/l2p-cooperative/deposit-gateway/internal/core/domain"
	"github.com/l2p-cooperative/deposit-gateway/internal/core/ports"
	"github.com/l2p-cooperative/deposit-gateway/internal/core/service"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"
)

// DialogManager is the part of service.DialogManager the handlers use.
type DialogManager interface {
	Open(tokens ports.TokenSource) *service.Dialog
	Get(id uuid.UUID) (*service.Dialog, error)
	Close(id uuid.UUID) (service.Snapshot, error)
}

type DialogHandler struct {
	dialogs DialogManager
	logger  *slog.Logger
}

func NewDialogHandler(dialogs DialogManager, logger *slog.Logger) *DialogHandler {
	return &DialogHandler{
		dialogs: dialogs,
		logger:  logger,
	}
}

func (h *DialogHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /dialogs", h.HandleOpen)
	mux.HandleFunc("GET /dialogs/{id}", h.HandleGet)
	mux.HandleFunc("DELETE /dialogs/{id}", h.HandleClose)
	mux.HandleFunc("POST /dialogs/{id}/deposit", h.HandleDeposit)
	mux.HandleFunc("POST /dialogs/{id}/reset", h.HandleReset)
	mux.HandleFunc("GET /dialogs/{id}/events", h.HandleEvents)
}

func (h *DialogHandler) dialog(r *http.Request) (*service.Dialog, error) {
	var id openapi_types.UUID
	err := runtime.BindStyledParameterWithOptions("simple", "id", r.PathValue("id"), &id, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	if err != nil {
		return nil, domain.NewValidationError("id", "must be a UUID")
	}
	return h.dialogs.Get(id)
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
