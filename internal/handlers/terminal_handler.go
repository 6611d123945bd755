package handlers

import (
	"log"
	"net/http"

	"github.com/SamiulxHasanx07/atm-management-system/internal/services"
	"github.com/go-chi/chi/v5"
)

type TerminalHandler struct {
	service   *services.TerminalService
	validator *services.ValidationHelper
}

func NewTerminalHandler(service *services.TerminalService) *TerminalHandler {
	return &TerminalHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

type inputRequest struct {
	Type  string `json:"type" validate:"required,oneof=DIGIT CLEAR CONFIRM OPTION"`
	Value string `json:"value,omitempty"`
}

// Screen returns the terminal's current display.
func (h *TerminalHandler) Screen(w http.ResponseWriter, r *http.Request) {
	terminalID := chi.URLParam(r, "terminalId")

	out, err := h.service.Screen(r.Context(), terminalID)
	if err != nil {
		log.Printf("[TERMINAL] Screen failed for %s: %v", terminalID, err)
		services.SendErrorResponse(w, "Terminal unavailable", http.StatusServiceUnavailable, nil)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Input applies one keypad or side-button press.
func (h *TerminalHandler) Input(w http.ResponseWriter, r *http.Request) {
	terminalID := chi.URLParam(r, "terminalId")

	var req inputRequest
	if err := decodeBody(w, r, &req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	ev, err := services.ParseInputEvent(req.Type, req.Value)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	out, err := h.service.Handle(r.Context(), terminalID, ev)
	if err != nil {
		log.Printf("[TERMINAL] Input failed for %s: %v", terminalID, err)
		services.SendErrorResponse(w, "Terminal unavailable", http.StatusServiceUnavailable, nil)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Reset returns the terminal to the welcome screen.
func (h *TerminalHandler) Reset(w http.ResponseWriter, r *http.Request) {
	terminalID := chi.URLParam(r, "terminalId")
	if err := h.service.Reset(r.Context(), terminalID); err != nil {
		services.SendErrorResponse(w, "Terminal unavailable", http.StatusServiceUnavailable, nil)
		return
	}
	h.Screen(w, r)
}
