package handlers

import (
	"encoding/base64"
	"log"
	"net/http"

	"github.com/SamiulxHasanx07/atm-management-system/internal/services"
	"github.com/go-chi/chi/v5"
)

type QRHandler struct {
	ledger  services.AccountLedger
	service *services.QRService
}

func NewQRHandler(ledger services.AccountLedger, service *services.QRService) *QRHandler {
	return &QRHandler{
		ledger:  ledger,
		service: service,
	}
}

// CardKit reprints the welcome-kit QR for an existing card.
// With ?format=png the image is returned directly instead of as base64 JSON.
func (h *QRHandler) CardKit(w http.ResponseWriter, r *http.Request) {
	cardNumber := chi.URLParam(r, "cardNumber")

	account, err := h.ledger.FindByCard(r.Context(), cardNumber)
	if err != nil {
		sendLedgerError(w, err)
		return
	}
	if account == nil {
		services.SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		return
	}

	qrImage, err := h.service.CardKitQR(r.Context(), account)
	if err != nil {
		log.Printf("[QR] Card kit render failed for %s: %v", account.MaskedCard(), err)
		services.SendErrorResponse(w, "Failed to render card kit", http.StatusInternalServerError, nil)
		return
	}

	if r.URL.Query().Get("format") == "png" {
		raw, err := base64.StdEncoding.DecodeString(qrImage)
		if err != nil {
			services.SendErrorResponse(w, "Failed to render card kit", http.StatusInternalServerError, nil)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(raw)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"cardNumber": account.CardNumber,
		"qrImage":    qrImage,
	})
}
