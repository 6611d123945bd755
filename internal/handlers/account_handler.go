package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/SamiulxHasanx07/atm-management-system/internal/middleware"
	"github.com/SamiulxHasanx07/atm-management-system/internal/models"
	"github.com/SamiulxHasanx07/atm-management-system/internal/seclog"
	"github.com/SamiulxHasanx07/atm-management-system/internal/services"
	"github.com/go-chi/chi/v5"
)

// AccountHandler serves the operator account-management API.
type AccountHandler struct {
	ledger    services.AccountLedger
	qr        *services.QRService
	validator *services.ValidationHelper
	events    *seclog.Logger
	now       func() time.Time
}

func NewAccountHandler(ledger services.AccountLedger, qr *services.QRService) *AccountHandler {
	return &AccountHandler{
		ledger:    ledger,
		qr:        qr,
		validator: services.NewValidationHelper(),
		events:    seclog.NewLogger(),
		now:       time.Now,
	}
}

type createAccountResponse struct {
	Account *models.Account `json:"account"`
	CardKit string          `json:"cardKitQr,omitempty"`
}

type pinResetRequest struct {
	IdentityProof string `json:"identityProof" validate:"required,len=4,number"`
}

func operator(r *http.Request) string {
	id, _ := middleware.OperatorID(r.Context())
	return id
}

// Create opens an account. The generated PIN is returned in this response only.
func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req services.CreateAccountRequest
	if err := decodeBody(w, r, &req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	account, err := h.ledger.Create(r.Context(), req)
	if err != nil {
		log.Printf("[ACCOUNTS] Create failed (operator %s): %v", operator(r), err)
		sendLedgerError(w, err)
		return
	}

	resp := createAccountResponse{Account: account}
	if h.qr != nil {
		kit, err := h.qr.CardKitQR(r.Context(), account)
		if err != nil {
			log.Printf("[ACCOUNTS] Card kit QR failed for %s: %v", account.MaskedCard(), err)
		}
		resp.CardKit = kit
	}

	h.events.LogOperation(operator(r), account.MaskedCard(), seclog.EventAccountOpened, map[string]string{"account_number": account.AccountNumber})
	writeJSON(w, http.StatusCreated, resp)
}

func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.ledger.List(r.Context())
	if err != nil {
		sendLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": accounts, "count": len(accounts)})
}

func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	account, err := h.ledger.FindByCard(r.Context(), chi.URLParam(r, "cardNumber"))
	h.respondAccount(w, account, err)
}

// Lookup finds an account by exactly one of account, phone, email or nid.
func (h *AccountHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ctx := r.Context()

	var account *models.Account
	var err error
	switch {
	case q.Get("account") != "":
		account, err = h.ledger.FindByAccountNumber(ctx, q.Get("account"))
	case q.Get("phone") != "":
		account, err = h.ledger.FindByPhone(ctx, q.Get("phone"))
	case q.Get("email") != "":
		account, err = h.ledger.FindByEmail(ctx, q.Get("email"))
	case q.Get("nid") != "":
		account, err = h.ledger.FindByNID(ctx, q.Get("nid"))
	default:
		services.SendErrorResponse(w, "One of account, phone, email or nid is required", http.StatusBadRequest, nil)
		return
	}
	h.respondAccount(w, account, err)
}

// Transactions returns the card's statement, newest first.
func (h *AccountHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	cardNumber := chi.URLParam(r, "cardNumber")

	filter, err := services.ParseStatementFilter(r.URL.Query().Get("type"), r.URL.Query().Get("period"))
	if err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	account, err := h.ledger.FindByCard(r.Context(), cardNumber)
	if err != nil || account == nil {
		h.respondAccount(w, account, err)
		return
	}

	txs, err := h.ledger.TransactionsFor(r.Context(), cardNumber)
	if err != nil {
		sendLedgerError(w, err)
		return
	}
	txs = services.FilterTransactions(txs, filter, h.now())
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txs, "count": len(txs)})
}

func (h *AccountHandler) Block(w http.ResponseWriter, r *http.Request) {
	h.setBlocked(w, r, true)
}

func (h *AccountHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	h.setBlocked(w, r, false)
}

// ResetPIN issues a fresh PIN after checking the last four NID digits.
func (h *AccountHandler) ResetPIN(w http.ResponseWriter, r *http.Request) {
	cardNumber := chi.URLParam(r, "cardNumber")

	var req pinResetRequest
	if err := decodeBody(w, r, &req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	pin, err := h.ledger.ResetPINByIdentity(r.Context(), cardNumber, req.IdentityProof)
	if err != nil {
		log.Printf("[ACCOUNTS] PIN reset failed for %s: %v", models.MaskCardNumber(cardNumber), err)
		sendLedgerError(w, err)
		return
	}

	h.events.LogOperation(operator(r), models.MaskCardNumber(cardNumber), seclog.EventPINReset, nil)
	writeJSON(w, http.StatusOK, map[string]any{"cardNumber": cardNumber, "pin": pin, "blocked": false})
}

func (h *AccountHandler) setBlocked(w http.ResponseWriter, r *http.Request, blocked bool) {
	cardNumber := chi.URLParam(r, "cardNumber")

	var err error
	if blocked {
		err = h.ledger.Block(r.Context(), cardNumber)
	} else {
		err = h.ledger.Unblock(r.Context(), cardNumber)
	}
	if err != nil {
		sendLedgerError(w, err)
		return
	}

	event := seclog.EventCardUnblocked
	if blocked {
		event = seclog.EventCardBlocked
	}
	h.events.LogOperation(operator(r), models.MaskCardNumber(cardNumber), event, nil)
	writeJSON(w, http.StatusOK, map[string]any{"cardNumber": cardNumber, "blocked": blocked})
}

func (h *AccountHandler) respondAccount(w http.ResponseWriter, account *models.Account, err error) {
	if err != nil {
		sendLedgerError(w, err)
		return
	}
	if account == nil {
		services.SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		return
	}
	writeJSON(w, http.StatusOK, account)
}
