package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/SamiulxHasanx07/atm-management-system/internal/config"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ErrorResponse represents error response structure
type ErrorResponse struct {
	Error   string            `json:"error"`             // Error message
	Details map[string]string `json:"details,omitempty"` // Validation details
}

// ValidationHelper provides shared validation functionality
type ValidationHelper struct {
	validator *validator.Validate
}

// NewValidationHelper creates a new validation helper
func NewValidationHelper() *ValidationHelper {
	return &ValidationHelper{
		validator: validator.New(),
	}
}

// ValidateStruct validates a struct and returns validation errors
func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

// CreateAccountRequest carries the account opening form.
type CreateAccountRequest struct {
	Name           string          `json:"name" validate:"required,min=2"`
	PhoneNumber    string          `json:"phoneNumber" validate:"required,number,min=10,max=15"`
	InitialDeposit decimal.Decimal `json:"initialDeposit"`
	Email          string          `json:"email" validate:"required,contains=@"`
	Gender         string          `json:"gender" validate:"required"`
	Profession     string          `json:"profession" validate:"required"`
	Nationality    string          `json:"nationality"`
	NID            string          `json:"nid" validate:"required,number,min=4"`
	Address        string          `json:"address" validate:"required"`
}

// DigitsOnly strips every non-digit character.
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// normalize trims the form and applies defaults before validation.
func (r CreateAccountRequest) normalize(cfg *config.ATMConfig) CreateAccountRequest {
	r.Name = strings.TrimSpace(r.Name)
	r.PhoneNumber = DigitsOnly(r.PhoneNumber)
	r.Email = normalizeEmail(r.Email)
	r.Gender = strings.TrimSpace(r.Gender)
	r.Profession = strings.TrimSpace(r.Profession)
	r.Nationality = strings.TrimSpace(r.Nationality)
	if r.Nationality == "" {
		r.Nationality = cfg.DefaultNationality
	}
	r.NID = strings.TrimSpace(r.NID)
	r.Address = strings.TrimSpace(r.Address)
	return r
}

// validateCreateRequest returns the normalized request or an ErrValidation-wrapped error.
func validateCreateRequest(vh *ValidationHelper, cfg *config.ATMConfig, req CreateAccountRequest) (CreateAccountRequest, error) {
	req = req.normalize(cfg)
	if err := vh.ValidateStruct(&req); err != nil {
		return req, &FieldError{Err: err}
	}
	if req.InitialDeposit.LessThan(cfg.MinInitialDeposit) {
		return req, fmt.Errorf("%w: initial deposit must be at least %s", ErrValidation, cfg.MinInitialDeposit.StringFixed(2))
	}
	return req, nil
}

// FieldError wraps validator errors so callers can match ErrValidation.
type FieldError struct {
	Err error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", ErrValidation.Error(), e.Err)
}

func (e *FieldError) Unwrap() []error {
	return []error{ErrValidation, e.Err}
}

// SendErrorResponse sends a JSON error response
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResp := ErrorResponse{Error: message}
	var fieldErrs validator.ValidationErrors
	if validationErr != nil && errors.As(validationErr, &fieldErrs) {
		errorResp.Details = make(map[string]string)
		for _, err := range fieldErrs {
			errorResp.Details[err.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", err.Tag())
		}
	}

	json.NewEncoder(w).Encode(errorResp)
}
