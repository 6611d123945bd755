package services

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/SamiulxHasanx07/atm-management-system/internal/config"
	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
)

// AuthService issues and revokes operator tokens for the account API.
type AuthService struct {
	redis     *redis.Client
	validator *ValidationHelper
}

// TokenRequest represents the operator token request payload
type TokenRequest struct {
	OperatorID string `json:"operatorId" validate:"required,min=2"`
	APIKey     string `json:"apiKey" validate:"required"`
}

// TokenResponse represents the operator token response
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func NewAuthService(redisClient *redis.Client) *AuthService {
	return &AuthService{
		redis:     redisClient,
		validator: NewValidationHelper(),
	}
}

// IssueToken exchanges the operator API key for a bearer token.
func (s *AuthService) IssueToken(w http.ResponseWriter, r *http.Request) {
	log.Printf("[AUTH] Token request from IP: %s", r.RemoteAddr)

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req TokenRequest
	if err := dec.Decode(&req); err != nil {
		log.Printf("[AUTH] Token request failed - invalid request: %v", err)
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		log.Printf("[AUTH] Multiple JSON objects detected")
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	if !validAPIKey(req.APIKey) {
		log.Printf("[AUTH] Invalid API key for operator: %s", req.OperatorID)
		SendErrorResponse(w, "Invalid credentials", http.StatusUnauthorized, nil)
		return
	}

	token, expiresAt, err := generateJWT(req.OperatorID)
	if err != nil {
		log.Printf("[AUTH] JWT generation failed for operator %s: %v", req.OperatorID, err)
		SendErrorResponse(w, "Failed to generate token", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[AUTH] Token issued for operator %s", req.OperatorID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(TokenResponse{Token: token, ExpiresAt: expiresAt})
}

// Logout revokes the bearer token until it would have expired.
func (s *AuthService) Logout(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token != "" && s.redis != nil {
		key := fmt.Sprintf("blacklist:%s", token)
		if err := s.redis.Set(r.Context(), key, "1", tokenLifetime()).Err(); err != nil {
			log.Printf("[AUTH] Failed to blacklist token: %v", err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Logout successful"})
}

func validAPIKey(key string) bool {
	expected := viper.GetString("operator.api_key")
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(expected)) == 1
}

func tokenLifetime() time.Duration {
	hours := viper.GetInt("jwt.expiry_hours")
	if hours <= 0 {
		hours = 8
	}
	return time.Duration(hours) * time.Hour
}

func generateJWT(operatorID string) (string, time.Time, error) {
	expiresAt := time.Now().Add(tokenLifetime())

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"operator_id": operatorID,
		"exp":         expiresAt.Unix(),
	})
	secret, err := config.JWTSecret()
	if err != nil {
		return "", time.Time{}, err
	}
	signed, err := token.SignedString(secret)
	return signed, expiresAt, err
}
