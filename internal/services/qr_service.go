package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"
	"log"
	"time"

	"github.com/SamiulxHasanx07/atm-management-system/internal/models"
	"github.com/go-redis/redis/v8"
	"github.com/skip2/go-qrcode"
)

const cardKitTTL = 24 * time.Hour

// QRService renders the welcome-kit QR code printed with a new card.
type QRService struct {
	redis *redis.Client
}

// NewQRService accepts a nil client; codes are then rendered on every call.
func NewQRService(redis *redis.Client) *QRService {
	return &QRService{redis: redis}
}

type cardKitPayload struct {
	Bank          string `json:"bank"`
	AccountNumber string `json:"accountNumber"`
	CardNumber    string `json:"cardNumber"`
	Name          string `json:"name"`
}

// CardKitQR returns a base64 PNG encoding the account's card details.
func (s *QRService) CardKitQR(ctx context.Context, account *models.Account) (string, error) {
	key := fmt.Sprintf("atm:cardkit:%s", account.CardNumber)
	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, key).Result(); err == nil {
			return cached, nil
		}
	}

	data, err := json.Marshal(cardKitPayload{
		Bank:          "Bangla Bank",
		AccountNumber: account.AccountNumber,
		CardNumber:    account.CardNumber,
		Name:          account.Name,
	})
	if err != nil {
		return "", err
	}

	qr, err := qrcode.New(string(data), qrcode.Medium)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return "", err
	}
	image := base64.StdEncoding.EncodeToString(buf.Bytes())

	if s.redis != nil {
		if err := s.redis.Set(ctx, key, image, cardKitTTL).Err(); err != nil {
			log.Printf("[QR] Failed to cache card kit for %s: %v", account.MaskedCard(), err)
		}
	}
	return image, nil
}
