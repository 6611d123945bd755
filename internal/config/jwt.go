package config

import (
	"errors"

	"github.com/spf13/viper"
)

const minJWTSecretLength = 16

var ErrWeakJWTSecret = errors.New("jwt.secret_key must be at least 16 bytes")

// JWTSecret returns the HS256 key for operator tokens. Tokens are neither
// signed nor accepted without one.
func JWTSecret() ([]byte, error) {
	secret := viper.GetString("jwt.secret_key")
	if len(secret) < minJWTSecretLength {
		return nil, ErrWeakJWTSecret
	}
	return []byte(secret), nil
}
