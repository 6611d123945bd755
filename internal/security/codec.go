package security

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"regexp"

	"github.com/spf13/viper"
	"golang.org/x/crypto/argon2"
)

var pinPattern = regexp.MustCompile(`^\d{4}$`)

// PINCodec hashes PINs for storage and comparison. Digests are never reversible.
type PINCodec interface {
	Hash(pin string) (string, error)
	Verify(pin, digest string) bool
}

// Config holds Argon2id parameters. Salt acts as a server-side pepper, which keeps
// digests deterministic for a given deployment.
type Config struct {
	Salt      []byte
	Time      uint32
	Memory    uint32
	Threads   uint8
	KeyLength uint32
}

// LoadConfig reads security.salt and the argon2.* keys.
func LoadConfig() Config {
	viper.SetDefault("argon2.time", 1)
	viper.SetDefault("argon2.memory", 64*1024)
	viper.SetDefault("argon2.threads", 4)
	viper.SetDefault("argon2.key_length", 32)

	return Config{
		Salt:      []byte(viper.GetString("security.salt")),
		Time:      uint32(viper.GetInt("argon2.time")),
		Memory:    uint32(viper.GetInt("argon2.memory")),
		Threads:   uint8(viper.GetInt("argon2.threads")),
		KeyLength: uint32(viper.GetInt("argon2.key_length")),
	}
}

// Argon2Codec implements PINCodec with Argon2id.
type Argon2Codec struct {
	cfg Config
}

// NewArgon2Codec validates the configuration and fills in defaults for zero parameters.
func NewArgon2Codec(cfg Config) (*Argon2Codec, error) {
	if len(cfg.Salt) < 8 {
		return nil, errors.New("PIN salt must be at least 8 bytes")
	}
	if cfg.Time == 0 {
		cfg.Time = 1
	}
	if cfg.Memory == 0 {
		cfg.Memory = 64 * 1024
	}
	if cfg.Threads == 0 {
		cfg.Threads = 4
	}
	if cfg.KeyLength == 0 {
		cfg.KeyLength = 32
	}
	return &Argon2Codec{cfg: cfg}, nil
}

// IsValidPIN reports whether pin is exactly four digits.
func IsValidPIN(pin string) bool {
	return pinPattern.MatchString(pin)
}

// Hash returns the base64 Argon2id digest of pin.
func (c *Argon2Codec) Hash(pin string) (string, error) {
	if pin == "" {
		return "", errors.New("empty PIN")
	}
	return base64.StdEncoding.EncodeToString(c.derive(pin)), nil
}

// Verify reports whether pin hashes to digest.
func (c *Argon2Codec) Verify(pin, digest string) bool {
	stored, err := base64.StdEncoding.DecodeString(digest)
	if err != nil || len(stored) != int(c.cfg.KeyLength) {
		return false
	}
	return subtle.ConstantTimeCompare(c.derive(pin), stored) == 1
}

func (c *Argon2Codec) derive(pin string) []byte {
	return argon2.IDKey([]byte(pin), c.cfg.Salt, c.cfg.Time, c.cfg.Memory, c.cfg.Threads, c.cfg.KeyLength)
}
