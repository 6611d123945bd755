package services

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

const (
	accountNumberDigits = 12
	cardNumberDigits    = 16
	pinDigits           = 4
)

// numberGenerator draws uniform random digit strings of a fixed length.
type numberGenerator struct {
	reader io.Reader
}

func newNumberGenerator(reader io.Reader) *numberGenerator {
	if reader == nil {
		reader = rand.Reader
	}
	return &numberGenerator{reader: reader}
}

func (g *numberGenerator) digits(n int) (string, error) {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
	v, err := rand.Int(g.reader, limit)
	if err != nil {
		return "", fmt.Errorf("failed to read random source: %w", err)
	}
	return fmt.Sprintf("%0*d", n, v), nil
}

func (g *numberGenerator) AccountNumber() (string, error) {
	return g.digits(accountNumberDigits)
}

func (g *numberGenerator) CardNumber() (string, error) {
	return g.digits(cardNumberDigits)
}

func (g *numberGenerator) PIN() (string, error) {
	return g.digits(pinDigits)
}

// unique draws from next until taken reports false, at most retries times.
func unique(retries int, next func() (string, error), taken func(string) (bool, error)) (string, error) {
	for i := 0; i < retries; i++ {
		candidate, err := next()
		if err != nil {
			return "", err
		}
		used, err := taken(candidate)
		if err != nil {
			return "", err
		}
		if !used {
			return candidate, nil
		}
	}
	return "", ErrGenerationExhausted
}
