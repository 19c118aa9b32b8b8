package workflow

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
)

// RandomIssuer draws a 7-digit license number and an 8-digit regulator
// number. Uniqueness against the store is not checked.
type RandomIssuer struct{}

func (RandomIssuer) Issue(context.Context) (string, string, error) {
	license, err := randomInRange(1_000_000, 9_999_999)
	if err != nil {
		return "", "", fmt.Errorf("issue license number: %w", err)
	}
	regulator, err := randomInRange(10_000_000, 99_999_999)
	if err != nil {
		return "", "", fmt.Errorf("issue regulator number: %w", err)
	}
	return fmt.Sprint(license), fmt.Sprint(regulator), nil
}

func randomInRange(lo, hi int64) (int64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(hi-lo+1))
	if err != nil {
		return 0, err
	}
	return lo + n.Int64(), nil
}
