package assets

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

const (
	suffixAlphabet     = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	suffixLength       = 4
	defaultMaxAttempts = 50
)

// TakenFunc reports whether an inventory number is already used in the unit.
type TakenFunc func(ctx context.Context, number string) (bool, error)

// NumberGenerator builds INV-{code}-{YYYYMMDD}-{suffix} inventory numbers.
type NumberGenerator struct {
	intn        func(n int) int
	maxAttempts int
}

// NewNumberGenerator returns a generator backed by math/rand/v2.
func NewNumberGenerator() *NumberGenerator {
	return &NumberGenerator{intn: rand.IntN, maxAttempts: defaultMaxAttempts}
}

// NewNumberGeneratorWithSource lets callers supply the random source.
func NewNumberGeneratorWithSource(intn func(n int) int, maxAttempts int) *NumberGenerator {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &NumberGenerator{intn: intn, maxAttempts: maxAttempts}
}

// Generate returns a number not reported by taken and not already in batch.
// The result is added to batch. The database constraint remains the final guard.
func (g *NumberGenerator) Generate(ctx context.Context, productCode string, date time.Time, taken TakenFunc, batch map[string]struct{}) (string, error) {
	if g == nil {
		g = NewNumberGenerator()
	}
	prefix := fmt.Sprintf("INV-%s-%s-", productCode, date.Format("20060102"))
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		candidate := prefix + g.suffix()
		if _, dup := batch[candidate]; dup {
			continue
		}
		used, err := taken(ctx, candidate)
		if err != nil {
			return "", err
		}
		if used {
			continue
		}
		if batch != nil {
			batch[candidate] = struct{}{}
		}
		return candidate, nil
	}
	return "", fmt.Errorf("%w: %s after %d attempts", ErrNumberSpaceExhausted, prefix, g.maxAttempts)
}

func (g *NumberGenerator) suffix() string {
	buf := make([]byte, suffixLength)
	for i := range buf {
		buf[i] = suffixAlphabet[g.intn(len(suffixAlphabet))]
	}
	return string(buf)
}
