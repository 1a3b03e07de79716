package identifier

import (
	"context"
	"errors"
	"fmt"
)

// ErrExhausted reports that every generated candidate collided within the
// configured attempt budget.
var ErrExhausted = errors.New("no unused identifier found")

// GenerateFunc produces a fresh identifier candidate.
type GenerateFunc func() (string, error)

// ExistsFunc probes whether a candidate is already registered.
type ExistsFunc func(ctx context.Context, candidate string) (bool, error)

// MintUnique generates candidates until one does not exist at the registry,
// giving up after maxAttempts. The exhaustion error states exactly how many
// attempts were made.
func MintUnique(ctx context.Context, generate GenerateFunc, exists ExistsFunc, maxAttempts int) (string, error) {
	if maxAttempts <= 0 {
		return "", fmt.Errorf("max attempts must be positive, got %d", maxAttempts)
	}
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		candidate, err := generate()
		if err != nil {
			return "", fmt.Errorf("generate candidate: %w", err)
		}
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check candidate: %w", err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: made %d attempt(s)", ErrExhausted, maxAttempts)
}
