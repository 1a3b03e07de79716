// Package identifier generates NOID-style identifier candidates and mints
// unique ones against an existence probe with a bounded retry budget.
package identifier

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Betanumeric is the NOID candidate alphabet: digits plus consonants, with
// vowels and ambiguous letters removed so identifiers stay unambiguous when
// read aloud or transcribed.
const Betanumeric = "0123456789bcdfghjkmnpqrstvwxz"

// firstChars restricts the leading character to a letter so the identifier
// is usable as an XML ID.
const firstChars = "bcdfghjkmnpqrstvwxz"

// DefaultLength is the candidate length used when none is configured.
const DefaultLength = 15

// New returns a random identifier candidate of the given length.
func New(length int) (string, error) {
	if length <= 0 {
		length = DefaultLength
	}
	buf := make([]byte, length)
	first, err := randomChar(firstChars)
	if err != nil {
		return "", err
	}
	buf[0] = first
	for i := 1; i < length; i++ {
		ch, err := randomChar(Betanumeric)
		if err != nil {
			return "", err
		}
		buf[i] = ch
	}
	return string(buf), nil
}

func randomChar(alphabet string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
	if err != nil {
		return 0, fmt.Errorf("random index: %w", err)
	}
	return alphabet[n.Int64()], nil
}
