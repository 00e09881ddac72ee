// Package phrase implements the join-phrase scheme: a 32-bit seed encodes to
// a short transcribable word phrase handed to participants, and the same
// seed expands deterministically into the party's 128-bit identifier. Only
// the identifier is ever stored, so presenting a phrase is both necessary
// and sufficient to locate a party.
package phrase

import (
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	mrand "math/rand/v2"
	"strings"

	"github.com/google/uuid"
	"github.com/schollz/mnemonicode"
)

var ErrBadPhrase = errors.New("malformed join phrase")

// A seed is exactly four bytes; mnemonicode turns those into one word
// triple, and anything that decodes to a different length is rejected.
const seedBytes = 4

// Encode converts a seed to its join phrase. Injective over the full 32-bit
// space: distinct seeds always yield distinct phrases.
func Encode(seed uint32) string {
	var b [seedBytes]byte
	binary.BigEndian.PutUint32(b[:], seed)
	return strings.Join(mnemonicode.EncodeWordList(nil, b[:]), "-")
}

// Decode is the exact inverse of Encode. It returns ErrBadPhrase when a
// word is outside the mnemonicode list or the phrase does not decode to
// exactly four bytes. Case, surrounding whitespace and space-versus-hyphen
// separators are forgiven since phrases are relayed by hand.
func Decode(s string) (uint32, error) {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == '-' || r == ' ' || r == '\t' || r == '\n'
	})
	if len(words) == 0 {
		return 0, fmt.Errorf("%w: empty phrase", ErrBadPhrase)
	}

	raw, err := mnemonicode.DecodeWordList(nil, words)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBadPhrase, err)
	}
	if len(raw) != seedBytes {
		return 0, fmt.Errorf("%w: decodes to %d bytes, want %d", ErrBadPhrase, len(raw), seedBytes)
	}
	return binary.BigEndian.Uint32(raw), nil
}

// PartyID expands a seed into the party identifier: a ChaCha8 stream keyed
// by the seed's 64-bit expansion supplies 16 bytes, tagged as an RFC 4122
// random UUID. Deterministic across processes, which is what lets a phrase
// resolve a party without a stored phrase-to-party mapping.
func PartyID(seed uint32) uuid.UUID {
	var key [32]byte
	binary.BigEndian.PutUint64(key[:8], uint64(seed))
	stream := mrand.NewChaCha8(key)
	id, _ := uuid.NewRandomFromReader(stream) // ChaCha8 reads cannot fail
	return id
}

// NewSeed draws a fresh random seed for party creation.
func NewSeed() uint32 {
	b := make([]byte, 4)
	_, _ = crand.Read(b)
	return binary.BigEndian.Uint32(b)
}
