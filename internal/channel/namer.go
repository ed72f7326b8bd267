package channel

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
)

const (
	PrefixAgent = "agent"
	PrefixCall  = "call"

	// SuffixLen is the number of hex characters appended to the prefix (48 bits).
	SuffixLen = 12
)

var ErrInvalidPrefix = errors.New("channel: invalid prefix")

// Namer produces collision-resistant channel names of the form <prefix>_<hex>.
// Names are not checked against previously issued ones.
type Namer struct {
	// Entropy defaults to crypto/rand.
	Entropy io.Reader
}

func NewNamer() *Namer {
	return &Namer{Entropy: rand.Reader}
}

func (n *Namer) NewChannel(prefix string) (string, error) {
	if prefix == "" || strings.ContainsAny(prefix, "_ \t\n") {
		return "", ErrInvalidPrefix
	}
	r := n.Entropy
	if r == nil {
		r = rand.Reader
	}
	id, err := uuid.NewRandomFromReader(r)
	if err != nil {
		return "", fmt.Errorf("channel: read entropy: %w", err)
	}
	hex := strings.ReplaceAll(id.String(), "-", "")
	return prefix + "_" + hex[:SuffixLen], nil
}
