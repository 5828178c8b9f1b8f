package fixture

import (
	"fmt"
	"sync"

	platformstrings "groundtruth/pkg/platform/strings"
)

// NamePrefix marks every synthetic name-like value. Sweeps match on it.
const NamePrefix = "TEST-"

// EmailDomain is the synthetic address domain. No real mailbox lives there.
const EmailDomain = "groundtruth.test"

// Minted is one entity's worth of synthetic values.
type Minted struct {
	Seq   int
	Name  string
	Email string
}

// Namer mints the values that mark a record as harness-owned. Within a run
// they are deterministic: the run token plus a per-kind sequence. Across
// runs the token keeps namespaces apart, so parallel runs against a shared
// database never collide.
type Namer struct {
	token string

	mu  sync.Mutex
	seq map[Kind]int
}

// NewNamer derives the run token from the run id: sanitized, first eight
// characters. A UUID works well here.
func NewNamer(runID string) *Namer {
	token := platformstrings.SafeToken(runID)
	if len(token) > 8 {
		token = token[:8]
	}
	if token == "" {
		token = "local"
	}
	return &Namer{token: token, seq: make(map[Kind]int)}
}

// RunToken is the namespace fragment embedded in every minted value.
func (n *Namer) RunToken() string { return n.token }

// Mint issues the next set of synthetic values for a kind.
func (n *Namer) Mint(kind Kind) Minted {
	n.mu.Lock()
	n.seq[kind]++
	seq := n.seq[kind]
	n.mu.Unlock()

	return Minted{
		Seq:   seq,
		Name:  fmt.Sprintf("%s%s-%s-%04d", NamePrefix, n.token, kind, seq),
		Email: fmt.Sprintf("qa+%s-%s-%04d@%s", n.token, kind, seq, EmailDomain),
	}
}
