package router

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/zeebo/blake3"

	cmn "github.com/balancer/backend-sub000/internal/common"
	"github.com/balancer/backend-sub000/internal/domain"
)

// Operation is what a hop does inside its pool.
type Operation uint8

const (
	OpSwap Operation = iota
	OpAddLiquidity
	OpRemoveLiquidity
)

func (o Operation) String() string {
	switch o {
	case OpAddLiquidity:
		return "AddLiquidity"
	case OpRemoveLiquidity:
		return "RemoveLiquidity"
	default:
		return "Swap"
	}
}

func (o Operation) reverse() Operation {
	switch o {
	case OpAddLiquidity:
		return OpRemoveLiquidity
	case OpRemoveLiquidity:
		return OpAddLiquidity
	default:
		return OpSwap
	}
}

// PathID identifies a path by its tokens, pools and operations.
type PathID [32]byte

// Path is an ordered chain of hops: Tokens[i] enters Pools[i] and
// Tokens[i+1] leaves it.
type Path struct {
	Tokens []*domain.Token
	Pools  []common.Hash
	Ops    []Operation
}

// NewPath validates hop counts. A nil ops slice means every hop is a swap.
func NewPath(tokens []*domain.Token, poolIDs []common.Hash, ops []Operation) (*Path, error) {
	if len(poolIDs) == 0 {
		return nil, fmt.Errorf("%w: path has no pools", cmn.ErrInvalidPath)
	}
	if len(tokens) != len(poolIDs)+1 {
		return nil, fmt.Errorf("%w: %d tokens for %d pools", cmn.ErrInvalidPath, len(tokens), len(poolIDs))
	}
	if ops == nil {
		ops = make([]Operation, len(poolIDs))
	}
	if len(ops) != len(poolIDs) {
		return nil, fmt.Errorf("%w: %d operations for %d pools", cmn.ErrInvalidPath, len(ops), len(poolIDs))
	}
	for i := 0; i < len(poolIDs); i++ {
		if tokens[i] == nil || tokens[i+1] == nil {
			return nil, fmt.Errorf("%w: nil token at hop %d", cmn.ErrInvalidPath, i)
		}
		if tokens[i].IsSame(tokens[i+1]) {
			return nil, fmt.Errorf("%w: hop %d swaps %s for itself", cmn.ErrInvalidPath, i, tokens[i])
		}
	}
	return &Path{
		Tokens: append([]*domain.Token(nil), tokens...),
		Pools:  append([]common.Hash(nil), poolIDs...),
		Ops:    append([]Operation(nil), ops...),
	}, nil
}

func (p *Path) TokenIn() *domain.Token  { return p.Tokens[0] }
func (p *Path) TokenOut() *domain.Token { return p.Tokens[len(p.Tokens)-1] }
func (p *Path) Hops() int               { return len(p.Pools) }

// Reverse walks the same pools from the output token back to the input,
// turning joins into exits and exits into joins.
func (p *Path) Reverse() *Path {
	n := len(p.Pools)
	r := &Path{
		Tokens: make([]*domain.Token, n+1),
		Pools:  make([]common.Hash, n),
		Ops:    make([]Operation, n),
	}
	for i, t := range p.Tokens {
		r.Tokens[n-i] = t
	}
	for i := range p.Pools {
		r.Pools[n-1-i] = p.Pools[i]
		r.Ops[n-1-i] = p.Ops[i].reverse()
	}
	return r
}

func (p *Path) ID() PathID {
	h := blake3.New()
	var buf [8]byte
	for _, t := range p.Tokens {
		binary.BigEndian.PutUint64(buf[:], t.ChainID)
		h.Write(buf[:])
		h.Write(t.Address.Bytes())
	}
	for i, id := range p.Pools {
		h.Write(id.Bytes())
		h.Write([]byte{byte(p.Ops[i])})
	}
	var out PathID
	copy(out[:], h.Sum(nil))
	return out
}

func (p *Path) String() string {
	var b strings.Builder
	b.WriteString(p.Tokens[0].String())
	for i, id := range p.Pools {
		fmt.Fprintf(&b, " -[%s %s]-> %s", p.Ops[i], id.TerminalString(), p.Tokens[i+1])
	}
	return b.String()
}
