package pools

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	cmn "github.com/balancer/backend-sub000/internal/common"
	"github.com/balancer/backend-sub000/internal/domain"
)

// Set is an arena of pools addressed by id. Paths refer to pools through a
// Set so a split candidate can price against its own cloned copy while the
// snapshot stays untouched.
type Set struct {
	pools map[common.Hash]Pool
	order []common.Hash
}

func NewSet(pools ...Pool) *Set {
	s := &Set{pools: make(map[common.Hash]Pool, len(pools))}
	for _, p := range pools {
		s.Put(p)
	}
	return s
}

// Put adds or replaces a pool.
func (s *Set) Put(p Pool) {
	if _, ok := s.pools[p.ID()]; !ok {
		s.order = append(s.order, p.ID())
	}
	s.pools[p.ID()] = p
}

func (s *Set) Get(id common.Hash) (Pool, error) {
	p, ok := s.pools[id]
	if !ok {
		return nil, fmt.Errorf("%w: pool %s not in set", cmn.ErrInvalidPath, id.Hex())
	}
	return p, nil
}

func (s *Set) Len() int { return len(s.order) }

// All returns the pools in insertion order.
func (s *Set) All() []Pool {
	out := make([]Pool, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.pools[id])
	}
	return out
}

// Clone deep-copies every pool.
func (s *Set) Clone() *Set {
	c := &Set{
		pools: make(map[common.Hash]Pool, len(s.pools)),
		order: append([]common.Hash(nil), s.order...),
	}
	for id, p := range s.pools {
		c.pools[id] = p.Clone()
	}
	return c
}

// Subset clones only the listed pools.
func (s *Set) Subset(ids []common.Hash) (*Set, error) {
	c := &Set{pools: make(map[common.Hash]Pool, len(ids))}
	for _, id := range ids {
		if _, ok := c.pools[id]; ok {
			continue
		}
		p, err := s.Get(id)
		if err != nil {
			return nil, err
		}
		c.pools[id] = p.Clone()
		c.order = append(c.order, id)
	}
	return c, nil
}

// Tokens returns every distinct token across the set, in first-seen order.
func (s *Set) Tokens() []*domain.Token {
	seen := make(map[common.Address]struct{})
	var out []*domain.Token
	for _, p := range s.All() {
		for _, t := range p.Tokens() {
			if _, ok := seen[t.Address]; ok {
				continue
			}
			seen[t.Address] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}
