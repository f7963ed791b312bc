package router

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/balancer/backend-sub000/internal/domain"
)

// TokenID is a compact integer identifier for tokens
type TokenID uint32

// InvalidTokenID represents an invalid/unknown token
const InvalidTokenID TokenID = 0xFFFFFFFF

// TokenRegistry maps token addresses to dense ids so the graph can keep its
// adjacency and visited sets in slices.
type TokenRegistry struct {
	mu     sync.RWMutex
	toID   map[common.Address]TokenID
	tokens []*domain.Token // ID -> token
}

func NewTokenRegistry(capacity int) *TokenRegistry {
	return &TokenRegistry{
		toID:   make(map[common.Address]TokenID, capacity),
		tokens: make([]*domain.Token, 0, capacity),
	}
}

// GetOrCreate returns the ID for a token, registering it on first sight.
func (r *TokenRegistry) GetOrCreate(t *domain.Token) TokenID {
	r.mu.RLock()
	if id, ok := r.toID[t.Address]; ok {
		r.mu.RUnlock()
		return id
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double check after acquiring write lock
	if id, ok := r.toID[t.Address]; ok {
		return id
	}
	id := TokenID(len(r.tokens))
	r.toID[t.Address] = id
	r.tokens = append(r.tokens, t)
	return id
}

// GetID returns the ID for an address, or InvalidTokenID if not found
func (r *TokenRegistry) GetID(address common.Address) (TokenID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.toID[address]
	if !ok {
		return InvalidTokenID, false
	}
	return id, true
}

func (r *TokenRegistry) Token(id TokenID) *domain.Token {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.tokens) {
		return nil
	}
	return r.tokens[id]
}

func (r *TokenRegistry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tokens)
}
