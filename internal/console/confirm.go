package console

import (
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// Ledger holds single-use confirmation tokens for irreversible actions.
type Ledger struct {
	tokens *cache.Cache
}

func NewLedger(ttl time.Duration) *Ledger {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Ledger{tokens: cache.New(ttl, 2*ttl)}
}

// Issue returns a token that approves action once.
func (l *Ledger) Issue(action string) string {
	token := uuid.NewString()
	l.tokens.SetDefault(token, action)
	return token
}

// Consume reports whether token approves action. A token is spent by the
// first Consume, matching or not.
func (l *Ledger) Consume(token, action string) bool {
	if token == "" {
		return false
	}
	v, ok := l.tokens.Get(token)
	if !ok {
		return false
	}
	l.tokens.Delete(token)
	got, _ := v.(string)
	return got == action
}
