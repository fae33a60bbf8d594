package auth

import (
	"sync"
	"time"

	"github.com/labring/devbox-console/pkg/utils"
)

// DefaultLoginTTL is how long a login token stays valid
const DefaultLoginTTL = time.Hour

type login struct {
	token   string
	created time.Time
}

// Logins tracks the login tokens issued per user
type Logins struct {
	mu     sync.RWMutex
	ttl    time.Duration
	logins map[string][]login
	now    func() time.Time
}

// NewLogins creates an empty token table
func NewLogins(ttl time.Duration) *Logins {
	if ttl <= 0 {
		ttl = DefaultLoginTTL
	}
	return &Logins{
		ttl:    ttl,
		logins: make(map[string][]login),
		now:    time.Now,
	}
}

// Add issues a new token for user and prunes the user's expired tokens
func (l *Logins) Add(user string) string {
	token := utils.NewToken()

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.unexpired(l.logins[user])
	l.logins[user] = append(kept, login{token: token, created: l.now()})
	return token
}

// Valid reports whether token is an unexpired token of user
func (l *Logins) Valid(user, token string) bool {
	if user == "" || token == "" {
		return false
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, lg := range l.logins[user] {
		if lg.token == token && l.now().Sub(lg.created) < l.ttl {
			return true
		}
	}
	return false
}

// Remove revokes token and drops the user's expired tokens
func (l *Logins) Remove(user, token string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var kept []login
	for _, lg := range l.logins[user] {
		if lg.token != token && l.now().Sub(lg.created) < l.ttl {
			kept = append(kept, lg)
		}
	}
	if len(kept) == 0 {
		delete(l.logins, user)
		return
	}
	l.logins[user] = kept
}

func (l *Logins) unexpired(in []login) []login {
	out := in[:0]
	for _, lg := range in {
		if l.now().Sub(lg.created) < l.ttl {
			out = append(out, lg)
		}
	}
	return out
}
