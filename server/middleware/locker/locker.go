// Package locker provides an HTTP middleware that lets one client claim a
// device.  While locked, protected routes answer 423 (Locked)
package locker

import (
	"encoding/json"
	"go/types"
	"net/http"
	"path"
	"sync"

	"github.com/crossbar-lab/xbar/generichttp"
)

// ManipulableLock is a lock which can be toggled and checked over HTTP
type ManipulableLock interface {
	Lock()
	Unlock()
	Locked() bool
	Check(http.Handler) http.Handler
	HTTPGet(http.ResponseWriter, *http.Request)
	HTTPSet(http.ResponseWriter, *http.Request)
}

// Inject adds GET and POST /lock to the route table of other
func Inject(other generichttp.HTTPer, l ManipulableLock) {
	rt := other.RT()
	rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/lock"}] = l.HTTPGet
	rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/lock"}] = l.HTTPSet
}

// Locker is a non-blocking lock flag with a set of routes it never guards
type Locker struct {
	mu     sync.RWMutex
	locked bool

	// DoNotProtect holds the final path segments that stay reachable while locked
	DoNotProtect []string
}

// New returns an unlocked Locker that leaves /lock and /endpoints reachable
func New() *Locker {
	return &Locker{DoNotProtect: []string{"lock", "endpoints"}}
}

// Lock the locker
func (l *Locker) Lock() {
	l.mu.Lock()
	l.locked = true
	l.mu.Unlock()
}

// Unlock the locker
func (l *Locker) Unlock() {
	l.mu.Lock()
	l.locked = false
	l.mu.Unlock()
}

// Locked returns true if the locker is locked
func (l *Locker) Locked() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.locked
}

func (l *Locker) protects(urlPath string) bool {
	last := path.Base(urlPath)
	for _, s := range l.DoNotProtect {
		if s == last {
			return false
		}
	}
	return true
}

// Check is a middleware that answers 423 on protected routes while locked
func (l *Locker) Check(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.Locked() && l.protects(r.URL.Path) {
			w.WriteHeader(http.StatusLocked)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// HTTPSet locks or unlocks from a {"bool": value} body
func (l *Locker) HTTPSet(w http.ResponseWriter, r *http.Request) {
	b := generichttp.BoolT{}
	err := json.NewDecoder(r.Body).Decode(&b)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if b.Bool {
		l.Lock()
	} else {
		l.Unlock()
	}
	w.WriteHeader(http.StatusOK)
}

// HTTPGet replies {"bool": Locked()}
func (l *Locker) HTTPGet(w http.ResponseWriter, r *http.Request) {
	hp := generichttp.HumanPayload{T: types.Bool, Bool: l.Locked()}
	hp.EncodeAndRespond(w, r)
}
