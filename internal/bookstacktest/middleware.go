package bookstacktest

import (
	"net/http"
	"strconv"
	"sync"
)

// auth rejects requests without the expected token header.
func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" && r.Header.Get("Authorization") != "Token "+s.token {
			fail(w, http.StatusUnauthorized, "The owner of the used API token does not have permission to make API calls")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// script is a queue of canned failure responses served before real handling.
type script struct {
	mu    sync.Mutex
	queue []scripted
	seen  int
}

type scripted struct {
	status     int
	retryAfter int
}

func (sc *script) push(status, retryAfter, times int) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	for i := 0; i < times; i++ {
		sc.queue = append(sc.queue, scripted{status: status, retryAfter: retryAfter})
	}
}

func (sc *script) next() (scripted, bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.seen++
	if len(sc.queue) == 0 {
		return scripted{}, false
	}
	head := sc.queue[0]
	sc.queue = sc.queue[1:]
	return head, true
}

// throttle serves queued 429/5xx responses ahead of the real handlers.
func (s *Server) throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if canned, ok := s.script.next(); ok {
			if canned.retryAfter > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(canned.retryAfter))
			}
			fail(w, canned.status, http.StatusText(canned.status))
			return
		}
		next.ServeHTTP(w, r)
	})
}
