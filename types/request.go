package types

import "sync"

// Request is a completion token for calls that may finish asynchronously.
// Every operation in this module completes before it returns, so a request
// is already done when the call that received it comes back; the token
// exists so callers can be written against asynchronous backends.
//
// A nil *Request is the immediate-completion sentinel and is always valid.
type Request struct {
	mu   sync.Mutex
	done bool
	err  error
}

// RequestImmediate asks for synchronous completion
var RequestImmediate *Request

func NewRequest() *Request {
	return &Request{}
}

// Complete records the outcome of the call the request was passed to. It is
// a no-op on the immediate sentinel.
func (r *Request) Complete(err error) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.done = true
	r.err = err
	r.mu.Unlock()
}

// Done reports whether the request has completed
func (r *Request) Done() bool {
	if r == nil {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// Err returns the error the request completed with
func (r *Request) Err() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}
