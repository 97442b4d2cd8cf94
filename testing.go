package hcd

import (
	"sync"
	"time"
)

// Recorder collects request and transfer completions. Its Done and
// TransferDone methods can be used directly as callbacks, which makes it
// convenient for tests of code built on a Controller.
type Recorder struct {
	mu        sync.Mutex
	cond      *sync.Cond
	order     []*Request
	comps     map[*Request]Completion
	calls     map[*Request]int
	transfers []*Transfer
	xferErrs  map[*Transfer]error
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	r := &Recorder{
		comps:    make(map[*Request]Completion),
		calls:    make(map[*Request]int),
		xferErrs: make(map[*Transfer]error),
	}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Done records a request completion.
func (r *Recorder) Done(req *Request, c Completion) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, req)
	r.comps[req] = c
	r.calls[req]++
	r.cond.Broadcast()
}

// TransferDone records a transfer completion.
func (r *Recorder) TransferDone(t *Transfer, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transfers = append(r.transfers, t)
	r.xferErrs[t] = err
	r.cond.Broadcast()
}

// Order returns completed requests in completion order.
func (r *Recorder) Order() []*Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Request(nil), r.order...)
}

// Completion returns the completion recorded for req.
func (r *Recorder) Completion(req *Request) (Completion, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.comps[req]
	return c, ok
}

// Calls returns how often Done was called for req.
func (r *Recorder) Calls(req *Request) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[req]
}

// Count returns the number of recorded request completions.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// Transfers returns completed transfers in completion order.
func (r *Recorder) Transfers() []*Transfer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Transfer(nil), r.transfers...)
}

// TransferErr returns the error recorded for t.
func (r *Recorder) TransferErr(t *Transfer) (error, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	err, ok := r.xferErrs[t]
	return err, ok
}

// WaitFor blocks until at least n request completions are recorded or the
// timeout passes, and reports which happened first.
func (r *Recorder) WaitFor(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	timer := time.AfterFunc(timeout, func() {
		r.mu.Lock()
		r.cond.Broadcast()
		r.mu.Unlock()
	})
	defer timer.Stop()

	r.mu.Lock()
	defer r.mu.Unlock()
	for len(r.order) < n {
		if !time.Now().Before(deadline) {
			return false
		}
		r.cond.Wait()
	}
	return true
}

// Reset forgets everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = nil
	r.transfers = nil
	clear(r.comps)
	clear(r.calls)
	clear(r.xferErrs)
}
