package server

import (
	"errors"
	"fmt"
	"sync"
)

var errStopped = errors.New("worker stopped")

// workRequest is a unit of work to run on the worker goroutine.
type workRequest struct {
	fn   func() interface{}
	done chan workResult
}

type workResult struct {
	value interface{}
	err   error
}

// Worker serializes all graph access through a single goroutine. Graphs
// and sessions are not safe for concurrent use; every handler goes
// through Do.
type Worker struct {
	requests chan workRequest
	quit     chan struct{}
	stopOnce sync.Once
}

// NewWorker creates a Worker and starts its goroutine.
func NewWorker() *Worker {
	w := &Worker{
		requests: make(chan workRequest, 64),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *Worker) loop() {
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs fn, recovering from panics.
func (w *Worker) execute(fn func() interface{}) workResult {
	var result workResult
	func() {
		defer func() {
			if r := recover(); r != nil {
				result.err = fmt.Errorf("%v", r)
			}
		}()
		result.value = fn()
	}()
	return result
}

// Do runs fn on the worker goroutine and blocks until it completes.
// A panic in fn is returned as an error.
func (w *Worker) Do(fn func() interface{}) (interface{}, error) {
	req := workRequest{
		fn:   fn,
		done: make(chan workResult, 1),
	}
	select {
	case <-w.quit:
		return nil, errStopped
	default:
	}
	select {
	case w.requests <- req:
	case <-w.quit:
		return nil, errStopped
	}
	select {
	case result := <-req.done:
		return result.value, result.err
	case <-w.quit:
		return nil, errStopped
	}
}

// Stop shuts down the worker goroutine. Later calls do nothing.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.quit) })
}
