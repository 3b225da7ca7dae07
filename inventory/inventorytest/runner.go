// Package inventorytest provides a scripted inventory.Runner for tests.
package inventorytest

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Runner answers commands from a table keyed by the space-joined argument
// list (without the binary name). Unknown commands fail.
type Runner struct {
	mu      sync.Mutex
	outputs map[string]string
	errors  map[string]error
	calls   []string
}

// NewRunner returns an empty scripted runner.
func NewRunner() *Runner {
	return &Runner{
		outputs: make(map[string]string),
		errors:  make(map[string]error),
	}
}

// Set scripts the output of a command.
func (r *Runner) Set(output string, args ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.Join(args, " ")
	r.outputs[key] = output
	delete(r.errors, key)
}

// Fail scripts a command to fail with err.
func (r *Runner) Fail(err error, args ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.Join(args, " ")
	r.errors[key] = err
	delete(r.outputs, key)
}

// Run implements inventory.Runner.
func (r *Runner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.Join(args, " ")
	r.calls = append(r.calls, key)
	if err, ok := r.errors[key]; ok {
		return nil, err
	}
	out, ok := r.outputs[key]
	if !ok {
		return nil, fmt.Errorf("%s %s: unscripted command", name, key)
	}
	return []byte(out), nil
}

// Calls returns the commands run so far.
func (r *Runner) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// CountPrefix counts the calls whose key starts with prefix.
func (r *Runner) CountPrefix(prefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// Reset forgets recorded calls.
func (r *Runner) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}
