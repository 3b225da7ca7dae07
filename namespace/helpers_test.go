package namespace

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dendrascience/dockerfs/inventory"
)

// fakeLister serves a scripted listing and details and counts queries.
type fakeLister struct {
	mu          sync.Mutex
	refs        []inventory.Ref
	listErr     error
	details     map[string]inventory.Detail
	detailErr   map[string]error
	listCalls   int
	detailCalls int
}

func newFakeLister() *fakeLister {
	return &fakeLister{
		details:   make(map[string]inventory.Detail),
		detailErr: make(map[string]error),
	}
}

// add lists an entry and scripts its details.
func (f *fakeLister) add(id, name, created string, size int64) {
	f.refs = append(f.refs, inventory.Ref{ID: id, Name: name})
	f.details[id] = inventory.Detail{Created: created, SizeBytes: size}
}

func (f *fakeLister) List(context.Context) ([]inventory.Ref, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]inventory.Ref(nil), f.refs...), nil
}

func (f *fakeLister) Detail(_ context.Context, id string) (inventory.Detail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailCalls++
	if err, ok := f.detailErr[id]; ok {
		return inventory.Detail{}, err
	}
	d, ok := f.details[id]
	if !ok {
		return inventory.Detail{}, fmt.Errorf("inspect %s: %w", id, errUnknownID)
	}
	return d, nil
}

var errUnknownID = errors.New("no such object")

const ts2021 = "2021-01-01T00:00:00.000000Z"
