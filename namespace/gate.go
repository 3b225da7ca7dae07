package namespace

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dendrascience/dockerfs/internal/logging"
	"github.com/dendrascience/dockerfs/internal/metrics"
	"github.com/dendrascience/dockerfs/inventory"
	"github.com/dendrascience/dockerfs/util"
	"go.uber.org/zap"
)

// FailurePolicy decides what a failed listing query means.
type FailurePolicy string

const (
	// PolicyEmpty treats a failed listing as an empty one.
	PolicyEmpty FailurePolicy = "empty"
	// PolicyStale keeps the partition built from the last good listing.
	PolicyStale FailurePolicy = "stale"
	// PolicyUnavailable keeps the last partition and fails the caller with
	// util.ErrUnavailable.
	PolicyUnavailable FailurePolicy = "unavailable"
)

// FailurePolicies lists the accepted policies.
var FailurePolicies = []FailurePolicy{PolicyEmpty, PolicyStale, PolicyUnavailable}

// ParseFailurePolicy validates a policy name.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	p := FailurePolicy(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(FailurePolicies, p) {
		return p, nil
	}
	return "", fmt.Errorf("unknown query failure policy %q (want one of %v)", s, FailurePolicies)
}

// Lister is the part of an inventory source a Gate needs.
type Lister interface {
	List(ctx context.Context) ([]inventory.Ref, error)
	Detail(ctx context.Context, id string) (inventory.Detail, error)
}

// Gate short-circuits rebuilds for one listing source. It remembers the last
// listing and only rebuilds the source's partition, issuing detail queries,
// when a new listing differs from it.
type Gate struct {
	name   string
	src    Lister
	policy FailurePolicy

	primed bool
	last   []inventory.Ref
	part   *Partition
}

// NewGate creates a gate for src.
func NewGate(name string, src Lister, policy FailurePolicy) *Gate {
	if policy == "" {
		policy = PolicyEmpty
	}
	return &Gate{name: name, src: src, policy: policy}
}

// Name returns the source name the gate was created with.
func (g *Gate) Name() string {
	return g.name
}

// Partition returns the partition built from the last accepted listing. It
// is nil until the first rebuild.
func (g *Gate) Partition() *Partition {
	return g.part
}

// RefreshIfChanged compares refs with the stored listing. Records are
// compared as a set, so ordering differences in the runtime's output do not
// trigger a rebuild. When they differ the listing is stored and the
// partition rebuilt; the first call always rebuilds.
func (g *Gate) RefreshIfChanged(ctx context.Context, refs []inventory.Ref) bool {
	refs = slices.Clone(refs)
	slices.SortFunc(refs, func(a, b inventory.Ref) int {
		return cmp.Or(cmp.Compare(a.ID, b.ID), cmp.Compare(a.Name, b.Name))
	})
	refs = slices.Compact(refs)

	if g.primed && slices.Equal(g.last, refs) {
		metrics.RecordRefresh(g.name, "unchanged")
		return false
	}

	start := time.Now()
	part := BuildPartition(ctx, g.name, refs, g.src.Detail)
	metrics.RecordRebuild(g.name, time.Since(start))
	metrics.RecordRefresh(g.name, "changed")
	metrics.RecordSkipped(part.Skipped)

	g.last = refs
	g.part = part
	g.primed = true

	logging.Debug("rebuilt partition",
		zap.String("source", g.name),
		zap.Int("records", len(refs)),
		zap.Int("entries", part.Len()),
		zap.Int("skipped", part.Skipped),
		zap.Duration("took", time.Since(start)))
	return true
}

// Poll runs the listing query and refreshes the partition. A failed query is
// handled according to the gate's failure policy; malformed lines are logged
// and the rest of the listing is used.
func (g *Gate) Poll(ctx context.Context) (bool, error) {
	refs, err := g.src.List(ctx)
	switch {
	case err == nil:
	case errors.Is(err, util.ErrMalformedRecord):
		logging.Warn("ignoring malformed listing lines",
			zap.String("source", g.name), zap.Error(err))
		metrics.RecordQueryFailure(g.name, "list-parse")
	default:
		logging.Error("listing query failed",
			zap.String("source", g.name),
			zap.String("policy", string(g.policy)),
			zap.Error(err))
		metrics.RecordQueryFailure(g.name, "list")
		metrics.RecordRefresh(g.name, "failed")

		switch g.policy {
		case PolicyStale:
			return false, nil
		case PolicyUnavailable:
			return false, fmt.Errorf("%s: %w: %v", g.name, util.ErrUnavailable, err)
		}
		refs = nil
	}
	return g.RefreshIfChanged(ctx, refs), nil
}
