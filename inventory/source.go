// Package inventory queries a container runtime's command-line interface for
// its image and container inventory.
//
// Listings are one "id:name" record per line. Details come from a per-id
// inspect call answering "createdTimestamp sizeBytes". Parsing is tolerant:
// blank lines are ignored and malformed lines are reported alongside the
// well-formed records instead of failing the whole listing.
package inventory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/dendrascience/dockerfs/util"
	v1 "github.com/google/go-containerregistry/pkg/v1"
)

// Kind names a listing source.
type Kind string

const (
	Images     Kind = "images"
	Containers Kind = "containers"
)

// Kinds lists every supported source in merge order.
var Kinds = []Kind{Images, Containers}

// ParseKind validates a source name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case Images, Containers:
		return k, nil
	}
	return "", fmt.Errorf("unknown inventory source %q (want %q or %q)", s, Images, Containers)
}

// Ref is one record of a listing query.
type Ref struct {
	ID   string
	Name string
}

// Detail is the result of the per-id inspect query.
type Detail struct {
	Created   string
	SizeBytes int64
}

// Runner executes a runtime command and returns its standard output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec. A zero Timeout means no deadline.
type ExecRunner struct {
	Timeout time.Duration
}

// Run implements Runner.
func (r ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return stdout.Bytes(), fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, msg)
		}
		return stdout.Bytes(), fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return stdout.Bytes(), nil
}

// Source issues the listing and inspect queries for one Kind.
type Source struct {
	Kind    Kind
	Runtime string
	NoTrunc bool
	runner  Runner
}

// NewSource creates a source that runs queries against the given runtime
// binary (for example "docker" or "podman").
func NewSource(kind Kind, runtime string, runner Runner) *Source {
	return &Source{
		Kind:    kind,
		Runtime: runtime,
		runner:  runner,
	}
}

// ListArgs returns the arguments of the listing query.
func (s *Source) ListArgs() []string {
	var args []string
	switch s.Kind {
	case Containers:
		args = []string{"ps", "--all", "--format", "{{.ID}}:{{.Names}}"}
	default:
		args = []string{"images", "--format", "{{.ID}}:{{.Repository}}:{{.Tag}}"}
	}
	if s.NoTrunc {
		args = append(args, "--no-trunc")
	}
	return args
}

// InspectArgs returns the arguments of the detail query for id.
func (s *Source) InspectArgs(id string) []string {
	switch s.Kind {
	case Containers:
		return []string{"inspect", "--size", "--format",
			"{{.Created}} {{if .SizeRootFs}}{{.SizeRootFs}}{{else}}0{{end}}", id}
	default:
		return []string{"inspect", "--format", "{{.Created}} {{.Size}}", id}
	}
}

// List runs the listing query. On a parse problem the well-formed records
// are returned together with an error wrapping util.ErrMalformedRecord.
func (s *Source) List(ctx context.Context) ([]Ref, error) {
	out, err := s.runner.Run(ctx, s.Runtime, s.ListArgs()...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.Kind, err)
	}
	return ParseListing(out)
}

// Detail runs the inspect query for one identifier.
func (s *Source) Detail(ctx context.Context, id string) (Detail, error) {
	out, err := s.runner.Run(ctx, s.Runtime, s.InspectArgs(id)...)
	if err != nil {
		return Detail{}, fmt.Errorf("inspect %s: %w", id, err)
	}
	d, err := ParseDetail(out)
	if err != nil {
		return Detail{}, fmt.Errorf("inspect %s: %w", id, err)
	}
	return d, nil
}

// ParseListing parses listing output. Blank lines are skipped. Each record
// is split on its first colon; a "sha256:" digest identifier keeps its
// algorithm prefix.
func ParseListing(raw []byte) ([]Ref, error) {
	var (
		refs []Ref
		errs []error
	)
	for n, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		ref, err := parseRecord(line)
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", n+1, err))
			continue
		}
		refs = append(refs, ref)
	}
	return refs, errors.Join(errs...)
}

func parseRecord(line string) (Ref, error) {
	rest := line
	prefix := ""
	if strings.HasPrefix(line, "sha256:") {
		end := strings.IndexByte(line[len("sha256:"):], ':')
		if end < 0 {
			return Ref{}, fmt.Errorf("%w: %q", util.ErrMalformedRecord, line)
		}
		digest := line[:len("sha256:")+end]
		if _, err := v1.NewHash(digest); err != nil {
			return Ref{}, fmt.Errorf("%w: %q: %v", util.ErrMalformedRecord, line, err)
		}
		prefix, rest = "sha256:", line[len("sha256:"):]
	}

	id, name, ok := strings.Cut(rest, ":")
	if !ok || id == "" || name == "" {
		return Ref{}, fmt.Errorf("%w: %q", util.ErrMalformedRecord, line)
	}
	return Ref{ID: prefix + id, Name: name}, nil
}

// ParseDetail parses inspect output of the form "createdTimestamp sizeBytes".
// The size is the last field; everything before it is the timestamp, which
// may itself contain spaces ("2024-03-05 10:20:30 +0000 UTC").
func ParseDetail(raw []byte) (Detail, error) {
	fields := strings.Fields(string(raw))
	if len(fields) < 2 {
		return Detail{}, fmt.Errorf("%w: want at least 2 fields, got %d in %q",
			util.ErrMalformedDetail, len(fields), strings.TrimSpace(string(raw)))
	}
	last := fields[len(fields)-1]
	size, err := strconv.ParseInt(last, 10, 64)
	if err != nil || size < 0 {
		return Detail{}, fmt.Errorf("%w: size %q", util.ErrMalformedDetail, last)
	}
	return Detail{Created: strings.Join(fields[:len(fields)-1], " "), SizeBytes: size}, nil
}
