package entitlement

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v2"

	"sescli/internal/validation"
)

// Registry holds previously generated entitlements indexed by virtual
// machine. It is populated once and read-only afterwards.
type Registry struct {
	byMachine map[string][]SoftwareEntitlement
	count     int
}

// NewRegistry indexes the given entitlements.
func NewRegistry(entitlements ...SoftwareEntitlement) *Registry {
	r := &Registry{byMachine: make(map[string][]SoftwareEntitlement)}
	for _, e := range entitlements {
		r.byMachine[e.virtualMachineID] = append(r.byMachine[e.virtualMachineID], e)
		r.count++
	}
	for _, list := range r.byMachine {
		sort.Slice(list, func(i, j int) bool { return list[i].notBefore.Before(list[j].notBefore) })
	}
	return r
}

// LoadRegistry reads a grants file (YAML or JSON list of Input) and validates
// every entry with b. All invalid entries are reported together.
func LoadRegistry(path string, b *Builder) (*Registry, error) {
	inputs, err := ReadGrants(path)
	if err != nil {
		return nil, err
	}

	results := make([]validation.Errorable[SoftwareEntitlement], 0, len(inputs))
	for i, in := range inputs {
		results = append(results, prefixErrors(b.Build(in), fmt.Sprintf("grant %d", i)))
	}

	all := validation.All(results...)
	entitlements, ok := all.Value()
	if !ok {
		return nil, fmt.Errorf("invalid grants in %s: %w", path, all.Err())
	}
	return NewRegistry(entitlements...), nil
}

// Len returns the number of entitlements held.
func (r *Registry) Len() int {
	return r.count
}

// Check returns the entitlement granting req.VirtualMachineID access at req.At.
func (r *Registry) Check(req CheckRequest) (SoftwareEntitlement, error) {
	grants, ok := r.byMachine[req.VirtualMachineID]
	if !ok || len(grants) == 0 {
		return SoftwareEntitlement{}, fmt.Errorf("%w: %s", ErrNoEntitlement, req.VirtualMachineID)
	}
	for _, g := range grants {
		if g.Contains(req.At) {
			return g, nil
		}
	}
	return SoftwareEntitlement{}, fmt.Errorf("%w: %s at %s", ErrOutsideWindow,
		req.VirtualMachineID, req.At.Format(time.RFC3339))
}

// ReadGrants reads the raw grant list from path. A missing file is an empty list.
func ReadGrants(path string) ([]Input, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read grants file: %w", err)
	}

	var inputs []Input
	if err := yaml.Unmarshal(data, &inputs); err != nil {
		return nil, fmt.Errorf("parse grants file %s: %w", path, err)
	}
	return inputs, nil
}

var appendMu sync.Mutex

// AppendGrant adds e to the grants file at path, creating it if needed.
// The file is rewritten atomically.
func AppendGrant(path string, e SoftwareEntitlement) error {
	appendMu.Lock()
	defer appendMu.Unlock()

	inputs, err := ReadGrants(path)
	if err != nil {
		return err
	}
	inputs = append(inputs, e.Input())

	data, err := yaml.Marshal(inputs)
	if err != nil {
		return fmt.Errorf("encode grants: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create grants directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write grants file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace grants file: %w", err)
	}
	return nil
}

func prefixErrors[T any](result validation.Errorable[T], prefix string) validation.Errorable[T] {
	if result.IsSuccess() {
		return result
	}
	errs := result.Errors()
	for i := range errs {
		errs[i] = prefix + ": " + errs[i]
	}
	prefixed, _ := validation.FailureFrom[T](errs)
	return prefixed
}
