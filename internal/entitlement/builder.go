package entitlement

import (
	"fmt"
	"strings"
	"time"

	"sescli/internal/validation"
)

// DefaultGracePeriod is added to the build instant when no NotAfter is given.
const DefaultGracePeriod = 7 * 24 * time.Hour

// Field names used to attribute validation errors.
const (
	FieldVirtualMachineID = "VirtualMachineId"
	FieldNotBefore        = "NotBefore"
	FieldNotAfter         = "NotAfter"
)

// Builder validates raw entitlement fields and assembles a SoftwareEntitlement.
//
// A Builder captures a single instant at construction; both defaults are
// derived from it, so one build never observes two different "now" values.
// A Builder holds no mutable state and is safe for concurrent use.
type Builder struct {
	now         time.Time
	gracePeriod time.Duration
	parser      *validation.TimestampParser
}

// BuilderOption customizes a Builder.
type BuilderOption func(*Builder)

// WithGracePeriod overrides DefaultGracePeriod.
func WithGracePeriod(d time.Duration) BuilderOption {
	return func(b *Builder) {
		b.gracePeriod = d
	}
}

// WithTimestampParser overrides the timestamp parser.
func WithTimestampParser(p *validation.TimestampParser) BuilderOption {
	return func(b *Builder) {
		b.parser = p
	}
}

// NewBuilder creates a Builder whose defaults are anchored at now.
func NewBuilder(now time.Time, opts ...BuilderOption) *Builder {
	b := &Builder{
		now:         now.UTC(),
		gracePeriod: DefaultGracePeriod,
		parser:      validation.DefaultTimestampParser(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Now returns the instant captured when the Builder was created.
func (b *Builder) Now() time.Time {
	return b.now
}

// Build validates every field of in and returns the assembled entitlement, or
// a failure listing every problem found. Fields are reported in the order
// VirtualMachineId, NotBefore, NotAfter.
func (b *Builder) Build(in Input) validation.Errorable[SoftwareEntitlement] {
	fields := validation.Accumulate(SoftwareEntitlement{},
		validation.Apply(b.readVirtualMachineID(in), SoftwareEntitlement.WithVirtualMachineID),
		validation.Apply(b.readNotBefore(in), SoftwareEntitlement.WithNotBefore),
		validation.Apply(b.readNotAfter(in), SoftwareEntitlement.WithNotAfter),
	)
	return validation.Bind(fields, checkWindow)
}

func (b *Builder) readVirtualMachineID(in Input) validation.Errorable[string] {
	if strings.TrimSpace(in.VirtualMachineID) == "" {
		return validation.Failure[string](
			FieldVirtualMachineID + ": a virtual machine identifier must be specified")
	}
	return validation.Success(in.VirtualMachineID)
}

func (b *Builder) readNotBefore(in Input) validation.Errorable[time.Time] {
	if strings.TrimSpace(in.NotBefore) == "" {
		return validation.Success(b.now)
	}
	return b.parser.Parse(in.NotBefore, FieldNotBefore)
}

func (b *Builder) readNotAfter(in Input) validation.Errorable[time.Time] {
	if strings.TrimSpace(in.NotAfter) == "" {
		return validation.Success(b.now.Add(b.gracePeriod))
	}
	return b.parser.Parse(in.NotAfter, FieldNotAfter)
}

// checkWindow rejects inverted and zero-width activation windows.
func checkWindow(e SoftwareEntitlement) validation.Errorable[SoftwareEntitlement] {
	if !e.notBefore.Before(e.notAfter) {
		return validation.Failure[SoftwareEntitlement](fmt.Sprintf(
			"%s (%s) must be earlier than %s (%s)",
			FieldNotBefore, e.notBefore.Format(time.RFC3339),
			FieldNotAfter, e.notAfter.Format(time.RFC3339)))
	}
	return validation.Success(e)
}
