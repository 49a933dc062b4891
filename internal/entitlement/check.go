package entitlement

import (
	"errors"
	"strings"
	"time"

	"sescli/internal/validation"
)

// FieldAt names the optional check instant in error messages.
const FieldAt = "At"

var (
	// ErrNoEntitlement means no grant exists for the virtual machine.
	ErrNoEntitlement = errors.New("no entitlement for virtual machine")
	// ErrOutsideWindow means grants exist but none covers the requested instant.
	ErrOutsideWindow = errors.New("entitlement not active at requested time")
)

// CheckInput is the raw body of an entitlement check request.
type CheckInput struct {
	VirtualMachineID string `json:"virtualMachineId" yaml:"virtualMachineId"`
	At               string `json:"at,omitempty" yaml:"at,omitempty"`
}

// CheckRequest is a validated entitlement check.
type CheckRequest struct {
	VirtualMachineID string
	At               time.Time
}

func (c CheckRequest) withVirtualMachineID(id string) CheckRequest { c.VirtualMachineID = id; return c }
func (c CheckRequest) withAt(t time.Time) CheckRequest             { c.At = t; return c }

// ParseCheck validates a check request. A missing At defaults to the
// Builder's captured instant.
func (b *Builder) ParseCheck(in CheckInput) validation.Errorable[CheckRequest] {
	var at validation.Errorable[time.Time]
	if strings.TrimSpace(in.At) == "" {
		at = validation.Success(b.now)
	} else {
		at = b.parser.Parse(in.At, FieldAt)
	}

	return validation.Accumulate(CheckRequest{},
		validation.Apply(b.readVirtualMachineID(Input{VirtualMachineID: in.VirtualMachineID}), CheckRequest.withVirtualMachineID),
		validation.Apply(at, CheckRequest.withAt),
	)
}
