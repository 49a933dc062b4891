package entitlement

import (
	"time"
)

// SoftwareEntitlement grants a virtual machine the right to run protected
// software between NotBefore (inclusive) and NotAfter (exclusive).
//
// Values are immutable: the With* methods return an updated copy.
type SoftwareEntitlement struct {
	virtualMachineID string
	notBefore        time.Time
	notAfter         time.Time
}

// VirtualMachineID returns the identifier of the entitled machine.
func (e SoftwareEntitlement) VirtualMachineID() string {
	return e.virtualMachineID
}

// NotBefore returns the first instant of the activation window.
func (e SoftwareEntitlement) NotBefore() time.Time {
	return e.notBefore
}

// NotAfter returns the end of the activation window.
func (e SoftwareEntitlement) NotAfter() time.Time {
	return e.notAfter
}

// WithVirtualMachineID returns a copy with the machine identifier replaced.
func (e SoftwareEntitlement) WithVirtualMachineID(id string) SoftwareEntitlement {
	e.virtualMachineID = id
	return e
}

// WithNotBefore returns a copy with the window start replaced.
func (e SoftwareEntitlement) WithNotBefore(t time.Time) SoftwareEntitlement {
	e.notBefore = t
	return e
}

// WithNotAfter returns a copy with the window end replaced.
func (e SoftwareEntitlement) WithNotAfter(t time.Time) SoftwareEntitlement {
	e.notAfter = t
	return e
}

// Contains reports whether t falls inside the activation window.
func (e SoftwareEntitlement) Contains(t time.Time) bool {
	return !t.Before(e.notBefore) && t.Before(e.notAfter)
}

// Lifetime returns the length of the activation window.
func (e SoftwareEntitlement) Lifetime() time.Duration {
	return e.notAfter.Sub(e.notBefore)
}

// Input returns the raw, serializable form of the entitlement. Feeding it
// back through a Builder reproduces the same record.
func (e SoftwareEntitlement) Input() Input {
	return Input{
		VirtualMachineID: e.virtualMachineID,
		NotBefore:        e.notBefore.UTC().Format(time.RFC3339Nano),
		NotAfter:         e.notAfter.UTC().Format(time.RFC3339Nano),
	}
}

// Input carries the caller supplied, not yet validated entitlement fields.
// It is also the on-disk form of a generated grant.
type Input struct {
	VirtualMachineID string `json:"virtualMachineId" yaml:"virtualMachineId"`
	NotBefore        string `json:"notBefore,omitempty" yaml:"notBefore,omitempty"`
	NotAfter         string `json:"notAfter,omitempty" yaml:"notAfter,omitempty"`
}
