// Package entitlement models machine-scoped software entitlements: a claim
// that a virtual machine may run protected software during a bounded window.
//
// # Building
//
// A Builder turns raw fields into a SoftwareEntitlement, reporting every
// invalid field at once:
//
//	b := entitlement.NewBuilder(time.Now())
//	result := b.Build(entitlement.Input{
//	    VirtualMachineID: "vm-042",
//	    NotAfter:         "2026-12-31T00:00:00Z",
//	})
//
// When NotBefore is absent the Builder's captured instant is used; when
// NotAfter is absent it defaults to that instant plus DefaultGracePeriod.
// The window must not be empty: NotBefore has to precede NotAfter.
//
// # Checking
//
// Generated entitlements are kept in a grants file. A Registry loaded from
// that file answers check requests:
//
//	req, _ := b.ParseCheck(entitlement.CheckInput{VirtualMachineID: "vm-042"}).Value()
//	grant, err := registry.Check(req)
//
// Check returns ErrNoEntitlement when the machine has no grant and
// ErrOutsideWindow when no grant covers the requested instant.
//
// # Logging
//
// Build and ParseCheck never log. Callers report outcomes through a
// ValidationLogger.
package entitlement
