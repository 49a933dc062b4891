// Package services holds the use cases behind the HTTP handlers and the
// command line: checking a virtual machine's entitlement, generating new
// grants and reporting service health.
//
// Services own validation logging, tracing and outcome metrics so that
// handlers only translate between HTTP and these calls.
//
//	svc := services.NewEntitlementService(registry, validationLogger, logger,
//	    services.WithCheckRecorder(metrics),
//	    services.WithBuilderOptions(entitlement.WithGracePeriod(cfg.Entitlements.GracePeriod)),
//	)
//	record, err := svc.Check(ctx, entitlement.CheckInput{VirtualMachineID: "vm-01"})
package services
