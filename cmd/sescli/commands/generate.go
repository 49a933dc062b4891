package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"sescli/internal/entitlement"
	apierrors "sescli/internal/errors"
	"sescli/internal/services"
)

type generateOptions struct {
	vmid      string
	notBefore string
	notAfter  string
	format    string
	output    string
}

func newGenerateCmd(root *rootOptions) *cobra.Command {
	opts := &generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a software entitlement for a virtual machine",
		Long: `Generate validates the supplied fields and prints the resulting entitlement.

Every problem with the input is reported, one per line, and the command exits
with status 2. NotBefore defaults to now and NotAfter to now plus the
configured grace period (7 days by default).

Examples:
  # Entitlement valid for the next week
  sescli generate --vmid vm-0042

  # Explicit window, appended to the grants file the server loads
  sescli generate --vmid vm-0042 --not-before 2026-11-01 --not-after 2026-12-01 --output grants.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.vmid, "vmid", "", "virtual machine identifier")
	cmd.Flags().StringVar(&opts.notBefore, "not-before", "", "start of the entitlement window (default: now)")
	cmd.Flags().StringVar(&opts.notAfter, "not-after", "", "end of the entitlement window (default: now + grace period)")
	cmd.Flags().StringVar(&opts.format, "format", "json", "output format (json, yaml)")
	cmd.Flags().StringVar(&opts.output, "output", "", "grants file to append the entitlement to")
	return cmd
}

func runGenerate(cmd *cobra.Command, root *rootOptions, opts *generateOptions) error {
	format, err := parseFormat(opts.format, FormatJSON, FormatYAML)
	if err != nil {
		return configError(err)
	}

	cfg, logger, err := root.load(cmd)
	if err != nil {
		return err
	}

	svc := services.NewEntitlementService(nil, entitlement.NewValidationLogger(logger, nil), logger,
		services.WithBuilderOptions(entitlement.WithGracePeriod(cfg.Entitlements.GracePeriod)))

	result := svc.Generate(cmd.Context(), entitlement.Input{
		VirtualMachineID: opts.vmid,
		NotBefore:        opts.notBefore,
		NotAfter:         opts.notAfter,
	})

	e, ok := result.Value()
	if !ok {
		for _, msg := range result.Errors() {
			cmd.PrintErrln(msg)
		}
		return apierrors.NewAppValidationError("invalid entitlement", errReported)
	}

	if opts.output != "" {
		if err := entitlement.AppendGrant(opts.output, e); err != nil {
			return fmt.Errorf("append grant to %s: %w", opts.output, err)
		}
		logger.InfoContext(cmd.Context(), "grant appended",
			"path", opts.output, "virtual_machine_id", e.VirtualMachineID())
	}

	if err := encode(cmd.OutOrStdout(), format, e.Input()); err != nil {
		return fmt.Errorf("write entitlement: %w", err)
	}
	return nil
}
