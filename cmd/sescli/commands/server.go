package commands

import (
	"github.com/spf13/cobra"

	"sescli/internal/app"
)

func newServerCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Serve entitlement checks over mutual TLS",
		Long: `Server resolves the connection certificate from the certificate store,
loads the grants file and answers POST /softwareEntitlements for clients
presenting a certificate issued by the configured client CA.

Startup fails with status 4 when the connection certificate cannot be found
and status 5 when it is found but unusable (expired, not yet valid or
missing its private key).

Examples:
  sescli server --config /etc/sescli/sescli.yaml

  sescli server --url https://0.0.0.0:4443 \
    --cert-store /etc/sescli/certs --thumbprint 3f:a1:...:9c \
    --client-ca /etc/sescli/clients-ca.pem --grants /var/lib/sescli/grants.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := root.load(cmd)
			if err != nil {
				return err
			}
			stringFlag(cmd, "url", &cfg.Server.URL)
			stringFlag(cmd, "cert-store", &cfg.TLS.CertStoreDir)
			stringFlag(cmd, "thumbprint", &cfg.TLS.ConnectionThumbprint)
			stringFlag(cmd, "client-ca", &cfg.TLS.ClientCAFile)
			stringFlag(cmd, "grants", &cfg.Entitlements.GrantsFile)
			stringFlag(cmd, "revocation", &cfg.Revocation.Mode)
			if err := cfg.Validate(); err != nil {
				return configError(err)
			}

			application, err := app.NewApplication(cmd.Context(), cfg, logger)
			if err != nil {
				logger.ErrorContext(cmd.Context(), "failed to initialize application", "error", err)
				return err
			}
			return application.Run(cmd.Context())
		},
	}

	cmd.Flags().String("url", "", "https URL to listen on")
	cmd.Flags().String("cert-store", "", "certificate store directory")
	cmd.Flags().String("thumbprint", "", "SHA-1 or SHA-256 thumbprint of the connection certificate")
	cmd.Flags().String("client-ca", "", "PEM bundle of trusted client certificate issuers")
	cmd.Flags().String("grants", "", "grants file loaded at startup")
	cmd.Flags().String("revocation", "", "revocation mode (ocsp, crl, ocsp+crl)")
	return cmd
}
