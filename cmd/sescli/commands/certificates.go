package commands

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"sescli/internal/certstore"
	apierrors "sescli/internal/errors"
)

func storeDir(cmd *cobra.Command, configured string) (string, error) {
	dir := configured
	stringFlag(cmd, "store", &dir)
	if dir == "" {
		return "", configError(errors.New("no certificate store: set tls.cert_store_dir or --store"))
	}
	return dir, nil
}

func newListCertificatesCmd(root *rootOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "list-certificates",
		Short: "List the certificates in the certificate store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseFormat(format, FormatTable, FormatJSON, FormatYAML)
			if err != nil {
				return configError(err)
			}
			cfg, _, err := root.load(cmd)
			if err != nil {
				return err
			}
			dir, err := storeDir(cmd, cfg.TLS.CertStoreDir)
			if err != nil {
				return err
			}

			infos, err := certstore.NewStore(dir).List(cmd.Context())
			if err != nil {
				return apierrors.NewCertificateError("cannot read certificate store", err)
			}

			if f != FormatTable {
				return encode(cmd.OutOrStdout(), f, infos)
			}
			if len(infos) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No certificates found in", dir)
				return nil
			}
			rows := make([][]string, 0, len(infos))
			for _, info := range infos {
				rows = append(rows, []string{
					info.SHA1, info.Subject, info.NotAfter.UTC().Format(time.RFC3339), yesNo(info.HasKey),
				})
			}
			printTable(cmd.OutOrStdout(), []string{"Thumbprint", "Subject", "Not After", "Key"}, rows)
			return nil
		},
	}

	cmd.Flags().String("store", "", "certificate store directory (default: tls.cert_store_dir)")
	cmd.Flags().StringVarP(&format, "output", "o", "table", "output format (table, json, yaml)")
	return cmd
}

func newFindCertificateCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "find-certificate <thumbprint>",
		Short: "Resolve a certificate by thumbprint",
		Long: `Find-certificate resolves a thumbprint the way the server resolves its
connection certificate. It exits with status 4 when no certificate matches
and status 5 when the match is unusable.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := root.load(cmd)
			if err != nil {
				return err
			}
			dir, err := storeDir(cmd, cfg.TLS.CertStoreDir)
			if err != nil {
				return err
			}

			cert, err := certstore.NewStore(dir).Find(cmd.Context(), args[0])
			switch {
			case errors.Is(err, certstore.ErrInvalidSelector):
				return configError(err)
			case errors.Is(err, certstore.ErrCertificateNotFound):
				return apierrors.NewCertificateError("certificate not found", err)
			case errors.Is(err, certstore.ErrCertificateInvalid):
				return apierrors.NewCertificateError("certificate is not usable", err)
			case err != nil:
				return apierrors.NewCertificateError("cannot read certificate store", err)
			}

			printPairs(cmd.OutOrStdout(), describe(cert))
			return nil
		},
	}
	cmd.Flags().String("store", "", "certificate store directory (default: tls.cert_store_dir)")
	return cmd
}

func describe(cert *tls.Certificate) [][2]string {
	leaf := cert.Leaf
	if leaf == nil {
		leaf, _ = x509.ParseCertificate(cert.Certificate[0])
	}
	sha1Hex, sha256Hex := certstore.Thumbprints(leaf)
	return [][2]string{
		{"Subject", leaf.Subject.String()},
		{"Issuer", leaf.Issuer.String()},
		{"SHA-1", sha1Hex},
		{"SHA-256", sha256Hex},
		{"Not Before", leaf.NotBefore.UTC().Format(time.RFC3339)},
		{"Not After", leaf.NotAfter.UTC().Format(time.RFC3339)},
		{"Chain", strconv.Itoa(len(cert.Certificate))},
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
