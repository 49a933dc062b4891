// Package config provides centralized configuration management for sescli.
// It loads settings from several sources, validates them, and exposes a
// typed Config to the rest of the application.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Command line flags (applied by the caller after Load)
//	2. Environment variables
//	3. The YAML configuration file
//	4. Default values
//
// # Environment Variables
//
// All environment variables follow the pattern SES_<SECTION>_<KEY>:
//
//	SES_SERVER_URL=https://0.0.0.0:4443
//	SES_TLS_CONNECTION_THUMBPRINT=3f1c...
//	SES_TLS_CLIENT_CA_FILE=/etc/sescli/clients-ca.pem
//	SES_REVOCATION_MODE=ocsp+crl
//	SES_LOGGING_LEVEL=debug
//
// # Validation
//
// Load validates every constraint declared with validate struct tags.
// Settings that only the entitlement server needs are checked separately
// by ValidateServer so that commands such as generate work without TLS
// material.
package config
