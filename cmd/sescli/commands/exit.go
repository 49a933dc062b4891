package commands

import (
	"errors"

	"sescli/internal/certstore"
	apierrors "sescli/internal/errors"
)

// Exit codes reported by sescli.
const (
	ExitOK                  = 0
	ExitFailure             = 1
	ExitValidation          = 2
	ExitConfig              = 3
	ExitCertificateNotFound = 4
	ExitCertificateInvalid  = 5
)

// errReported marks failures whose details were already written to stderr.
var errReported = errors.New("failure already reported")

// ExitCode maps a command error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, certstore.ErrCertificateNotFound):
		return ExitCertificateNotFound
	case errors.Is(err, certstore.ErrCertificateInvalid):
		return ExitCertificateInvalid
	}
	switch apierrors.TypeOf(err) {
	case apierrors.ErrTypeValidation:
		return ExitValidation
	case apierrors.ErrTypeConfig:
		return ExitConfig
	default:
		return ExitFailure
	}
}

func configError(err error) error {
	return apierrors.NewConfigError("configuration", err)
}
