package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"sescli/internal/entitlement"
	apierrors "sescli/internal/errors"
)

// CheckEntitlementRequest is the body of POST /softwareEntitlements.
type CheckEntitlementRequest struct {
	entitlement.CheckInput
}

// Bind implements render.Binder. Field validation happens in the service so
// that every problem is reported together.
func (c *CheckEntitlementRequest) Bind(r *http.Request) error {
	return nil
}

// EntitlementResponse is the granted entitlement record.
type EntitlementResponse struct {
	VirtualMachineID string    `json:"virtualMachineId"`
	NotBefore        time.Time `json:"notBefore"`
	NotAfter         time.Time `json:"notAfter"`
}

// Render implements render.Renderer
func (e *EntitlementResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return nil
}

// NewEntitlementResponse converts a record to its wire form.
func NewEntitlementResponse(e entitlement.SoftwareEntitlement) *EntitlementResponse {
	return &EntitlementResponse{
		VirtualMachineID: e.VirtualMachineID(),
		NotBefore:        e.NotBefore().UTC(),
		NotAfter:         e.NotAfter().UTC(),
	}
}

// EntitlementHandler serves entitlement checks.
type EntitlementHandler struct {
	service EntitlementChecker
	errors  *apierrors.ErrorHandler
	logger  *slog.Logger
}

// NewEntitlementHandler creates a new entitlement handler
func NewEntitlementHandler(service EntitlementChecker, errs *apierrors.ErrorHandler, logger *slog.Logger) *EntitlementHandler {
	return &EntitlementHandler{
		service: service,
		errors:  errs,
		logger:  logger.With(slog.String("handler", "entitlement")),
	}
}

// Check handles POST /softwareEntitlements. It answers 200 with the
// matching record, 400 with every validation error or 403 when no grant
// covers the requested instant.
func (h *EntitlementHandler) Check(w http.ResponseWriter, r *http.Request) {
	req := &CheckEntitlementRequest{}
	if err := render.Bind(r, req); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			h.errors.HandleError(w, r, err)
			return
		}
		h.errors.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	record, err := h.service.Check(r.Context(), req.CheckInput)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	_ = render.Render(w, r, NewEntitlementResponse(record))
}
