package http

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"sescli/internal/entitlement"
	apierrors "sescli/internal/errors"
	"sescli/internal/shared/testutil"
	"sescli/internal/validation"
)

type mockChecker struct {
	mock.Mock
}

func (m *mockChecker) Check(ctx context.Context, in entitlement.CheckInput) (entitlement.SoftwareEntitlement, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(entitlement.SoftwareEntitlement), args.Error(1)
}

type testServer struct {
	router http.Handler
	pki    *testutil.PKI
	client testutil.Issued
}

func newTestServer(t *testing.T, checker EntitlementChecker) *testServer {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	pki := testutil.NewPKI(t)
	return &testServer{
		router: NewRouter(RouterConfig{
			Entitlements: checker,
			Health:       stubHealth{},
			Errors:       apierrors.NewErrorHandler(logger, false),
			Logger:       logger,
		}),
		pki:    pki,
		client: pki.Client("vm-host"),
	}
}

// post sends body as a request that arrived over a verified mTLS connection.
func (s *testServer) post(body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/softwareEntitlements", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.TLS = &tls.ConnectionState{VerifiedChains: [][]*x509.Certificate{{s.client.Cert, s.pki.CA}}}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestEntitlementHandler_Check(t *testing.T) {
	record, ok := entitlement.NewBuilder(time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)).
		Build(entitlement.Input{VirtualMachineID: "vm-01"}).Value()
	require.True(t, ok)

	tests := []struct {
		name       string
		body       string
		setup      func(m *mockChecker)
		wantStatus int
		check      func(t *testing.T, body map[string]any)
	}{
		{
			name: "granted",
			body: `{"virtualMachineId":"vm-01"}`,
			setup: func(m *mockChecker) {
				m.On("Check", mock.Anything, entitlement.CheckInput{VirtualMachineID: "vm-01"}).Return(record, nil)
			},
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "vm-01", body["virtualMachineId"])
				assert.Equal(t, "2026-10-19T09:00:00Z", body["notBefore"])
				assert.Equal(t, "2026-10-26T09:00:00Z", body["notAfter"])
			},
		},
		{
			name: "validation errors reported together",
			body: `{"virtualMachineId":"","at":"later"}`,
			setup: func(m *mockChecker) {
				m.On("Check", mock.Anything, entitlement.CheckInput{At: "later"}).
					Return(entitlement.SoftwareEntitlement{}, &validation.Errors{Messages: []string{"first", "second"}})
			},
			wantStatus: http.StatusBadRequest,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, apierrors.TypeValidation, body["type"])
				assert.Equal(t, []any{"first", "second"}, body["errors"])
			},
		},
		{
			name: "no entitlement",
			body: `{"virtualMachineId":"vm-99"}`,
			setup: func(m *mockChecker) {
				m.On("Check", mock.Anything, mock.Anything).
					Return(entitlement.SoftwareEntitlement{}, fmt.Errorf("%w: vm-99", entitlement.ErrNoEntitlement))
			},
			wantStatus: http.StatusForbidden,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, apierrors.TypeEntitlementDenied, body["type"])
				assert.NotEmpty(t, body["trace_id"])
			},
		},
		{
			name: "outside window",
			body: `{"virtualMachineId":"vm-01","at":"2030-01-01"}`,
			setup: func(m *mockChecker) {
				m.On("Check", mock.Anything, mock.Anything).
					Return(entitlement.SoftwareEntitlement{}, entitlement.ErrOutsideWindow)
			},
			wantStatus: http.StatusForbidden,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, apierrors.TypeEntitlementInactive, body["type"])
			},
		},
		{
			name:       "malformed json",
			body:       `{"virtualMachineId":`,
			setup:      func(m *mockChecker) {},
			wantStatus: http.StatusBadRequest,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, apierrors.TypeInvalidRequest, body["type"])
			},
		},
		{
			name:       "body too large",
			body:       `{"virtualMachineId":"` + strings.Repeat("a", MaxRequestBodyBytes) + `"}`,
			setup:      func(m *mockChecker) {},
			wantStatus: http.StatusRequestEntityTooLarge,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, apierrors.TypePayloadTooLarge, body["type"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := &mockChecker{}
			tt.setup(checker)
			srv := newTestServer(t, checker)

			rec := srv.post(tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			tt.check(t, decode(t, rec))
			checker.AssertExpectations(t)
		})
	}
}

func TestEntitlementHandler_RequiresClientCertificate(t *testing.T) {
	checker := &mockChecker{}
	srv := newTestServer(t, checker)

	req := httptest.NewRequest(http.MethodPost, "/softwareEntitlements", strings.NewReader(`{"virtualMachineId":"vm-01"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	checker.AssertNotCalled(t, "Check", mock.Anything, mock.Anything)
}

func TestEntitlementHandler_RejectsNonJSON(t *testing.T) {
	srv := newTestServer(t, &mockChecker{})

	req := httptest.NewRequest(http.MethodPost, "/softwareEntitlements", strings.NewReader("virtualMachineId=vm-01"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.TLS = &tls.ConnectionState{VerifiedChains: [][]*x509.Certificate{{srv.client.Cert, srv.pki.CA}}}
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}
