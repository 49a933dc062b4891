package entitlement

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustBuild(t *testing.T, in Input) SoftwareEntitlement {
	t.Helper()
	result := NewBuilder(buildNow).Build(in)
	e, ok := result.Value()
	require.True(t, ok, "errors: %v", result.Errors())
	return e
}

func TestRegistry_Check(t *testing.T) {
	october := mustBuild(t, Input{VirtualMachineID: "vm-a", NotBefore: "2026-10-01T00:00:00Z", NotAfter: "2026-11-01T00:00:00Z"})
	december := mustBuild(t, Input{VirtualMachineID: "vm-a", NotBefore: "2026-12-01T00:00:00Z", NotAfter: "2027-01-01T00:00:00Z"})
	registry := NewRegistry(december, october)

	tests := []struct {
		name    string
		req     CheckRequest
		want    SoftwareEntitlement
		wantErr error
	}{
		{
			name: "inside first window",
			req:  CheckRequest{VirtualMachineID: "vm-a", At: time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)},
			want: october,
		},
		{
			name: "inside second window",
			req:  CheckRequest{VirtualMachineID: "vm-a", At: time.Date(2026, 12, 24, 0, 0, 0, 0, time.UTC)},
			want: december,
		},
		{
			name:    "between windows",
			req:     CheckRequest{VirtualMachineID: "vm-a", At: time.Date(2026, 11, 15, 0, 0, 0, 0, time.UTC)},
			wantErr: ErrOutsideWindow,
		},
		{
			name:    "unknown machine",
			req:     CheckRequest{VirtualMachineID: "vm-b", At: time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)},
			wantErr: ErrNoEntitlement,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := registry.Check(tt.req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, 2, registry.Len())
}

func TestAppendGrantAndLoadRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grants", "grants.yaml")

	first := mustBuild(t, Input{VirtualMachineID: "vm-1"})
	second := mustBuild(t, Input{VirtualMachineID: "vm-2", NotBefore: "2026-10-20T00:00:00Z", NotAfter: "2026-10-21T00:00:00Z"})
	require.NoError(t, AppendGrant(path, first))
	require.NoError(t, AppendGrant(path, second))

	inputs, err := ReadGrants(path)
	require.NoError(t, err)
	require.Len(t, inputs, 2)
	assert.Equal(t, "vm-1", inputs[0].VirtualMachineID)

	registry, err := LoadRegistry(path, NewBuilder(buildNow))
	require.NoError(t, err)
	assert.Equal(t, 2, registry.Len())

	got, err := registry.Check(CheckRequest{VirtualMachineID: "vm-2", At: time.Date(2026, 10, 20, 12, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	assert.Equal(t, second, got)
}

func TestLoadRegistry_AcceptsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grants.json")
	data, err := json.Marshal([]Input{{VirtualMachineID: "vm-json", NotBefore: "2026-10-19T00:00:00Z", NotAfter: "2026-10-29T00:00:00Z"}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	registry, err := LoadRegistry(path, NewBuilder(buildNow))
	require.NoError(t, err)
	assert.Equal(t, 1, registry.Len())
}

func TestLoadRegistry_ReportsEveryInvalidGrant(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grants.yaml")
	content := `
- virtualMachineId: ""
  notBefore: "nope"
- virtualMachineId: ok
- virtualMachineId: vm
  notBefore: "2026-12-01T00:00:00Z"
  notAfter: "2026-11-01T00:00:00Z"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := LoadRegistry(path, NewBuilder(buildNow))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "grant 0: VirtualMachineId")
	assert.Contains(t, err.Error(), "grant 0: NotBefore")
	assert.Contains(t, err.Error(), "grant 2: NotBefore")
	assert.NotContains(t, err.Error(), "grant 1")
}

func TestLoadRegistry_MissingFileIsEmpty(t *testing.T) {
	registry, err := LoadRegistry(filepath.Join(t.TempDir(), "absent.yaml"), NewBuilder(buildNow))
	require.NoError(t, err)
	assert.Zero(t, registry.Len())
}

type recordedOutcome struct {
	operation  string
	success    bool
	errorCount int
}

type fakeRecorder struct {
	outcomes []recordedOutcome
}

func (f *fakeRecorder) RecordValidation(_ context.Context, operation string, success bool, errorCount int) {
	f.outcomes = append(f.outcomes, recordedOutcome{operation, success, errorCount})
}

func TestValidationLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	recorder := &fakeRecorder{}
	vl := NewValidationLogger(logger, recorder)

	b := NewBuilder(buildNow)
	vl.LogEntitlement(context.Background(), "generate", b.Build(Input{VirtualMachineID: "vm"}))
	vl.LogEntitlement(context.Background(), "generate", b.Build(Input{NotBefore: "bad"}))
	vl.LogCheck(context.Background(), b.ParseCheck(CheckInput{VirtualMachineID: "vm"}))

	require.Len(t, recorder.outcomes, 3)
	assert.Equal(t, recordedOutcome{"generate", true, 0}, recorder.outcomes[0])
	assert.Equal(t, recordedOutcome{"generate", false, 2}, recorder.outcomes[1])
	assert.Equal(t, recordedOutcome{"check", true, 0}, recorder.outcomes[2])

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)

	var failure map[string]any
	require.NoError(t, json.Unmarshal(lines[1], &failure))
	assert.Equal(t, "WARN", failure["level"])
	assert.Equal(t, "validation failed", failure["msg"])
	assert.Equal(t, "entitlement_validation", failure["component"])
	assert.Len(t, failure["errors"], 2)
}
