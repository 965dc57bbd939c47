package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/NeuroRisk-Intelligence/internal/application/assessment"
	"github.com/turtacn/NeuroRisk-Intelligence/internal/domain/impact"
	"github.com/turtacn/NeuroRisk-Intelligence/internal/domain/risk"
	"github.com/turtacn/NeuroRisk-Intelligence/pkg/client"
	"github.com/turtacn/NeuroRisk-Intelligence/pkg/errors"
)

func TestAssess_Text(t *testing.T) {
	res := runLocal(t, "assess", "-b", "reaction_time", "--value", "400", "-u", "milliseconds")
	require.NoError(t, res.err)

	assert.Contains(t, res.stdout, "Behavior:            reaction_time = 400 milliseconds")
	assert.Contains(t, res.stdout, "Risk level:          CRITICAL")
	assert.Contains(t, res.stdout, "prefrontal_cortex")
	assert.Contains(t, res.stdout, "Recommendations:")
	assert.Contains(t, res.stderr, "WARNING: reaction_time measurement is at CRITICAL risk")
}

func TestAssess_JSON(t *testing.T) {
	res := runLocal(t, "-o", "json", "assess",
		"-b", " Memory_Test ", "--value", "80", "-u", "SCORE", "--timestamp", "2024-03-01T10:00:00Z")
	require.NoError(t, res.err)

	var a assessment.Assessment
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &a))
	require.NotNil(t, a.Result)
	assert.Equal(t, "memory_test", a.Result.Input.BehaviorID)
	assert.Equal(t, impact.UnitScore, a.Result.Input.Unit)
	assert.Equal(t, 2024, a.Result.Input.Timestamp.Year())
	assert.InDelta(t, 0.72, a.Result.AggregateImpact, 1e-9)
	assert.Equal(t, risk.High, a.Result.RiskLevel)
	require.NotNil(t, a.Report)
	assert.Equal(t, []string{"memory formation"}, a.Report.AffectedFunctions)
}

func TestAssess_Table(t *testing.T) {
	res := runLocal(t, "-o", "table", "assess", "-b", "screen_time", "--value", "4", "-u", "count")
	require.NoError(t, res.err)

	lines := strings.Split(strings.TrimRight(res.stdout, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "REGION"))
	assert.Contains(t, res.stdout, "occipital_lobe")
	assert.Empty(t, res.stderr)
}

func TestAssess_FailOn(t *testing.T) {
	res := runLocal(t, "assess", "-b", "memory_test", "--value", "80", "-u", "score", "--fail-on", "high")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "reaches --fail-on high")
	assert.NotEmpty(t, res.stdout)

	res = runLocal(t, "assess", "-b", "memory_test", "--value", "10", "-u", "score", "--fail-on", "high")
	assert.NoError(t, res.err)

	res = runLocal(t, "assess", "-b", "memory_test", "--value", "10", "-u", "score", "--fail-on", "dire")
	assert.True(t, errors.IsValidation(res.err))
}

func TestAssess_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code errors.ErrorCode
	}{
		{"unknown behavior", []string{"-b", "juggling", "--value", "1", "-u", "score"}, errors.ErrCodeProfileNotFound},
		{"unknown unit", []string{"-b", "memory_test", "--value", "1", "-u", "furlongs"}, errors.ErrCodeInvalidMeasurement},
		{"bad timestamp", []string{"-b", "memory_test", "--value", "1", "-u", "score", "--timestamp", "yesterday"}, errors.ErrCodeBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runLocal(t, append([]string{"assess"}, tt.args...)...)
			require.Error(t, res.err)
			assert.Equal(t, tt.code, errors.GetCode(res.err))
		})
	}
}

func TestAssess_MissingRequiredFlag(t *testing.T) {
	res := runLocal(t, "assess", "-b", "memory_test", "--value", "1")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "unit")
}

const batchArray = `[
  {"behavior_id": "reaction_time", "value": 400, "unit": "milliseconds"},
  {"behavior_id": "juggling", "value": 1, "unit": "score"},
  {"behavior_id": "memory_test", "value": 10, "unit": "score"}
]`

func TestBatch_Stdin(t *testing.T) {
	res := run(t, batchArray, "-k", knowledgeDir(t), "-o", "json", "batch", "-f", "-")
	require.NoError(t, res.err)

	var out client.BatchResult
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &out))
	assert.Equal(t, 3, out.Total)
	assert.Equal(t, 2, out.Succeeded)
	assert.Equal(t, 1, out.Failed)
	require.Len(t, out.Items, 3)
	assert.Equal(t, risk.Critical, out.Items[0].Assessment.Result.RiskLevel)
	require.NotNil(t, out.Items[1].Error)
	assert.Equal(t, errors.ErrCodeProfileNotFound.String(), out.Items[1].Error.Code)
	assert.Equal(t, risk.Low, out.Items[2].Assessment.Result.RiskLevel)
}

func TestBatch_WrappedFileTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"measurements": `+batchArray+`}`), 0o644))

	res := runLocal(t, "-o", "table", "batch", "-f", path)
	require.NoError(t, res.err)

	lines := strings.Split(strings.TrimRight(res.stdout, "\n"), "\n")
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], "#"))
	assert.Contains(t, lines[2], "critical")
	assert.Contains(t, lines[3], "juggling")
	assert.Contains(t, lines[3], errors.ErrCodeProfileNotFound.String())
}

func TestBatch_Text(t *testing.T) {
	res := run(t, batchArray, "-k", knowledgeDir(t), "batch", "-f", "-")
	require.NoError(t, res.err)
	assert.True(t, strings.HasPrefix(res.stdout, "3 measurements: 2 assessed, 1 failed"))
}

func TestBatch_BadInput(t *testing.T) {
	dir := knowledgeDir(t)

	res := run(t, "", "-k", dir, "batch", "-f", "-")
	assert.True(t, errors.IsValidation(res.err))

	res = run(t, "[]", "-k", dir, "batch", "-f", "-")
	assert.True(t, errors.IsValidation(res.err))

	res = run(t, "{not json", "-k", dir, "batch", "-f", "-")
	assert.Equal(t, errors.ErrCodeSerialization, errors.GetCode(res.err))

	res = run(t, "", "-k", dir, "batch", "-f", filepath.Join(t.TempDir(), "absent.json"))
	assert.Equal(t, errors.ErrCodeBadRequest, errors.GetCode(res.err))
}
