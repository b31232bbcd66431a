package semantic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/einvoice-platform/pipeline/internal/findings"
)

func TestValidateSkipsWhenBinaryNotConfigured(t *testing.T) {
	t.Parallel()

	fs, outcome, err := Validate(context.Background(), Config{}, []byte("<Invoice/>"))
	require.NoError(t, err)
	assert.Equal(t, findings.OutcomeSkipped, outcome)
	require.Len(t, fs, 1)
	assert.Equal(t, findings.CodeStageSkipped, fs[0].Code)
	assert.Equal(t, findings.SeverityInfo, fs[0].Severity)
}

func TestValidateSkipsWhenBinaryNotFound(t *testing.T) {
	t.Parallel()

	cfg := Config{BinaryPath: "/nonexistent/kosit-validator-binary"}
	fs, outcome, err := Validate(context.Background(), cfg, []byte("<Invoice/>"))
	require.NoError(t, err)
	assert.Equal(t, findings.OutcomeSkipped, outcome)
	require.Len(t, fs, 1)
	assert.Equal(t, findings.CodeStageSkipped, fs[0].Code)
}
