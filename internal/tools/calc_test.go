package tools

import (
	"context"
	"testing"

	"evidentia/internal/lineage"
	"evidentia/internal/toolenvelope"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalcEvaluatesArithmetic(t *testing.T) {
	spec := CalcSpec()
	out, err := spec.Handler(context.Background(), lineage.Context{}, map[string]any{"expression": "(2+3)*4"})
	require.NoError(t, err)
	env := out.(toolenvelope.Envelope)
	data := env.Data.(map[string]any)
	assert.Equal(t, float64(20), data["value"])
}

func TestCalcRejectsEmptyExpression(t *testing.T) {
	spec := CalcSpec()
	_, err := spec.Handler(context.Background(), lineage.Context{}, map[string]any{"expression": ""})
	require.Error(t, err)
	ee, ok := err.(*ExecutionError)
	require.True(t, ok)
	assert.Equal(t, ErrValidation, ee.Code)
}

func TestCalcRejectsIdentifiers(t *testing.T) {
	spec := CalcSpec()
	_, err := spec.Handler(context.Background(), lineage.Context{}, map[string]any{"expression": "os.Exit(1)"})
	require.Error(t, err)
}

func TestCalcRejectsDivisionByZero(t *testing.T) {
	spec := CalcSpec()
	_, err := spec.Handler(context.Background(), lineage.Context{}, map[string]any{"expression": "1/0"})
	require.Error(t, err)
}
