package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLiteral(t *testing.T) {
	for name, raw := range map[string]any{
		"string":  "hello",
		"number":  0.5,
		"boolean": true,
		"nil":     nil,
	} {
		t.Run(name, func(t *testing.T) {
			fv, err := Parse("field", raw)
			require.NoError(t, err)
			lit, ok := fv.(Literal)
			require.True(t, ok)
			assert.Equal(t, raw, lit.Value)
			assert.Empty(t, fv.Selectors())
		})
	}
}

func TestParseInputSelector(t *testing.T) {
	fv, err := Parse("images", "$inputs.image")
	require.NoError(t, err)
	sel, ok := fv.(Selector)
	require.True(t, ok)
	assert.Equal(t, ScopeInput, sel.Scope)
	assert.Equal(t, "image", sel.Name)
	assert.Empty(t, sel.Step)
	assert.Empty(t, sel.Property)
	assert.Equal(t, "$inputs.image", sel.Raw)
}

func TestParseStepOutputSelector(t *testing.T) {
	fv, err := Parse("predictions", "$steps.detector.predictions")
	require.NoError(t, err)
	sel, ok := fv.(Selector)
	require.True(t, ok)
	assert.Equal(t, ScopeStepOutput, sel.Scope)
	assert.Equal(t, "detector", sel.Step)
	assert.Equal(t, "predictions", sel.Name)
	assert.Empty(t, sel.Property)
}

func TestParsePropertyAccessor(t *testing.T) {
	fv, err := Parse("conf", "$steps.detector.predictions.confidence")
	require.NoError(t, err)
	sel := fv.(Selector)
	assert.Equal(t, "predictions", sel.Name)
	assert.Equal(t, "confidence", sel.Property)

	fv, err = Parse("size", "$inputs.params.threshold")
	require.NoError(t, err)
	sel = fv.(Selector)
	assert.Equal(t, "params", sel.Name)
	assert.Equal(t, "threshold", sel.Property)
}

func TestParseMalformed(t *testing.T) {
	for _, raw := range []string{
		"$inputs.",
		"$steps.detector",
		"$steps.detector.",
		"$steps..predictions",
		"$inputs.a.b.c",
		"$steps.a.b.c.d",
	} {
		t.Run(raw, func(t *testing.T) {
			_, err := Parse("field", raw)
			var malformed *MalformedSelectorError
			require.ErrorAs(t, err, &malformed)
			assert.Equal(t, "field", malformed.Field)
			assert.Equal(t, raw, malformed.Value)
			assert.Contains(t, err.Error(), raw)
		})
	}
}

func TestParseRecursive(t *testing.T) {
	raw := []any{
		"$steps.a.out",
		map[string]any{"img": "$inputs.image", "weight": 1.0},
		"plain",
	}
	fv, err := Parse("mixed", raw)
	require.NoError(t, err)

	sels := fv.Selectors()
	require.Len(t, sels, 2)
	assert.Equal(t, "$steps.a.out", sels[0].Raw)
	assert.Equal(t, "$inputs.image", sels[1].Raw)
}

func TestParseRecursiveMalformed(t *testing.T) {
	_, err := Parse("nested", map[string]any{"bad": "$steps.x"})
	var malformed *MalformedSelectorError
	assert.ErrorAs(t, err, &malformed)
}

func TestParseReference(t *testing.T) {
	sel, err := ParseReference("result", "$steps.detector.predictions")
	require.NoError(t, err)
	assert.Equal(t, "detector", sel.Step)

	_, err = ParseReference("result", "not-a-selector")
	var malformed *MalformedSelectorError
	assert.ErrorAs(t, err, &malformed)
}
