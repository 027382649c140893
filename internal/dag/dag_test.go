package dag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/gridflow/internal/enginetest"
	"github.com/specialistvlad/gridflow/internal/schema"
	"github.com/specialistvlad/gridflow/internal/selector"
)

func parseDoc(t *testing.T, raw string) *schema.Document {
	t.Helper()
	doc, err := schema.Parse([]byte(raw))
	require.NoError(t, err)
	return doc
}

const chainDocument = `{
	"inputs": [{"type": "InferenceImage", "name": "image"}],
	"steps": [
		{"type": "Detector", "name": "detector", "images": "$inputs.image"},
		{"type": "DetectionFilter", "name": "filter", "predictions": "$steps.detector.predictions"}
	],
	"outputs": [{"name": "result", "selector": "$steps.filter.predictions"}]
}`

func TestBuildChain(t *testing.T) {
	graph, err := Build(context.Background(), parseDoc(t, chainDocument), enginetest.NewRegistry())
	require.NoError(t, err)

	require.Len(t, graph.Nodes, 2)
	assert.Equal(t, []string{"detector", "filter"}, graph.Order)

	filter := graph.Nodes["filter"]
	assert.Equal(t, []string{"detector"}, filter.Producers())
	assert.Contains(t, graph.Nodes["detector"].Dependents, "filter")

	// The omitted optional threshold field is filled from the manifest default.
	lit, ok := filter.Fields["threshold"].(selector.Literal)
	require.True(t, ok)
	assert.Equal(t, 0.5, lit.Value)

	require.Len(t, graph.Outputs, 1)
	assert.Equal(t, "result", graph.Outputs[0].Name)
	assert.Equal(t, "filter", graph.Outputs[0].Selector.Step)
}

func TestBuildUnknownInputReference(t *testing.T) {
	doc := parseDoc(t, `{
		"inputs": [{"type": "InferenceImage", "name": "image"}],
		"steps": [{"type": "Detector", "name": "detector", "images": "$inputs.missing"}],
		"outputs": []
	}`)
	_, err := Build(context.Background(), doc, enginetest.NewRegistry())
	var unknown *UnknownReferenceError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "detector", unknown.Step)
	assert.Contains(t, err.Error(), `"$inputs.missing"`)
}

func TestBuildUnknownStepReference(t *testing.T) {
	doc := parseDoc(t, `{
		"inputs": [{"type": "InferenceImage", "name": "image"}],
		"steps": [
			{"type": "Detector", "name": "detector", "images": "$inputs.image"},
			{"type": "Sink", "name": "sink", "value": "$steps.missing.output"}
		],
		"outputs": []
	}`)
	_, err := Build(context.Background(), doc, enginetest.NewRegistry())
	var unknown *UnknownReferenceError
	require.ErrorAs(t, err, &unknown)
	assert.Contains(t, err.Error(), `"$steps.missing.output"`)
}

func TestBuildUnknownOutputOfKnownStep(t *testing.T) {
	doc := parseDoc(t, `{
		"inputs": [{"type": "InferenceImage", "name": "image"}],
		"steps": [
			{"type": "Detector", "name": "detector", "images": "$inputs.image"},
			{"type": "Sink", "name": "sink", "value": "$steps.detector.nope"}
		],
		"outputs": []
	}`)
	_, err := Build(context.Background(), doc, enginetest.NewRegistry())
	var unknown *UnknownReferenceError
	require.ErrorAs(t, err, &unknown)
	assert.Contains(t, err.Error(), `"$steps.detector.nope"`)
}

func TestBuildDanglingOutputBinding(t *testing.T) {
	doc := parseDoc(t, `{
		"inputs": [{"type": "InferenceImage", "name": "image"}],
		"steps": [{"type": "Detector", "name": "detector", "images": "$inputs.image"}],
		"outputs": [{"name": "result", "selector": "$steps.ghost.predictions"}]
	}`)
	_, err := Build(context.Background(), doc, enginetest.NewRegistry())
	var unknown *UnknownReferenceError
	require.ErrorAs(t, err, &unknown)
	assert.Empty(t, unknown.Step)
}

func TestBuildCycle(t *testing.T) {
	// a and b read each other; the cycle must be reported independent of
	// declaration order.
	template := func(first, second string) string {
		return `{
			"inputs": [],
			"steps": [` + first + `,` + second + `],
			"outputs": []
		}`
	}
	a := `{"type": "DetectionFilter", "name": "a", "predictions": "$steps.b.predictions"}`
	b := `{"type": "DetectionFilter", "name": "b", "predictions": "$steps.a.predictions"}`

	for name, raw := range map[string]string{
		"a declared first": template(a, b),
		"b declared first": template(b, a),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Build(context.Background(), parseDoc(t, raw), enginetest.NewRegistry())
			var cyclic *CyclicWorkflowError
			require.ErrorAs(t, err, &cyclic)
			require.Len(t, cyclic.Cycle, 3)
			assert.Equal(t, cyclic.Cycle[0], cyclic.Cycle[len(cyclic.Cycle)-1])
			assert.ElementsMatch(t, []string{"a", "b"}, cyclic.Cycle[:2])
		})
	}
}

func TestBuildSelfReference(t *testing.T) {
	doc := parseDoc(t, `{
		"inputs": [],
		"steps": [{"type": "DetectionFilter", "name": "loop", "predictions": "$steps.loop.predictions"}],
		"outputs": []
	}`)
	_, err := Build(context.Background(), doc, enginetest.NewRegistry())
	var cyclic *CyclicWorkflowError
	require.ErrorAs(t, err, &cyclic)
	assert.Equal(t, []string{"loop", "loop"}, cyclic.Cycle)
}

func TestBuildUnregisteredBlockType(t *testing.T) {
	doc := parseDoc(t, `{
		"inputs": [],
		"steps": [{"type": "Teleporter", "name": "t"}],
		"outputs": []
	}`)
	_, err := Build(context.Background(), doc, enginetest.NewRegistry())
	assert.ErrorContains(t, err, `unregistered block type "Teleporter"`)
}

func TestBuildUndeclaredField(t *testing.T) {
	doc := parseDoc(t, `{
		"inputs": [{"type": "InferenceImage", "name": "image"}],
		"steps": [{"type": "Detector", "name": "detector", "images": "$inputs.image", "zoom": 2}],
		"outputs": []
	}`)
	_, err := Build(context.Background(), doc, enginetest.NewRegistry())
	assert.ErrorContains(t, err, `field "zoom" not declared`)
}

func TestBuildMissingRequiredField(t *testing.T) {
	doc := parseDoc(t, `{
		"inputs": [],
		"steps": [{"type": "Detector", "name": "detector"}],
		"outputs": []
	}`)
	_, err := Build(context.Background(), doc, enginetest.NewRegistry())
	assert.ErrorContains(t, err, `missing required field "images"`)
}

func TestBuildMalformedSelector(t *testing.T) {
	doc := parseDoc(t, `{
		"inputs": [{"type": "InferenceImage", "name": "image"}],
		"steps": [{"type": "Detector", "name": "detector", "images": "$steps.broken"}],
		"outputs": []
	}`)
	_, err := Build(context.Background(), doc, enginetest.NewRegistry())
	var malformed *selector.MalformedSelectorError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "images", malformed.Field)
}
