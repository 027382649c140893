package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/gridflow/internal/kind"
)

const sampleDocument = `{
	"version": "1.0",
	"inputs": [
		{"type": "InferenceImage", "name": "image"},
		{"type": "InferenceParameter", "name": "confidence"}
	],
	"steps": [
		{"type": "QRCodeDetector", "name": "detector", "images": "$inputs.image"},
		{"type": "DetectionFilter", "name": "filter",
		 "predictions": "$steps.detector.predictions",
		 "threshold": "$inputs.confidence"}
	],
	"outputs": [
		{"name": "result", "selector": "$steps.filter.predictions"}
	]
}`

func TestParse(t *testing.T) {
	doc, err := Parse([]byte(sampleDocument))
	require.NoError(t, err)

	require.Len(t, doc.Inputs, 2)
	require.Len(t, doc.Steps, 2)
	require.Len(t, doc.Outputs, 1)

	detector := doc.Steps[0]
	assert.Equal(t, "QRCodeDetector", detector.Type)
	assert.Equal(t, "detector", detector.Name)
	assert.Equal(t, map[string]any{"images": "$inputs.image"}, detector.Fields)

	out := doc.Outputs[0]
	assert.Equal(t, "result", out.Name)
	assert.Equal(t, "$steps.filter.predictions", out.Selector)
}

func TestParseInvalidJSON(t *testing.T) {
	_, err := Parse([]byte(`{"steps": [`))
	assert.ErrorContains(t, err, "decoding workflow document")
}

func TestInputShape(t *testing.T) {
	doc, err := Parse([]byte(sampleDocument))
	require.NoError(t, err)

	image, ok := doc.Input("image")
	require.True(t, ok)
	assert.True(t, image.Batch())
	assert.Equal(t, kind.NewSet(kind.Image), image.Kinds())

	param, ok := doc.Input("confidence")
	require.True(t, ok)
	assert.False(t, param.Batch())
	assert.True(t, param.Kinds().HasWildcard())
}

func TestValidate(t *testing.T) {
	base := func() *Document {
		doc, err := Parse([]byte(sampleDocument))
		require.NoError(t, err)
		return doc
	}

	t.Run("duplicate step name", func(t *testing.T) {
		doc := base()
		doc.Steps[1].Name = "detector"
		assert.ErrorContains(t, doc.Validate(), `duplicate step name "detector"`)
	})

	t.Run("duplicate input name", func(t *testing.T) {
		doc := base()
		doc.Inputs[1].Name = "image"
		assert.ErrorContains(t, doc.Validate(), `duplicate workflow input name "image"`)
	})

	t.Run("duplicate output name", func(t *testing.T) {
		doc := base()
		doc.Outputs = append(doc.Outputs, &OutputDefinition{Name: "result", Selector: "$inputs.image"})
		assert.ErrorContains(t, doc.Validate(), `duplicate workflow output name "result"`)
	})

	t.Run("unknown input type", func(t *testing.T) {
		doc := base()
		doc.Inputs[0].Type = "Video"
		assert.ErrorContains(t, doc.Validate(), `unknown type "Video"`)
	})

	t.Run("step without type", func(t *testing.T) {
		doc := base()
		doc.Steps[0].Type = ""
		assert.ErrorContains(t, doc.Validate(), `declared without a type`)
	})

	t.Run("output without selector", func(t *testing.T) {
		doc := base()
		doc.Outputs[0].Selector = ""
		assert.ErrorContains(t, doc.Validate(), `without a selector`)
	})
}

func TestMarshalRoundTripKeepsStepShape(t *testing.T) {
	doc, err := Parse([]byte(sampleDocument))
	require.NoError(t, err)

	data, err := doc.Steps[0].MarshalJSON()
	require.NoError(t, err)

	var restored StepManifest
	require.NoError(t, restored.UnmarshalJSON(data))
	assert.Equal(t, doc.Steps[0].Type, restored.Type)
	assert.Equal(t, doc.Steps[0].Name, restored.Name)
	assert.Equal(t, doc.Steps[0].Fields, restored.Fields)
}
