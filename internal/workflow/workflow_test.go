package workflow

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepguard/stepguard/pkg/riskengine"
	sgerrors "github.com/stepguard/stepguard/pkg/shared/errors"
)

func TestLoadYAML(t *testing.T) {
	wf, err := Load("testdata/refunds.yaml")
	require.NoError(t, err)

	assert.Equal(t, "AUTO-REFUNDS-7", wf.ID)
	assert.False(t, wf.GeneratedID)
	assert.Equal(t, "Card refund automation", wf.Title)
	assert.Equal(t, "testdata/refunds.yaml", wf.Source)
	require.Len(t, wf.Steps, 3)

	assert.Equal(t, riskengine.Step{
		ID:                 "2",
		Name:               "Refund the card",
		Description:        "Refund card 4111-1111-1111-1111 for the disputed amount",
		Tool:               "Fiserv Gateway",
		Databases:          []string{"orders"},
		AccessRequirements: []string{"Fiserv merchant credentials"},
		AutomationDetails:  "update the order status to refunded",
	}, wf.Steps[1])
}

func TestLoadJSON(t *testing.T) {
	wf, err := Load("testdata/notify.json")
	require.NoError(t, err)

	assert.True(t, wf.GeneratedID)
	_, err = uuid.Parse(wf.ID)
	assert.NoError(t, err)
	require.Len(t, wf.Steps, 2)
	assert.Equal(t, "1", wf.Steps[0].ID)
	assert.Equal(t, "2", wf.Steps[1].ID)
	assert.Equal(t, "Slack", wf.Steps[1].Tool)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("testdata/absent.yaml")
	assert.Error(t, err)
}

func TestParseRejectsInvalidRecords(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		problems []string
	}{
		{
			name:     "No steps key",
			doc:      "title: empty\n",
			problems: []string{"steps: is required"},
		},
		{
			name:     "Empty step list",
			doc:      "steps: []\n",
			problems: []string{"steps: needs at least 1 entries"},
		},
		{
			name: "Duplicate step IDs",
			doc: `
steps:
  - step_id: a
  - step_id: b
  - step_id: a
`,
			problems: []string{`steps[2].step_id: "a" duplicates steps[0]`},
		},
		{
			name: "Positional ID collides with explicit one",
			doc: `
steps:
  - step_id: "2"
  - description: second
`,
			problems: []string{`steps[1].step_id: "2" duplicates steps[0]`},
		},
		{
			name: "Dangling references",
			doc: `
steps:
  - step_id: a
    next_step: z
  - step_id: b
    dependencies: [a, y]
`,
			problems: []string{
				`steps[0].next_step: unknown step "z"`,
				`steps[1].dependencies[1]: unknown step "y"`,
			},
		},
		{
			name:     "Oversized field",
			doc:      "steps:\n  - tool: " + strings.Repeat("x", 513) + "\n",
			problems: []string{"steps[0].tool: is longer than 512 characters"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc), FormatYAML, "flow.yaml")
			require.Error(t, err)

			var recErr *sgerrors.InvalidRecordError
			require.True(t, errors.As(err, &recErr), "unexpected error %v", err)
			assert.Equal(t, "flow.yaml", recErr.Source)
			assert.Equal(t, tc.problems, recErr.Problems)
		})
	}
}

func TestParseDecodeErrors(t *testing.T) {
	_, err := Parse([]byte("steps: [unterminated"), FormatYAML, "bad.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `failed to decode workflow "bad.yaml"`)

	_, err = Parse([]byte(`{"steps": [{"step_id": true}]}`), FormatJSON, "bad.json")
	assert.Error(t, err)

	_, err = Parse([]byte(`steps: []`), "toml", "flow.toml")
	assert.Error(t, err)
}

func TestNumericIdentifiers(t *testing.T) {
	wf, err := Parse([]byte(`{"automation_id": 42, "steps": [{"step_id": 7}, {"step_id": "x", "dependencies": [7]}]}`), FormatJSON, "n.json")
	require.NoError(t, err)
	assert.Equal(t, "42", wf.ID)
	assert.Equal(t, "7", wf.Steps[0].ID)

	wf, err = Parse([]byte("steps:\n  - step_id: 3\n"), FormatYAML, "n.yaml")
	require.NoError(t, err)
	assert.Equal(t, "3", wf.Steps[0].ID)
}

func TestFormatFromPath(t *testing.T) {
	assert.Equal(t, FormatJSON, FormatFromPath("a/b/flow.JSON"))
	assert.Equal(t, FormatYAML, FormatFromPath("flow.yml"))
	assert.Equal(t, FormatYAML, FormatFromPath("flow.yaml"))
}
