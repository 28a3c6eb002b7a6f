package scaffold

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepNames(t *testing.T) {
	assert.Equal(t, "INITIAL_REVIEWER", StepInitialReviewer.String())
	assert.Equal(t, "TASK_TO_WEBSITE_EDITOR", StepTaskToWebsiteEditor.String())
	assert.Equal(t, "UNKNOWN", Step(0).String())
	assert.Equal(t, "UNKNOWN", Step(11).String())
}

func TestDescribeStep(t *testing.T) {
	assert.Equal(t,
		"Distribute the task to a specific team within the organization. Pause for manual approval on high-risk operations.",
		DescribeStep(StepTaskToTeam))
	assert.Equal(t, UnknownStep, DescribeStep(Step(42)))
	assert.Equal(t, "Unknown step.", DescribeStep(Step(-1)))
}

func TestSteps(t *testing.T) {
	steps := Steps()
	require.Len(t, steps, TotalSteps)
	for i, s := range steps {
		assert.Equal(t, i+1, s.Step)
		assert.NotEqual(t, UnknownStep, s.Description)
	}
	assert.Equal(t, "TASK_TO_CLOUDFLARE", steps[8].Name)
}

func TestStepByName(t *testing.T) {
	s, ok := StepByName("TASK_TO_DRIVE")
	require.True(t, ok)
	assert.Equal(t, StepTaskToDrive, s)

	_, ok = StepByName("TASK_TO_MOON")
	assert.False(t, ok)
}
