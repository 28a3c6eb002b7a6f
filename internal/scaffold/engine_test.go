package scaffold

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"blackroad.io/operator/models"
	"blackroad.io/operator/pkg/witness"
)

func newTask(t *testing.T, e *Engine) string {
	t.Helper()
	task, err := e.CreateTask("Deploy security audit to BlackRoad-Security", "agent:cece")
	require.NoError(t, err)
	return task.TaskID
}

func TestCreateTask(t *testing.T) {
	e := NewEngine(zap.NewNop())

	task, err := e.CreateTask("Ship it", "")
	require.NoError(t, err)
	assert.NotEmpty(t, task.TaskID)
	assert.Equal(t, time.UTC, task.CreatedAt.Location())
	assert.Empty(t, task.Steps)
	assert.Empty(t, task.WitnessHash)

	step, ok := CurrentStep(task)
	require.True(t, ok)
	assert.Equal(t, StepInitialReviewer, step)

	_, err = e.CreateTask("   ", "")
	assert.ErrorIs(t, err, models.ErrInvalidRequest)
}

func TestAdvance_WalksAllSteps(t *testing.T) {
	e := NewEngine(nil)
	id := newTask(t, e)

	var hashes []string
	for i := 1; i <= TotalSteps; i++ {
		status, err := e.Status(id)
		require.NoError(t, err)
		assert.Equal(t, Step(i).String(), status.CurrentStep)

		result, err := e.Advance(id, map[string]interface{}{"status": "ok"})
		require.NoError(t, err)
		assert.Equal(t, i, result.Step)
		assert.Equal(t, models.StepCompleted, result.Status)
		require.NotNil(t, result.CompletedAt)

		task, err := e.GetTask(id)
		require.NoError(t, err)
		hashes = append(hashes, task.WitnessHash)
	}

	status, err := e.Status(id)
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, status.CurrentStep)
	assert.Equal(t, 10, status.StepsCompleted)
	assert.Equal(t, 10, status.TotalSteps)

	seen := map[string]bool{}
	for _, h := range hashes {
		assert.Len(t, h, 64)
		assert.False(t, seen[h], "every transition changes the witness hash")
		seen[h] = true
	}

	_, err = e.Advance(id, nil)
	assert.ErrorIs(t, err, models.ErrScaffoldComplete)
	_, err = e.FailStep(id, "late")
	assert.ErrorIs(t, err, models.ErrScaffoldComplete)
}

func TestAdvance_UpdatesMetadata(t *testing.T) {
	e := NewEngine(nil)
	id := newTask(t, e)

	outputs := []map[string]interface{}{
		{"reviewed": true},
		{"organization": "BlackRoad-Security"},
		{"team": "audit"},
		{"project": 7},
		{"agent": "cece"},
		{"repository": "hash-witnessing", "branch": "feature/audit"},
	}
	for _, out := range outputs {
		_, err := e.Advance(id, out)
		require.NoError(t, err)
	}

	task, err := e.GetTask(id)
	require.NoError(t, err)
	assert.Equal(t, "BlackRoad-Security", task.Organization)
	assert.Equal(t, "audit", task.Team)
	assert.Equal(t, "cece", task.Agent)
	assert.Equal(t, "hash-witnessing", task.Repository)
	assert.Equal(t, "feature/audit", task.Branch)
	assert.Equal(t, 7, task.Steps[3].Output["project"])
}

func TestAdvance_EmptyOutputKeepsMetadata(t *testing.T) {
	e := NewEngine(nil)
	id := newTask(t, e)

	_, err := e.Advance(id, nil)
	require.NoError(t, err)
	res, err := e.Advance(id, nil)
	require.NoError(t, err)
	assert.NotNil(t, res.Output, "output defaults to an empty map")

	task, _ := e.GetTask(id)
	assert.Empty(t, task.Organization)

	// A non-empty output without the key clears the field.
	e2 := NewEngine(nil)
	id2 := newTask(t, e2)
	_, _ = e2.Advance(id2, nil)
	_, err = e2.Advance(id2, map[string]interface{}{"note": "no org"})
	require.NoError(t, err)
	task2, _ := e2.GetTask(id2)
	assert.Empty(t, task2.Organization)
}

func TestFailStep_StepStaysCurrent(t *testing.T) {
	e := NewEngine(nil)
	id := newTask(t, e)

	before, _ := e.GetTask(id)
	res, err := e.FailStep(id, "policy engine unavailable")
	require.NoError(t, err)
	assert.Equal(t, models.StepFailed, res.Status)
	assert.Equal(t, "policy engine unavailable", res.Error)

	task, _ := e.GetTask(id)
	assert.NotEqual(t, before.WitnessHash, task.WitnessHash)
	step, _ := CurrentStep(task)
	assert.Equal(t, StepInitialReviewer, step)

	status, _ := e.Status(id)
	assert.Equal(t, 0, status.StepsCompleted)

	_, err = e.Advance(id, nil)
	require.NoError(t, err)
	task, _ = e.GetTask(id)
	assert.Len(t, task.Steps, 2)
	step, _ = CurrentStep(task)
	assert.Equal(t, StepTaskToOrganization, step)
}

func TestPauseAndApprove(t *testing.T) {
	e := NewEngine(nil)
	id := newTask(t, e)

	_, err := e.Approve(id, nil)
	assert.ErrorIs(t, err, models.ErrNotAwaitingApproval)

	res, err := e.PauseForApproval(id, "high risk", map[string]interface{}{"rules": []string{"r1"}})
	require.NoError(t, err)
	assert.Equal(t, models.StepAwaitingApproval, res.Status)
	assert.Nil(t, res.CompletedAt)
	assert.Equal(t, "high risk", res.Output["reason"])

	task, _ := e.GetTask(id)
	assert.True(t, AwaitingApproval(task))

	_, err = e.Advance(id, nil)
	assert.ErrorIs(t, err, models.ErrAwaitingApproval)
	_, err = e.PauseForApproval(id, "again", nil)
	assert.ErrorIs(t, err, models.ErrAwaitingApproval)

	res, err = e.Approve(id, map[string]interface{}{"approver": "ops"})
	require.NoError(t, err)
	assert.Equal(t, models.StepCompleted, res.Status)
	assert.Equal(t, int(StepInitialReviewer), res.Step)

	task, _ = e.GetTask(id)
	assert.False(t, AwaitingApproval(task))
	step, _ := CurrentStep(task)
	assert.Equal(t, StepTaskToOrganization, step)
}

func TestFailStep_ClearsPause(t *testing.T) {
	e := NewEngine(nil)
	id := newTask(t, e)

	_, err := e.PauseForApproval(id, "", nil)
	require.NoError(t, err)
	_, err = e.FailStep(id, "approval rejected")
	require.NoError(t, err)

	task, _ := e.GetTask(id)
	assert.False(t, AwaitingApproval(task))
	_, err = e.Approve(id, nil)
	assert.ErrorIs(t, err, models.ErrNotAwaitingApproval)
}

func TestUnknownTask(t *testing.T) {
	e := NewEngine(nil)

	_, err := e.Advance("missing", nil)
	assert.ErrorIs(t, err, models.ErrTaskNotFound)
	_, err = e.FailStep("missing", "x")
	assert.ErrorIs(t, err, models.ErrTaskNotFound)
	_, err = e.GetTask("missing")
	assert.ErrorIs(t, err, models.ErrTaskNotFound)
	_, err = e.Status("missing")
	assert.ErrorIs(t, err, models.ErrTaskNotFound)
}

func TestWitnessHashMatchesTaskState(t *testing.T) {
	e := NewEngine(nil)
	id := newTask(t, e)
	_, err := e.Advance(id, map[string]interface{}{"a": 1})
	require.NoError(t, err)
	_, err = e.FailStep(id, "boom")
	require.NoError(t, err)

	task, err := e.GetTask(id)
	require.NoError(t, err)
	want, err := witness.TaskHash(task)
	require.NoError(t, err)
	assert.Equal(t, want, task.WitnessHash)
}

func TestGetTask_ReturnsCopy(t *testing.T) {
	e := NewEngine(nil)
	id := newTask(t, e)
	_, err := e.Advance(id, map[string]interface{}{"k": "v"})
	require.NoError(t, err)

	task, _ := e.GetTask(id)
	task.Steps[0].Output["k"] = "mutated"
	task.Intent = "mutated"

	again, _ := e.GetTask(id)
	assert.Equal(t, "v", again.Steps[0].Output["k"])
	assert.NotEqual(t, "mutated", again.Intent)
}

func TestListTasks_OldestFirst(t *testing.T) {
	e := NewEngine(nil)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		e.now = func() time.Time { return at }
		ids = append(ids, newTask(t, e))
	}

	tasks := e.ListTasks()
	require.Len(t, tasks, 3)
	for i, task := range tasks {
		assert.Equal(t, ids[i], task.TaskID)
	}
}

func TestConcurrentAdvance(t *testing.T) {
	e := NewEngine(nil)
	id := newTask(t, e)

	var wg sync.WaitGroup
	errs := make(chan error, 15)
	for i := 0; i < 15; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.Advance(id, nil); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	var complete int
	for err := range errs {
		assert.ErrorIs(t, err, models.ErrScaffoldComplete)
		complete++
	}
	assert.Equal(t, 5, complete)

	status, _ := e.Status(id)
	assert.Equal(t, StatusComplete, status.CurrentStep)
}
