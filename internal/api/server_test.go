package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"ontextract/internal/util"

	"github.com/stretchr/testify/require"
	"go.temporal.io/api/serviceerror"
)

func TestWorkflowAlreadyStartedClassification(t *testing.T) {
	already := serviceerror.NewWorkflowExecutionAlreadyStarted("workflow execution already started", "req-1", "run-1")
	require.True(t, workflowAlreadyStarted(already))
	require.True(t, workflowAlreadyStarted(fmt.Errorf("start workflow for run abc: %w", already)))

	require.False(t, workflowAlreadyStarted(errors.New("connection refused")))
	require.False(t, workflowAlreadyStarted(serviceerror.NewNotFound("namespace missing")))
	require.False(t, workflowAlreadyStarted(nil))
}

func TestToAPIErrorDuplicateRun(t *testing.T) {
	e := toAPIError(http.StatusConflict, fmt.Errorf("%w: %s", util.ErrDuplicateRun, "abc"))
	require.Equal(t, "OE-RUN-4009", e.Code)
	require.Equal(t, "A run with this id is already in progress.", e.Message)
}

func TestToAPIErrorStartFailureIsServerError(t *testing.T) {
	e := toAPIError(http.StatusInternalServerError, errors.New("start workflow for run abc: namespace missing"))
	require.Equal(t, "OE-API-5000", e.Code)
	require.NotContains(t, e.Message, "already in progress")
}
