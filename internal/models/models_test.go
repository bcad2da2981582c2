package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStageAdvancesForwardOnly(t *testing.T) {
	order := []Stage{StageAnalyzing, StageAwaitingApproval, StageExecuting, StageSynthesizing, StageCompleted}
	for i, from := range order {
		for j, to := range order {
			got := from.CanAdvanceTo(to)
			assert.Equal(t, j > i && from != StageCompleted, got, "%s -> %s", from, to)
		}
	}
}

func TestStageErrorReachableFromAnywhereButItself(t *testing.T) {
	for _, from := range []Stage{StageAnalyzing, StageAwaitingApproval, StageExecuting, StageSynthesizing, StageCompleted} {
		assert.True(t, from.CanAdvanceTo(StageError), "%s -> error", from)
	}
	assert.False(t, StageError.CanAdvanceTo(StageError))
	assert.False(t, StageError.CanAdvanceTo(StageAnalyzing))
}

func TestTerminalStagesDoNotAdvance(t *testing.T) {
	assert.False(t, StageCompleted.CanAdvanceTo(StageCompleted))
	assert.False(t, StageError.CanAdvanceTo(StageExecuting))
	assert.True(t, StageCompleted.Terminal())
	assert.True(t, StageError.Terminal())
	assert.False(t, StageExecuting.Terminal())
}
