package workers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type countingWorker struct {
	runs int
}

func (w *countingWorker) Run() { w.runs++ }

func TestWorkers_RunsAllWorkers(t *testing.T) {
	w1 := &countingWorker{}
	w2 := &countingWorker{}

	New(w1, w2).Run()

	assert.Equal(t, 1, w1.runs)
	assert.Equal(t, 1, w2.runs)
}

func TestWorkers_EmptyAggregateIsNoop(t *testing.T) {
	assert.NotPanics(t, func() { New().Run() })
}
