package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantalang/coordinator/pkg/types"
)

func TestAdmissionRespectsCapAndIgnoresSuspended(t *testing.T) {
	s := New(2)
	s.Enqueue(types.NewFile("a"), types.NewFile("b"), types.NewFile("c"))

	require.True(t, s.CanAdmit())
	f, ok := s.NextPending()
	require.True(t, ok)
	s.AddRunning(&Record{Worker: 1, File: f})

	require.True(t, s.CanAdmit())
	f, ok = s.NextPending()
	require.True(t, ok)
	s.AddRunning(&Record{Worker: 2, File: f})

	// Cap is 2 and both are active (not suspended): no more admission.
	assert.False(t, s.CanAdmit())

	// Suspend worker 1: its slot is free even though it is still "running".
	require.NoError(t, s.Wait.Suspend(1, nil, types.SymbolModule, "X", nil))
	assert.Equal(t, 1, s.Active())
	assert.True(t, s.CanAdmit())
}

func TestDoneAndStalled(t *testing.T) {
	s := New(4)
	assert.True(t, s.Done())

	s.Enqueue(types.NewFile("a"))
	f, _ := s.NextPending()
	rec := &Record{Worker: 1, File: f, Cancel: func() {}}
	s.AddRunning(rec)

	assert.False(t, s.Done())
	assert.False(t, s.Stalled())

	require.NoError(t, s.Wait.Suspend(1, nil, types.SymbolModule, "Y", nil))
	assert.True(t, s.Stalled())

	s.Wait.Remove(1)
	s.RemoveRunning(1)
	assert.True(t, s.Done())
}

func TestAllRunningSnapshot(t *testing.T) {
	s := New(4)
	_, cancel1 := context.WithCancel(context.Background())
	_, cancel2 := context.WithCancel(context.Background())
	s.AddRunning(&Record{Worker: 1, File: types.NewFile("a"), Cancel: cancel1})
	s.AddRunning(&Record{Worker: 2, File: types.NewFile("b"), Cancel: cancel2})

	all := s.AllRunning()
	assert.Len(t, all, 2)
}

func TestRemoveRunningMissingIsNoop(t *testing.T) {
	s := New(4)
	assert.Nil(t, s.RemoveRunning(99))
}
