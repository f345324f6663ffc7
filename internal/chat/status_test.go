package chat

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusMachineHappyPath(t *testing.T) {
	m := NewStatusMachine("bob")
	var changes []StatusChange
	m.Subscribe(func(c StatusChange) { changes = append(changes, c) })

	require.NoError(t, m.Transition(StatusConnecting))
	require.NoError(t, m.Transition(StatusConnected))
	require.NoError(t, m.Transition(StatusSecured))
	assert.Equal(t, StatusSecured, m.Status())

	require.Len(t, changes, 3)
	assert.Equal(t, StatusIdle, changes[0].From)
	assert.Equal(t, StatusSecured, changes[2].To)
	assert.Equal(t, "bob", changes[2].PeerID)
}

func TestStatusMachineIllegalTransitions(t *testing.T) {
	tests := []struct {
		from ConnectionStatus
		to   ConnectionStatus
	}{
		{StatusIdle, StatusConnected},
		{StatusIdle, StatusSecured},
		{StatusConnecting, StatusSecured},
		{StatusConnecting, StatusIdle},
		{StatusConnected, StatusConnecting},
		{StatusSecured, StatusConnected},
		{StatusError, StatusSecured},
		{StatusError, StatusConnected},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.False(t, CanTransition(tt.from, tt.to))
		})
	}

	m := NewStatusMachine("bob")
	err := m.Transition(StatusSecured)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StatusIdle, m.Status())
}

func TestStatusMachineErrorFromAnyState(t *testing.T) {
	for _, from := range []ConnectionStatus{StatusIdle, StatusConnecting, StatusConnected, StatusSecured, StatusError} {
		assert.True(t, CanTransition(from, StatusError), from)
	}

	m := NewStatusMachine("bob")
	var last StatusChange
	m.Subscribe(func(c StatusChange) { last = c })

	require.NoError(t, m.Transition(StatusConnecting))
	cause := errors.New("timeout")
	m.Fail(cause)
	assert.Equal(t, StatusError, m.Status())
	assert.Equal(t, cause, last.Err)

	// 重试只能回到 connecting
	require.NoError(t, m.Transition(StatusConnecting))
}

func TestStatusMachineRetryFromSecured(t *testing.T) {
	m := NewStatusMachine("bob")
	require.NoError(t, m.Transition(StatusConnecting))
	require.NoError(t, m.Transition(StatusConnected))
	require.NoError(t, m.Transition(StatusSecured))
	require.NoError(t, m.Transition(StatusConnecting))
}

func TestStatusMachineResetAndUnsubscribe(t *testing.T) {
	m := NewStatusMachine("bob")
	var count int
	unsubscribe := m.Subscribe(func(StatusChange) { count++ })

	require.NoError(t, m.Transition(StatusConnecting))
	m.Reset("carol")
	assert.Equal(t, StatusIdle, m.Status())
	assert.Equal(t, "carol", m.PeerID())
	assert.Equal(t, 2, count)

	unsubscribe()
	unsubscribe()
	require.NoError(t, m.Transition(StatusConnecting))
	assert.Equal(t, 2, count)
}

func TestStatusMachineListenerOrder(t *testing.T) {
	m := NewStatusMachine("bob")
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		m.Subscribe(func(StatusChange) { order = append(order, i) })
	}
	require.NoError(t, m.Transition(StatusConnecting))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestConnectionStatusIsValid(t *testing.T) {
	assert.True(t, StatusSecured.IsValid())
	assert.False(t, ConnectionStatus("online").IsValid())
}
