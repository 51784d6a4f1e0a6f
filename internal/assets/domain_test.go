package assets

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLifecycle(t *testing.T) {
	item := Item{InventoryNumber: "INV-1", State: StatePending, Condition: ConditionNew}

	require.NoError(t, item.Transition(StateAvailable))
	require.NoError(t, item.Assign(4))
	require.Equal(t, int64(4), *item.DepartmentID)

	require.NoError(t, item.Release(ConditionFair))
	require.Nil(t, item.DepartmentID)
	require.Equal(t, ConditionFair, item.Condition)

	require.NoError(t, item.Dispose())
	require.Equal(t, ConditionDamaged, item.Condition)

	for _, to := range []State{StateAvailable, StateAssigned, StateMaintenance, StateDisposed} {
		require.ErrorIs(t, item.Transition(to), ErrInvalidTransition)
	}
}

func TestAssignRequiresAvailable(t *testing.T) {
	item := Item{State: StateMaintenance}
	require.ErrorIs(t, item.Assign(1), ErrInvalidTransition)
	item = Item{State: StatePending}
	require.ErrorIs(t, item.Release(ConditionGood), ErrInvalidTransition)
	require.NoError(t, item.Transition(StateVoid))
	require.False(t, CanTransition(StateVoid, StateAvailable))
}

func TestReleaseRequiresAssigned(t *testing.T) {
	for _, state := range []State{StatePending, StateAvailable, StateMaintenance, StateDisposed, StateVoid} {
		item := Item{InventoryNumber: "INV-2", State: state, Condition: ConditionGood}
		require.ErrorIs(t, item.Release(ConditionFair), ErrInvalidTransition, state)
		require.Equal(t, state, item.State)
		require.Equal(t, ConditionGood, item.Condition)
	}

	item := Item{State: StateMaintenance}
	require.NoError(t, item.Transition(StateAvailable))
}

func TestInCirculation(t *testing.T) {
	cases := map[State]bool{
		StateAvailable:   true,
		StateAssigned:    true,
		StateMaintenance: true,
		StatePending:     false,
		StateVoid:        false,
		StateDisposed:    false,
	}
	for state, want := range cases {
		item := Item{State: state}
		require.Equal(t, want, item.InCirculation(), state)
	}
}
