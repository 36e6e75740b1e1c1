package workflow

import (
	"context"
	"fmt"
	"sort"
)

// StateMachineBuilder builds a configured state machine
type StateMachineBuilder interface {
	// Configure returns a state configuration for the given state
	Configure(state State) StateConfiguration

	// Build creates a new state machine instance with the given initial state
	Build(initialState State) StateMachine
}

// StateConfiguration configures transitions for a specific state
type StateConfiguration interface {
	// Permit allows a trigger to transition to the target state
	Permit(trigger Trigger, toState State) StateConfiguration
}

type transitionTable map[State]map[Trigger]State

type stateConfig struct {
	fromState State
	table     transitionTable
}

type stateMachineBuilder struct {
	table transitionTable
}

type stateMachine struct {
	currentState State
	table        transitionTable
}

// NewBuilder creates a new state machine builder
func NewBuilder() StateMachineBuilder {
	return &stateMachineBuilder{table: make(transitionTable)}
}

// Configure panics on an unknown state; configuration is programmer input.
func (b *stateMachineBuilder) Configure(state State) StateConfiguration {
	if !state.IsValid() {
		panic(fmt.Sprintf("invalid state: %s", state))
	}
	if _, ok := b.table[state]; !ok {
		b.table[state] = make(map[Trigger]State)
	}
	return &stateConfig{fromState: state, table: b.table}
}

// Build snapshots the configured table so later Configure calls do not leak
// into machines already built.
func (b *stateMachineBuilder) Build(initialState State) StateMachine {
	if !initialState.IsValid() {
		panic(fmt.Sprintf("invalid initial state: %s", initialState))
	}

	snapshot := make(transitionTable, len(b.table))
	for state, triggers := range b.table {
		copied := make(map[Trigger]State, len(triggers))
		for trigger, to := range triggers {
			copied[trigger] = to
		}
		snapshot[state] = copied
	}

	return &stateMachine{currentState: initialState, table: snapshot}
}

// Permit panics when the trigger is already configured for this state.
func (c *stateConfig) Permit(trigger Trigger, toState State) StateConfiguration {
	if !toState.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", toState))
	}
	if existing, ok := c.table[c.fromState][trigger]; ok {
		panic(fmt.Sprintf("trigger %s from %s already permitted to %s", trigger, c.fromState, existing))
	}
	c.table[c.fromState][trigger] = toState
	return c
}

func (m *stateMachine) State() State {
	return m.currentState
}

func (m *stateMachine) Fire(ctx context.Context, trigger Trigger) error {
	to, ok := m.table[m.currentState][trigger]
	if !ok {
		return fmt.Errorf("%w: cannot fire %s from %q", ErrInvalidTransition, trigger, m.currentState)
	}
	m.currentState = to
	return nil
}

// PermittedTriggers is sorted for stable output.
func (m *stateMachine) PermittedTriggers() []Trigger {
	triggers := make([]Trigger, 0, len(m.table[m.currentState]))
	for trigger := range m.table[m.currentState] {
		triggers = append(triggers, trigger)
	}
	sort.Slice(triggers, func(i, j int) bool { return triggers[i] < triggers[j] })
	return triggers
}
