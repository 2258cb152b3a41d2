package workflow

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

type reviewKey struct{}

func TestState_IsTerminal(t *testing.T) {
	tests := []struct {
		state    State
		expected bool
	}{
		{StateExtracting, false},
		{StateMatching, false},
		{StateDetecting, false},
		{StateResolving, false},
		{StateReviewing, false},
		{StateDone, true},
		{StateErrored, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.expected {
				t.Errorf("State.IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		expected bool
	}{
		{"valid state", StateExtracting, true},
		{"valid terminal state", StateDone, true},
		{"invalid state", State("INVALID"), false},
		{"empty state", State(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.expected {
				t.Errorf("State.IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestTrigger_String(t *testing.T) {
	if got := TriggerMatched.String(); got != "MATCHED" {
		t.Errorf("Trigger.String() = %v, want %v", got, "MATCHED")
	}
}

func TestBuilder_ConfigureReturnsSameConfig(t *testing.T) {
	builder := NewBuilder()

	config := builder.Configure(StateExtracting)
	if config == nil {
		t.Fatal("Configure() returned nil")
	}
	if config2 := builder.Configure(StateExtracting); config != config2 {
		t.Error("Configure() should return the same config for the same state")
	}
}

func TestBuilder_ConfigurePanics(t *testing.T) {
	tests := []struct {
		name  string
		state State
	}{
		{"invalid state", State("INVALID")},
		{"terminal state", StateDone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if r := recover(); r == nil {
					t.Error("Configure() should panic")
				}
			}()
			NewBuilder().Configure(tt.state)
		})
	}
}

func buildRunMachine() StateMachine {
	builder := NewBuilder()
	builder.Configure(StateExtracting).
		Permit(TriggerExtracted, StateMatching).
		Permit(TriggerExtractionFailed, StateErrored)
	builder.Configure(StateMatching).
		Permit(TriggerMatched, StateDetecting)
	builder.Configure(StateDetecting).
		Permit(TriggerDetected, StateResolving)
	builder.Configure(StateResolving).
		PermitIf(TriggerResolved, StateReviewing, func(ctx context.Context) bool {
			wants, _ := ctx.Value(reviewKey{}).(bool)
			return wants
		}).
		Permit(TriggerResolved, StateDone)
	builder.Configure(StateReviewing).
		Permit(TriggerReviewed, StateDone)
	return builder.Build(StateExtracting)
}

func TestStateMachine_HappyPath(t *testing.T) {
	sm := buildRunMachine()
	ctx := context.Background()

	for _, trigger := range []Trigger{TriggerExtracted, TriggerMatched, TriggerDetected, TriggerResolved} {
		if err := sm.Fire(ctx, trigger); err != nil {
			t.Fatalf("Fire(%s) error = %v", trigger, err)
		}
	}

	if sm.State() != StateDone {
		t.Errorf("State() = %v, want %v", sm.State(), StateDone)
	}

	want := []State{StateExtracting, StateMatching, StateDetecting, StateResolving, StateDone}
	if got := sm.History(); !reflect.DeepEqual(got, want) {
		t.Errorf("History() = %v, want %v", got, want)
	}
}

func TestStateMachine_GuardedReviewBranch(t *testing.T) {
	sm := buildRunMachine()
	ctx := context.WithValue(context.Background(), reviewKey{}, true)

	for _, trigger := range []Trigger{TriggerExtracted, TriggerMatched, TriggerDetected, TriggerResolved} {
		if err := sm.Fire(ctx, trigger); err != nil {
			t.Fatalf("Fire(%s) error = %v", trigger, err)
		}
	}
	if sm.State() != StateReviewing {
		t.Fatalf("State() = %v, want %v", sm.State(), StateReviewing)
	}

	if err := sm.Fire(ctx, TriggerReviewed); err != nil {
		t.Fatalf("Fire(REVIEWED) error = %v", err)
	}
	if sm.State() != StateDone {
		t.Errorf("State() = %v, want %v", sm.State(), StateDone)
	}
}

func TestStateMachine_ErroredPath(t *testing.T) {
	sm := buildRunMachine()
	ctx := context.Background()

	if err := sm.Fire(ctx, TriggerExtractionFailed); err != nil {
		t.Fatalf("Fire() error = %v", err)
	}
	if sm.State() != StateErrored {
		t.Errorf("State() = %v, want %v", sm.State(), StateErrored)
	}

	err := sm.Fire(ctx, TriggerExtracted)
	if !errors.Is(err, ErrTerminalState) {
		t.Errorf("Fire() after terminal error = %v, want ErrTerminalState", err)
	}
}

func TestStateMachine_InvalidTransition(t *testing.T) {
	sm := buildRunMachine()

	err := sm.Fire(context.Background(), TriggerDetected)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Fire() error = %v, want ErrInvalidTransition", err)
	}
	if sm.State() != StateExtracting {
		t.Errorf("State() changed to %v after a rejected trigger", sm.State())
	}
}

func TestStateMachine_GuardFailed(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateResolving).
		PermitIf(TriggerResolved, StateReviewing, func(context.Context) bool { return false })
	sm := builder.Build(StateResolving)

	err := sm.Fire(context.Background(), TriggerResolved)
	if !errors.Is(err, ErrGuardFailed) {
		t.Errorf("Fire() error = %v, want ErrGuardFailed", err)
	}
}

func TestStateMachine_CanFireAndPermittedTriggers(t *testing.T) {
	sm := buildRunMachine()

	if !sm.CanFire(TriggerExtracted) {
		t.Error("CanFire(EXTRACTED) = false, want true")
	}
	if sm.CanFire(TriggerReviewed) {
		t.Error("CanFire(REVIEWED) = true, want false")
	}

	want := []Trigger{TriggerExtracted, TriggerExtractionFailed}
	if got := sm.PermittedTriggers(); !reflect.DeepEqual(got, want) {
		t.Errorf("PermittedTriggers() = %v, want %v", got, want)
	}
}

func TestStateMachine_HistoryIsACopy(t *testing.T) {
	sm := buildRunMachine()

	history := sm.History()
	history[0] = StateErrored

	if sm.History()[0] != StateExtracting {
		t.Error("History() exposed internal state")
	}
}

func TestBuilder_MachinesAreIndependent(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StateExtracting).Permit(TriggerExtracted, StateMatching)

	first := builder.Build(StateExtracting)
	second := builder.Build(StateExtracting)

	if err := first.Fire(context.Background(), TriggerExtracted); err != nil {
		t.Fatalf("Fire() error = %v", err)
	}
	if second.State() != StateExtracting {
		t.Errorf("second machine State() = %v, want %v", second.State(), StateExtracting)
	}
}
