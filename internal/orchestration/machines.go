package orchestration

import (
	"github.com/scottyhq/scotty/internal/apperr"
	"github.com/scottyhq/scotty/internal/blueprint"
	"github.com/scottyhq/scotty/internal/fsm"
	"github.com/scottyhq/scotty/internal/models"
)

// Machine is a constructed, ready-to-run fsm.StateMachine specialized to
// this package's State/Context types.
type Machine = fsm.StateMachine[State, *Context]

// newLinear builds a StateMachine over the given states in order,
// wiring each handler's "next" to the following state and the last to
// StateDone (spec §4.4: "a wiring of the above into a linear state
// machine with a fixed terminal Done state").
func newLinear(steps []stateStep) *Machine {
	m := fsm.New[State, *Context](steps[0].state, StateDone)
	for i, s := range steps {
		next := StateDone
		if i+1 < len(steps) {
			next = steps[i+1].state
		}
		m.AddHandler(s.state, s.build(next))
	}
	return m
}

type stateStep struct {
	state State
	build func(next State) fsm.Handler[State, *Context]
}

func step(state State, build func(next State) fsm.Handler[State, *Context]) stateStep {
	return stateStep{state: state, build: build}
}

// BuildCreateMachine wires MarkCreating → CreateDirectory → SaveFiles →
// SaveSettings → CreateLoadBalancerConfig → RunDockerLogin → ComposeUp →
// PostCreate → UpdateAppData → SetFinished → Done (spec §4.4 "create",
// §3 "Creating while an orchestration holds the app").
func BuildCreateMachine() *Machine {
	return newLinear([]stateStep{
		step(StateMarkCreating, func(next State) fsm.Handler[State, *Context] {
			return SetHoldStatus(next, models.StatusCreating)
		}),
		step(StateCreateDirectory, CreateDirectory),
		step(StateSaveFiles, SaveFiles),
		step(StateSaveSettings, SaveSettings),
		step(StateLoadBalancerConfig, CreateLoadBalancerConfig),
		step(StateDockerLogin, RunDockerLogin),
		step(StateComposeUp, func(next State) fsm.Handler[State, *Context] {
			return RunDockerCompose(next, []string{"up", "-d"})
		}),
		step(StatePostCreate, func(next State) fsm.Handler[State, *Context] {
			return RunPostActions(next, blueprint.ActionPostCreate)
		}),
		step(StateUpdateAppData, UpdateAppData),
		step(StateSetFinished, SetFinished),
	})
}

// BuildRebuildMachine wires SaveSettings → CreateLoadBalancerConfig →
// RunDockerLogin → ComposeUp (rebuild builds/recreates) → PostRebuild →
// UpdateAppData → SetFinished → Done (spec §4.4 "rebuild").
func BuildRebuildMachine() *Machine {
	return newLinear([]stateStep{
		step(StateSaveSettings, SaveSettings),
		step(StateLoadBalancerConfig, CreateLoadBalancerConfig),
		step(StateDockerLogin, RunDockerLogin),
		step(StateComposeUp, func(next State) fsm.Handler[State, *Context] {
			return RunDockerCompose(next, []string{"up", "-d", "--build", "--force-recreate"})
		}),
		step(StatePostRebuild, func(next State) fsm.Handler[State, *Context] {
			return RunPostActions(next, blueprint.ActionPostRebuild)
		}),
		step(StateUpdateAppData, UpdateAppData),
		step(StateSetFinished, SetFinished),
	})
}

// BuildRunMachine wires ComposeUp → UpdateAppData → SetFinished → Done
// (spec §4.4 "run": start an existing app without re-provisioning it).
func BuildRunMachine() *Machine {
	return newLinear([]stateStep{
		step(StateComposeUp, func(next State) fsm.Handler[State, *Context] {
			return RunDockerCompose(next, []string{"up", "-d"})
		}),
		step(StateUpdateAppData, UpdateAppData),
		step(StateSetFinished, SetFinished),
	})
}

// BuildStopMachine wires ComposeStop → UpdateAppData → SetFinished →
// Done (spec §4.4 "stop").
func BuildStopMachine() *Machine {
	return newLinear([]stateStep{
		step(StateComposeStop, func(next State) fsm.Handler[State, *Context] {
			return RunDockerCompose(next, []string{"stop"})
		}),
		step(StateUpdateAppData, UpdateAppData),
		step(StateSetFinished, SetFinished),
	})
}

// PurgeMethod selects between compose down and compose rm for the purge
// operation (spec §4.4: "Purge has two methods — Down and Rm — chosen by
// caller").
type PurgeMethod string

const (
	PurgeDown PurgeMethod = "Down"
	PurgeRm   PurgeMethod = "Rm"
)

// BuildPurgeMachine wires ComposeDown/ComposeRm → UpdateAppData →
// SetFinished → Done, using the argv the spec pins per method: `down -v
// --rmi all` or `rm -s -f` (spec §4.4).
func BuildPurgeMachine(method PurgeMethod) *Machine {
	var args []string
	var state State
	switch method {
	case PurgeRm:
		args, state = []string{"rm", "-s", "-f"}, StateComposeRm
	default:
		args, state = []string{"down", "-v", "--rmi", "all"}, StateComposeDown
	}
	return newLinear([]stateStep{
		step(state, func(next State) fsm.Handler[State, *Context] {
			return RunDockerCompose(next, args)
		}),
		step(StateUpdateAppData, UpdateAppData),
		step(StateSetFinished, SetFinished),
	})
}

// BuildDestroyMachine wires MarkDestroying → ComposeDown →
// RemoveDirectory → RemoveFromRegistry → SetFinished → Done (spec §4.4
// "destroy", §3 "Destroying while an orchestration holds the app").
// Destroy is refused for Unsupported (legacy) apps by the caller before
// the machine is even built — see RequireManaged.
func BuildDestroyMachine() *Machine {
	return newLinear([]stateStep{
		step(StateMarkDestroying, func(next State) fsm.Handler[State, *Context] {
			return SetHoldStatus(next, models.StatusDestroying)
		}),
		step(StateComposeDown, func(next State) fsm.Handler[State, *Context] {
			return RunDockerCompose(next, []string{"down", "-v", "--rmi", "all"})
		}),
		step(StateRemoveDirectory, RemoveDirectory),
		step(StateRemoveFromRegistry, RemoveFromRegistry),
		step(StateSetFinished, SetFinished),
	})
}

// BuildAdoptMachine wires AdoptReadSettings → UpdateAppData →
// SetFinished → Done (spec §4.4 "adopt": take over an existing on-disk
// compose project).
func BuildAdoptMachine() *Machine {
	return newLinear([]stateStep{
		step(StateAdoptReadSettings, AdoptReadSettings),
		step(StateUpdateAppData, UpdateAppData),
		step(StateSetFinished, SetFinished),
	})
}

// BuildCustomActionMachine wires CustomAction → UpdateAppData →
// SetFinished → Done (spec §4.4 "run-custom-action").
func BuildCustomActionMachine(actionName string) *Machine {
	return newLinear([]stateStep{
		step(StateCustomAction, func(next State) fsm.Handler[State, *Context] {
			return RunPostActions(next, blueprint.CustomAction(actionName))
		}),
		step(StateUpdateAppData, UpdateAppData),
		step(StateSetFinished, SetFinished),
	})
}

// RequireManaged returns apperr.ErrCantDestroyUnmanagedApp if app has no
// persisted settings, enforcing spec §4.4's "Destroy is refused for
// Unsupported apps" and §8 scenario S4.
func RequireManaged(ctx *Context) error {
	if ctx.AppData.IsLegacy() {
		return apperr.ErrCantDestroyUnmanagedApp
	}
	return nil
}
