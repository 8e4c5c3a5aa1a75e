package orchestration

// State is the shared, closed enum of steps any operation's linear
// machine can visit (spec §9 "the state type is a closed, small enum per
// operation"). A single shared type is used across operations since each
// operation only ever registers a subset of these states, wired into a
// strictly linear chain by the machine-building functions in machines.go.
type State string

const (
	StateMarkCreating           State = "MarkCreating"
	StateMarkDestroying         State = "MarkDestroying"
	StateCreateDirectory        State = "CreateDirectory"
	StateSaveFiles              State = "SaveFiles"
	StateSaveSettings           State = "SaveSettings"
	StateLoadBalancerConfig     State = "CreateLoadBalancerConfig"
	StateDockerLogin            State = "RunDockerLogin"
	StateComposeUp              State = "ComposeUp"
	StateComposeDown            State = "ComposeDown"
	StateComposeStop            State = "ComposeStop"
	StateComposeRm              State = "ComposeRm"
	StatePostCreate             State = "PostCreate"
	StatePostRebuild            State = "PostRebuild"
	StateCustomAction           State = "CustomAction"
	StateUpdateAppData          State = "UpdateAppData"
	StateRemoveDirectory        State = "RemoveDirectory"
	StateRemoveFromRegistry     State = "RemoveFromRegistry"
	StateAdoptReadSettings      State = "AdoptReadSettings"
	StateSetFinished            State = "SetFinished"

	// StateDone is every machine's terminal state (spec §4.4 "a fixed
	// terminal Done state").
	StateDone State = "Done"
)
