package flow

// ResultKind tells the dispatcher what to do with an engine result.
type ResultKind int

const (
	// ResultIdle: no flow is active; the dispatcher routes menu input.
	ResultIdle ResultKind = iota
	// ResultPrompt: send Prompt (with Hint prefixed if set) and Keyboard.
	ResultPrompt
	// ResultMenu: the session was cleared; show the main menu.
	ResultMenu
	// ResultAction: all values collected; invoke the named terminal action
	// with the Fields/Scratch snapshot. The session is left untouched so a
	// failed action can be retried from the same step.
	ResultAction
)

// Result is the engine's answer to one inbound input.
type Result struct {
	Kind     ResultKind
	Flow     string
	Step     string
	Prompt   string
	Hint     string
	Keyboard [][]string

	// Terminal action payload.
	Action  string
	Fields  map[string]string
	Scratch map[string]string
	// AllEmpty is set on ResultAction when every collected field is empty,
	// so the caller can render the distinct "nothing provided" confirmation.
	AllEmpty bool
}
