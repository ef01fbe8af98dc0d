package dispatch

// Command is one of the fixed set of requests the worker understands.
type Command int

const (
	CommandUnknown Command = iota
	CommandGetTutorials
	CommandGetTutorial
	CommandRunCode
	CommandGetHint
	CommandGetSolution
	CommandModelKey
)

var commandNames = map[Command]string{
	CommandGetTutorials: "get_tutorials",
	CommandGetTutorial:  "get_tutorial",
	CommandRunCode:      "run_code",
	CommandGetHint:      "get_hint",
	CommandGetSolution:  "get_solution",
	CommandModelKey:     "model_key",
}

// ParseCommand resolves a wire name. Unknown names return CommandUnknown.
func ParseCommand(name string) Command {
	for c, n := range commandNames {
		if n == name {
			return c
		}
	}
	return CommandUnknown
}

func (c Command) String() string {
	if n, ok := commandNames[c]; ok {
		return n
	}
	return "unknown"
}
