package core

// Action is the verdict returned for a single frame. The numeric values
// follow the kernel XDP action codes.
type Action uint8

const (
	ActionAbort Action = iota // malformed or truncated frame, discard
	ActionDrop                // defined for completeness, never produced by the engine
	ActionPass                // hand the frame on unmodified
	ActionTX                  // retransmit the mutated frame out the ingress interface
)

var actionNames = [...]string{
	ActionAbort: "abort",
	ActionDrop:  "drop",
	ActionPass:  "pass",
	ActionTX:    "tx",
}

func (a Action) String() string {
	if int(a) < len(actionNames) {
		return actionNames[a]
	}
	return "unknown"
}
