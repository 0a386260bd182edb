package signal

import "fmt"

// InvalidSignalError reports a raw signal that cannot be normalized:
// an unrecognized type, or a missing magnitude where the type requires one.
type InvalidSignalError struct {
	SignalID string
	Type     Type
	Reason   string
}

func (e *InvalidSignalError) Error() string {
	if e.SignalID == "" {
		return fmt.Sprintf("invalid signal (type %q): %s", e.Type, e.Reason)
	}
	return fmt.Sprintf("invalid signal %s (type %q): %s", e.SignalID, e.Type, e.Reason)
}
