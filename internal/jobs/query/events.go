package query

import (
	"fmt"

	"github.com/tyB-or/weibu-ipSearch/internal/domain"
)

type EventKind int

const (
	// EventRaw carries every decoded response body, whatever its code.
	EventRaw EventKind = iota
	EventResult
	EventError
	EventProgress
	EventLimit
	EventFatal
	EventDone
)

func (k EventKind) String() string {
	switch k {
	case EventRaw:
		return "raw"
	case EventResult:
		return "result"
	case EventError:
		return "error"
	case EventProgress:
		return "progress"
	case EventLimit:
		return "limit"
	case EventFatal:
		return "fatal"
	case EventDone:
		return "done"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

type DoneReason string

const (
	DoneCompleted DoneReason = "completed"
	DoneStopped   DoneReason = "stopped"
	DoneLimit     DoneReason = "limit"
	DoneFatal     DoneReason = "fatal"
)

// Event is a one-way notice from the worker to whoever owns the results.
type Event struct {
	Kind     EventKind
	IP       string
	Response *domain.LookupResponse
	Message  string
	Err      error

	Processed int
	Total     int

	Reason DoneReason
}
