package domain

// FileAttachment is a binary payload relayed to Discord.
type FileAttachment struct {
	Name string
	Data []byte
}

// PushOutcome is the terminal state of one /stl push attempt.
type PushOutcome int

const (
	PushSent PushOutcome = iota
	PushFailed
	PushTimedOut
	PushErrored
	PushRejected
)

func (o PushOutcome) String() string {
	switch o {
	case PushSent:
		return "sent"
	case PushFailed:
		return "failed"
	case PushTimedOut:
		return "timed_out"
	case PushErrored:
		return "errored"
	case PushRejected:
		return "rejected"
	default:
		return "unknown"
	}
}
