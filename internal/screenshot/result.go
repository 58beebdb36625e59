package screenshot

// Status is the lifecycle stage of a resolution.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Terminal failure reasons. These are the only failure texts that reach a
// consumer; individual provider errors are never exposed.
const (
	ReasonAllFailed   = "All screenshot services failed"
	ReasonNoProviders = "No screenshot providers configured"
)

// Result is the outcome of one resolution attempt.
type Result struct {
	Status   Status `json:"status"`
	Target   string `json:"target,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	Provider string `json:"provider,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Attempts int    `json:"attempts"`
}

// Settled reports whether r is a terminal success or failure.
func (r Result) Settled() bool {
	return r.Status == StatusSuccess || r.Status == StatusFailed
}

// State is the three-field view rendered by consumers.
type State struct {
	Data    *string `json:"data"`
	Loading bool    `json:"loading"`
	Error   *string `json:"error"`
}

// State converts r into the consumer view.
func (r Result) State() State {
	switch r.Status {
	case StatusLoading:
		return State{Loading: true}
	case StatusSuccess:
		data := r.ImageURL
		return State{Data: &data}
	case StatusFailed:
		reason := r.Reason
		return State{Error: &reason}
	default:
		return State{}
	}
}
