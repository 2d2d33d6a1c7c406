package domain

type EffectStatus string

const (
	EffectApplied       EffectStatus = "applied"
	EffectFailedIgnored EffectStatus = "failed_ignored"
)

// Effect is the outcome of a best-effort secondary write that runs after the
// primary operation has committed. A failed effect never fails its caller.
type Effect struct {
	Name   string       `json:"name"`
	Status EffectStatus `json:"status"`
	Error  string       `json:"error,omitempty"`
}

func (e Effect) Failed() bool {
	return e.Status == EffectFailedIgnored
}
