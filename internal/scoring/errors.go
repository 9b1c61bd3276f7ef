package scoring

import "fmt"

// MalformedResponseError reports a model response that could not be
// parsed into an Evaluation even after salvage. The aggregator drops
// the photo without retrying the call.
type MalformedResponseError struct {
	Raw string
}

func (e *MalformedResponseError) Error() string {
	raw := e.Raw
	if len(raw) > 120 {
		raw = raw[:120] + "..."
	}
	return fmt.Sprintf("malformed model response: %q", raw)
}
