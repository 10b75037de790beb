package domain

import "encoding/json"

const (
	ResponseCodeOK         = 0
	ResponseCodeLimitReach = 2
)

// LookupResponse is the top-level body returned by the reputation endpoint.
// Data stays raw per IP so a missing or broken entry is only detected when
// that IP is merged.
type LookupResponse struct {
	ResponseCode int                        `json:"response_code"`
	VerboseMsg   string                     `json:"verbose_msg"`
	Data         map[string]json.RawMessage `json:"data,omitempty"`

	// Raw is the undecoded body, kept for the JSON pane.
	Raw json.RawMessage `json:"-"`
}

func (r *LookupResponse) HasData() bool {
	return r != nil && len(r.Data) > 0
}

// NewSingleResponse wraps one payload in the shape the API returns.
func NewSingleResponse(ip string, payload json.RawMessage) *LookupResponse {
	return &LookupResponse{
		ResponseCode: ResponseCodeOK,
		VerboseMsg:   "Ok",
		Data:         map[string]json.RawMessage{ip: payload},
	}
}
