package propeller

import (
	"encoding/json"

	"github.com/ignite/subscriber-gateway/internal/domain"
)

// Category tags a failed call in the diagnostic log. Callers never see it:
// every failure collapses into the empty Result.
type Category string

const (
	CategoryClient    Category = "ClientError"
	CategoryServer    Category = "ServerError"
	CategoryTransport Category = "TransportError"
	CategoryDecode    Category = "DecodeError"
)

// Endpoint paths, relative to the configured base URL.
const (
	pathSubscribers = "api/subscribers"
	pathSubscriber  = "api/subscriber"
	pathLists       = "api/lists"
)

// Result is the outcome of one Call: either the decoded JSON object returned
// with HTTP 200, or the empty sentinel.
type Result struct {
	body map[string]any
}

// Empty is the sentinel for "the call could not be completed".
var Empty = Result{}

// IsEmpty reports whether r is the empty sentinel.
func (r Result) IsEmpty() bool { return r.body == nil }

// Decode re-encodes the body (or, when key is non-empty and present, the
// value under key) into v.
func (r Result) Decode(key string, v any) error {
	var src any = r.body
	if key != "" {
		if inner, ok := r.body[key]; ok {
			src = inner
		}
	}
	b, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// SubscribersResponse is the GET api/subscribers envelope. Records stay raw
// until ListSubscribers decodes them one by one.
type SubscribersResponse struct {
	Subscribers []json.RawMessage `json:"subscribers"`
}

// ListsResponse is the GET api/lists envelope.
type ListsResponse struct {
	Lists []domain.MarketingList `json:"lists"`
}

// UpdateListsRequest is the PUT api/subscriber body.
type UpdateListsRequest struct {
	EmailAddress string      `json:"emailAddress"`
	Lists        []domain.ID `json:"lists"`
}

// EnquiryRequest is the POST api/subscriber/{id}/enquiry body.
type EnquiryRequest struct {
	Message string `json:"message"`
}
