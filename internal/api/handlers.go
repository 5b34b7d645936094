package api

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/ignite/subscriber-gateway/internal/domain"
	"github.com/ignite/subscriber-gateway/internal/pkg/httputil"
	"github.com/ignite/subscriber-gateway/internal/service/subscriber"
	"github.com/ignite/subscriber-gateway/internal/validation"
)

// SubscriberService is the workflow surface the handlers drive.
type SubscriberService interface {
	Create(ctx context.Context, in domain.SubscriberInput) *subscriber.Outcome
	UpdateLists(ctx context.Context, email, rawLists string) *subscriber.Outcome
	SubmitEnquiry(ctx context.Context, email, enquiry string) *subscriber.Outcome
	Ping(ctx context.Context) *subscriber.Outcome
}

// Handlers maps inbound requests to subscriber workflow calls. It holds no
// business rules.
type Handlers struct {
	svc SubscriberService
}

// NewHandlers creates the API handlers.
func NewHandlers(svc SubscriberService) *Handlers {
	return &Handlers{svc: svc}
}

// Ping checks that the CRM is reachable.
//
//	GET /
func (h *Handlers) Ping(w http.ResponseWriter, r *http.Request) {
	writeOutcome(w, h.svc.Ping(r.Context()))
}

// CreateSubscriber registers a subscriber.
//
//	POST /subscriber
func (h *Handlers) CreateSubscriber(w http.ResponseWriter, r *http.Request) {
	f, ok := readFields(w, r)
	if !ok {
		return
	}
	writeOutcome(w, h.svc.Create(r.Context(), domain.SubscriberInput{
		EmailAddress:     f[validation.FieldEmailAddress],
		FirstName:        f[validation.FieldFirstName],
		LastName:         f[validation.FieldLastName],
		DateOfBirth:      f[validation.FieldDateOfBirth],
		MarketingConsent: f[validation.FieldMarketingConsent],
	}))
}

// UpdateLists replaces a subscriber's marketing lists. lists is a
// comma-separated set of list names.
//
//	PUT /subscriber/lists
func (h *Handlers) UpdateLists(w http.ResponseWriter, r *http.Request) {
	f, ok := readFields(w, r)
	if !ok {
		return
	}
	writeOutcome(w, h.svc.UpdateLists(r.Context(), f[validation.FieldEmailAddress], f[validation.FieldLists]))
}

// SubmitEnquiry files an enquiry for a subscriber.
//
//	POST /subscriber/enquiry
func (h *Handlers) SubmitEnquiry(w http.ResponseWriter, r *http.Request) {
	f, ok := readFields(w, r)
	if !ok {
		return
	}
	writeOutcome(w, h.svc.SubmitEnquiry(r.Context(), f[validation.FieldEmailAddress], f[validation.FieldEnquiry]))
}

// ---------------------------------------------------------------------------
// Request / response helpers
// ---------------------------------------------------------------------------

// readFields returns the submitted fields from a JSON body, or from form and
// query values for any other content type. On failure it has already
// written a 400.
func readFields(w http.ResponseWriter, r *http.Request) (map[string]string, bool) {
	fields := make(map[string]string)

	if isJSON(r.Header.Get("Content-Type")) {
		var raw map[string]any
		if !httputil.Decode(w, r, &raw) {
			return nil, false
		}
		for k, v := range raw {
			fields[k] = fieldString(v)
		}
		return fields, true
	}

	if err := r.ParseForm(); err != nil {
		httputil.BadRequest(w, "invalid form body")
		return nil, false
	}
	for k := range r.Form {
		fields[k] = r.Form.Get(k)
	}
	return fields, true
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == "application/json"
}

// fieldString flattens a decoded JSON value to the string form the
// validators expect. Arrays become comma-separated lists.
func fieldString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			parts = append(parts, fieldString(e))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(t)
	}
}

// statusFor maps an outcome kind to its HTTP status.
func statusFor(kind subscriber.Kind) int {
	switch kind {
	case subscriber.KindSuccess:
		return http.StatusOK
	case subscriber.KindValidationFailed:
		return http.StatusUnprocessableEntity
	case subscriber.KindNotFound:
		return http.StatusNotFound
	case subscriber.KindConsentDenied:
		return http.StatusForbidden
	default:
		return http.StatusBadGateway
	}
}

// createdSubscriber is the data attached to a successful create.
type createdSubscriber struct {
	ID           domain.ID `json:"id,omitempty"`
	EmailAddress string    `json:"emailAddress"`
}

func writeOutcome(w http.ResponseWriter, out *subscriber.Outcome) {
	if out == nil {
		httputil.InternalError(w, fmt.Errorf("nil outcome"))
		return
	}
	if out.Kind == subscriber.KindValidationFailed {
		httputil.JSON(w, http.StatusUnprocessableEntity, out.Errors)
		return
	}

	var data any
	if out.Subscriber != nil {
		data = createdSubscriber{ID: out.Subscriber.ID, EmailAddress: out.Subscriber.EmailAddress}
	}
	httputil.Message(w, statusFor(out.Kind), string(out.Kind), out.Message, data)
}
