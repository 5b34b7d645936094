package subscriber

import (
	"github.com/ignite/subscriber-gateway/internal/domain"
	"github.com/ignite/subscriber-gateway/internal/validation"
)

// Kind classifies an Outcome.
type Kind string

const (
	KindSuccess          Kind = "success"
	KindValidationFailed Kind = "validation_failed"
	KindNotFound         Kind = "not_found"
	KindConsentDenied    Kind = "consent_denied"
	KindNoLists          Kind = "no_lists"
	KindActionFailed     Kind = "action_failed"
)

// User-facing messages.
const (
	MsgCreated         = "Subscriber created Successfully"
	MsgCreateFailed    = "Could not create the subscriber"
	MsgNoLists         = "No Marketing Lists found from Endpoint"
	MsgNotFound        = "Subscriber Not found"
	MsgConsentDenied   = "Subscriber has not provided consent to be added to the list"
	MsgListsUpdated    = "Subscriber Lists updated Successfully"
	MsgUpdateFailed    = "Could not update the subscriber"
	MsgEnquiryCreated  = "Enquiry for Subscriber created Successfully"
	MsgEnquiryFailed   = "Could not submit the enquiry"
	MsgPingOK          = "Welcome"
	MsgPingFailed      = "Could not connect"
	MsgValidationError = "Validation failed"
)

// Outcome is the result of one workflow operation.
type Outcome struct {
	Kind    Kind
	Message string

	// Errors is set only for KindValidationFailed.
	Errors *validation.ErrorSet

	// Subscriber is the record created by Create.
	Subscriber *domain.Subscriber

	// Err carries one of the package sentinels for errors.Is checks.
	Err error
}

// OK reports whether the operation succeeded.
func (o *Outcome) OK() bool { return o != nil && o.Kind == KindSuccess }

func succeeded(msg string) *Outcome {
	return &Outcome{Kind: KindSuccess, Message: msg}
}

func invalid(errs *validation.ErrorSet) *Outcome {
	return &Outcome{Kind: KindValidationFailed, Message: MsgValidationError, Errors: errs}
}

func failed(msg string, err error) *Outcome {
	return &Outcome{Kind: KindActionFailed, Message: msg, Err: err}
}
