package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Consent values accepted on inbound requests.
const (
	ConsentYes = "yes"
	ConsentNo  = "no"
)

// ID is an opaque CRM identifier. The CRM may emit identifiers as JSON
// numbers or strings; both decode into ID, and canonical integers are
// written back as numbers so list ids round-trip unchanged.
type ID string

// UnmarshalJSON accepts a JSON string, number or null.
func (id *ID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON writes canonical integers as JSON numbers, anything else as a string.
func (id ID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(string(id)), nil
	}
	return json.Marshal(string(id))
}

func (id ID) String() string { return string(id) }

// SubscriberInput is the transient, caller-submitted data for a new subscriber.
type SubscriberInput struct {
	EmailAddress     string `json:"emailAddress"`
	FirstName        string `json:"firstName,omitempty"`
	LastName         string `json:"lastName,omitempty"`
	DateOfBirth      string `json:"dateOfBirth"`
	MarketingConsent string `json:"marketingConsent"`
}

// ConsentGiven coerces the submitted consent string to the CRM's boolean:
// only "yes" counts as consent.
func (in SubscriberInput) ConsentGiven() bool {
	return in.MarketingConsent == ConsentYes
}

// NewSubscriber is the body of the CRM create call.
type NewSubscriber struct {
	EmailAddress     string `json:"emailAddress"`
	FirstName        string `json:"firstName"`
	LastName         string `json:"lastName"`
	MarketingConsent bool   `json:"marketingConsent"`
	DateOfBirth      string `json:"dateOfBirth"`
}

// ToNewSubscriber builds the create payload from validated input.
func (in SubscriberInput) ToNewSubscriber() NewSubscriber {
	return NewSubscriber{
		EmailAddress:     in.EmailAddress,
		FirstName:        in.FirstName,
		LastName:         in.LastName,
		MarketingConsent: in.ConsentGiven(),
		DateOfBirth:      in.DateOfBirth,
	}
}

// Subscriber is a CRM-owned subscriber record. Fields the CRM returns that
// this service does not model are kept in Extra.
type Subscriber struct {
	ID               ID             `json:"id"`
	EmailAddress     string         `json:"emailAddress"`
	FirstName        string         `json:"firstName,omitempty"`
	LastName         string         `json:"lastName,omitempty"`
	DateOfBirth      string         `json:"dateOfBirth,omitempty"`
	MarketingConsent bool           `json:"marketingConsent"`
	Extra            map[string]any `json:"-"`
}

var subscriberKnownFields = []string{"id", "emailAddress", "firstName", "lastName", "dateOfBirth", "marketingConsent"}

// UnmarshalJSON decodes the modelled fields and keeps the rest in Extra.
func (s *Subscriber) UnmarshalJSON(b []byte) error {
	type plain Subscriber
	var aux struct {
		*plain
		MarketingConsent consentFlag `json:"marketingConsent"`
	}
	var p plain
	aux.plain = &p
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	p.MarketingConsent = bool(aux.MarketingConsent)

	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for _, k := range subscriberKnownFields {
		delete(raw, k)
	}
	if len(raw) > 0 {
		p.Extra = raw
	}
	*s = Subscriber(p)
	return nil
}

// consentFlag reads the CRM's consent field, which arrives as a JSON bool,
// 0/1, or a string form of either.
type consentFlag bool

func (f *consentFlag) UnmarshalJSON(b []byte) error {
	switch v := strings.ToLower(strings.Trim(string(b), `"`)); v {
	case "true", "1", ConsentYes:
		*f = true
	case "false", "0", ConsentNo, "", "null":
		*f = false
	default:
		return fmt.Errorf("marketingConsent: unsupported value %s", b)
	}
	return nil
}

// MarketingList is an entry of the CRM's marketing-list catalog.
type MarketingList struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// ListNames returns the catalog names in catalog order.
func ListNames(lists []MarketingList) []string {
	names := make([]string, 0, len(lists))
	for _, l := range lists {
		names = append(names, l.Name)
	}
	return names
}

// Emails returns the email address of every subscriber, in order.
func Emails(subs []Subscriber) []string {
	out := make([]string, 0, len(subs))
	for _, s := range subs {
		out = append(out, s.EmailAddress)
	}
	return out
}
