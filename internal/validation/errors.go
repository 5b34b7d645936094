package validation

import (
	"bytes"
	"encoding/json"
)

// Code classifies why a field was rejected.
type Code string

const (
	FieldRequired   Code = "FieldRequired"
	FieldTooLong    Code = "FieldTooLong"
	InvalidFormat   Code = "InvalidFormat"
	AgeBelowMinimum Code = "AgeBelowMinimum"
	InvalidEnum     Code = "InvalidEnum"
	AlreadyExists   Code = "AlreadyExists"
	EmptyInput      Code = "EmptyInput"
	UnknownList     Code = "UnknownList"
)

// FieldError is a single rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

// ErrorSet accumulates at most one FieldError per field, in the order the
// fields first failed. The zero value is ready to use.
type ErrorSet struct {
	order []string
	byKey map[string]FieldError
}

// NewErrorSet returns an empty ErrorSet.
func NewErrorSet() *ErrorSet { return &ErrorSet{} }

// Has reports whether field already carries an error.
func (s *ErrorSet) Has(field string) bool {
	if s == nil {
		return false
	}
	_, ok := s.byKey[field]
	return ok
}

// Add records an error for field unless one is already present. The first
// error recorded for a field wins. It reports whether the error was stored.
func (s *ErrorSet) Add(field string, code Code, message string) bool {
	if field == "" {
		panic("validation: empty field name")
	}
	if s.Has(field) {
		return false
	}
	if s.byKey == nil {
		s.byKey = make(map[string]FieldError)
	}
	s.byKey[field] = FieldError{Field: field, Code: code, Message: message}
	s.order = append(s.order, field)
	return true
}

// Get returns the error recorded for field.
func (s *ErrorSet) Get(field string) (FieldError, bool) {
	if s == nil {
		return FieldError{}, false
	}
	fe, ok := s.byKey[field]
	return fe, ok
}

// Len returns the number of rejected fields.
func (s *ErrorSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.order)
}

// Empty reports whether no field was rejected.
func (s *ErrorSet) Empty() bool { return s.Len() == 0 }

// Errors returns the recorded errors in insertion order.
func (s *ErrorSet) Errors() []FieldError {
	if s == nil {
		return nil
	}
	out := make([]FieldError, 0, len(s.order))
	for _, f := range s.order {
		out = append(out, s.byKey[f])
	}
	return out
}

// MarshalJSON encodes the set as a {"field": "message"} object, keeping
// insertion order so responses are deterministic.
func (s *ErrorSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, fe := range s.Errors() {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(fe.Field)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(fe.Message)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Error implements error so a non-empty set can travel as one.
func (s *ErrorSet) Error() string {
	b, _ := s.MarshalJSON()
	return "validation failed: " + string(b)
}
