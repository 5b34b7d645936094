package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ignite/subscriber-gateway/internal/domain"
)

// Inbound field names.
const (
	FieldEmailAddress     = "emailAddress"
	FieldFirstName        = "firstName"
	FieldLastName         = "lastName"
	FieldDateOfBirth      = "dateOfBirth"
	FieldMarketingConsent = "marketingConsent"
	FieldLists            = "lists"
	FieldEnquiry          = "enquiry"
)

const (
	// DefaultMaxLength applies to free-text subscriber fields.
	DefaultMaxLength = 255
	// EnquiryMaxLength applies to enquiry text.
	EnquiryMaxLength = 1000
	// MinimumAge is the youngest age, in whole years, accepted at registration.
	MinimumAge = 18
	// DateLayout is the only accepted date-of-birth format.
	DateLayout = "2006-01-02"
)

const (
	msgRequired    = "The value is required."
	msgTooLong     = "Limit exceeded. The max characters allowed is %d."
	msgEmail       = "The value is not a valid email."
	msgDate        = "The value is not a valid date. Please use the format y-m-d ex:1990-01-15"
	msgAge         = "The age is not above 18"
	msgConsent     = "The consent is not valid. Please submit either yes or no"
	msgDuplicate   = "The email already exists."
	msgListsEmpty  = "The lists value is empty."
	msgUnknownList = "The submitted list %s does not exist. Please submit as comma separated strings from the following: %s"
)

// Every check below is a no-op when the field already carries an error, so
// the first (most specific) failure for a field is the one reported.

// RequireValue rejects an empty value.
func RequireValue(errs *ErrorSet, field, value string) {
	if errs.Has(field) {
		return
	}
	if value == "" {
		errs.Add(field, FieldRequired, msgRequired)
	}
}

// MaxLength rejects values longer than limit characters.
func MaxLength(errs *ErrorSet, field, value string, limit int) {
	if errs.Has(field) {
		return
	}
	if utf8.RuneCountInString(value) > limit {
		errs.Add(field, FieldTooLong, fmt.Sprintf(msgTooLong, limit))
	}
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)+$`)

// IsEmail reports whether value is a syntactically valid address.
func IsEmail(value string) bool {
	if len(value) < 5 || len(value) > 254 {
		return false
	}
	if !emailPattern.MatchString(value) {
		return false
	}
	local := value[:strings.LastIndexByte(value, '@')]
	if len(local) > 64 || strings.HasPrefix(local, ".") || strings.HasSuffix(local, ".") || strings.Contains(local, "..") {
		return false
	}
	return true
}

// ValidEmailFormat rejects values that are not email addresses.
func ValidEmailFormat(errs *ErrorSet, field, value string) {
	if errs.Has(field) {
		return
	}
	if !IsEmail(value) {
		errs.Add(field, InvalidFormat, msgEmail)
	}
}

// ValidDate rejects values that are not YYYY-MM-DD calendar dates, then
// rejects dates of birth younger than MinimumAge. Age is counted in calendar
// days on the date now falls on in its own location, so the eighteenth
// birthday is accepted all day wherever the clock is set.
func ValidDate(errs *ErrorSet, field, value string, now time.Time) {
	if errs.Has(field) {
		return
	}
	dob, err := time.Parse(DateLayout, value)
	if err != nil {
		errs.Add(field, InvalidFormat, msgDate)
		return
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if dob.AddDate(MinimumAge, 0, 0).After(today) {
		errs.Add(field, AgeBelowMinimum, msgAge)
	}
}

// ValidConsent accepts exactly "yes" or "no".
func ValidConsent(errs *ErrorSet, field, value string) {
	if errs.Has(field) {
		return
	}
	if value != domain.ConsentYes && value != domain.ConsentNo {
		errs.Add(field, InvalidEnum, msgConsent)
	}
}

// IsDuplicateEmail rejects email when it is already among knownEmails.
func IsDuplicateEmail(errs *ErrorSet, email string, knownEmails []string) {
	if errs.Has(FieldEmailAddress) {
		return
	}
	for _, known := range knownEmails {
		if known == email {
			errs.Add(FieldEmailAddress, AlreadyExists, msgDuplicate)
			return
		}
	}
}

// ListsExist rejects an empty submission and any name absent from the
// catalog. Every submitted name is checked; the unknown ones are reported
// together since the field holds a single message.
func ListsExist(errs *ErrorSet, submitted []string, catalog []domain.MarketingList) {
	if errs.Has(FieldLists) {
		return
	}
	if len(submitted) == 0 {
		errs.Add(FieldLists, EmptyInput, msgListsEmpty)
		return
	}

	names := domain.ListNames(catalog)
	known := make(map[string]struct{}, len(names))
	for _, n := range names {
		known[n] = struct{}{}
	}

	var unknown []string
	for _, name := range submitted {
		if _, ok := known[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		errs.Add(FieldLists, UnknownList,
			fmt.Sprintf(msgUnknownList, strings.Join(unknown, ", "), strings.Join(names, ", ")))
	}
}

// ParseListNames splits a comma-joined list field into trimmed, non-empty names.
func ParseListNames(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if name := strings.TrimSpace(part); name != "" {
			out = append(out, name)
		}
	}
	return out
}
