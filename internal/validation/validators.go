package validation

import (
	"time"

	"github.com/ignite/subscriber-gateway/internal/domain"
)

// ValidateNewSubscriber runs the registration rule set.
func ValidateNewSubscriber(in domain.SubscriberInput, now time.Time) *ErrorSet {
	errs := NewErrorSet()

	RequireValue(errs, FieldEmailAddress, in.EmailAddress)
	ValidEmailFormat(errs, FieldEmailAddress, in.EmailAddress)

	RequireValue(errs, FieldDateOfBirth, in.DateOfBirth)
	ValidDate(errs, FieldDateOfBirth, in.DateOfBirth, now)

	RequireValue(errs, FieldMarketingConsent, in.MarketingConsent)
	ValidConsent(errs, FieldMarketingConsent, in.MarketingConsent)

	if in.FirstName != "" {
		MaxLength(errs, FieldFirstName, in.FirstName, DefaultMaxLength)
	}
	if in.LastName != "" {
		MaxLength(errs, FieldLastName, in.LastName, DefaultMaxLength)
	}

	return errs
}

// ValidateEmail checks a standalone email address (required + format).
func ValidateEmail(email string) *ErrorSet {
	errs := NewErrorSet()
	RequireValue(errs, FieldEmailAddress, email)
	ValidEmailFormat(errs, FieldEmailAddress, email)
	return errs
}

// ValidateEnquiry checks the email and the enquiry text independently.
func ValidateEnquiry(email, enquiry string) *ErrorSet {
	errs := ValidateEmail(email)
	RequireValue(errs, FieldEnquiry, enquiry)
	MaxLength(errs, FieldEnquiry, enquiry, EnquiryMaxLength)
	return errs
}
