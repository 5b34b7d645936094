package logger

import (
	"regexp"
	"strings"
)

var emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// RedactEmail masks an email address for safe logging.
// "john.doe@example.com" → "jo***@example.com"
// Local parts of two characters or fewer are fully masked.
func RedactEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || strings.Count(email, "@") != 1 {
		return "***@***"
	}
	name, domain := email[:at], email[at+1:]
	if len([]rune(name)) > 2 {
		return string([]rune(name)[:2]) + "***@" + domain
	}
	return "***@" + domain
}

// redactPIIValue masks a field whose key names an email outright and any
// email embedded in other values (error text, URLs).
func redactPIIValue(key, val string) string {
	if strings.Contains(strings.ToLower(key), "email") && strings.Contains(val, "@") {
		return RedactEmail(val)
	}
	return emailRegex.ReplaceAllStringFunc(val, RedactEmail)
}
