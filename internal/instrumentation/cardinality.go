package instrumentation

import "strings"

// Label values. Every label recorded by Metrics comes from a fixed set so
// that series counts stay bounded no matter how many users sign in.
const (
	StatusSuccess = "success"
	StatusError   = "error"

	SignInResultSuccess = "success"
	SignInResultFailure = "failure"
	SignInResultExpired = "expired"

	CacheHit  = "hit"
	CacheMiss = "miss"

	ServiceCalendar = "calendar"
	ServiceOAuth    = "oauth2"
)

// Operation types for Google API metrics and spans.
const (
	OperationListEvents    = "list_events"
	OperationListCalendars = "list_calendars"
	OperationTokenExchange = "token_exchange"
)

// unknownDomain stands in for anything that is not a single user@domain.
const unknownDomain = "unknown"

// ExtractUserDomain reduces an email address to its lower-cased domain, the
// only user detail allowed on metric labels and anonymized audit records.
//
//	ExtractUserDomain("Jane@Example.com") // "example.com"
//	ExtractUserDomain("invalid")          // "unknown"
func ExtractUserDomain(email string) string {
	_, domain, ok := strings.Cut(strings.TrimSpace(email), "@")
	if !ok || domain == "" || strings.Contains(domain, "@") {
		return unknownDomain
	}
	return strings.ToLower(domain)
}
