package google

import (
	calendar "google.golang.org/api/calendar/v3"
)

// DefaultOAuthScopes are the scopes requested by the browser sign-in flow:
// OpenID identity plus read-only calendar access.
var DefaultOAuthScopes = []string{
	"openid",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
	calendar.CalendarReadonlyScope,
}
