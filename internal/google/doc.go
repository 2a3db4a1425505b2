// Package google runs the Google OAuth2 authorization-code flow used for
// browser sign-in.
//
// A successful exchange yields a Grant holding the identity credential
// (id_token) and a calendar-scoped bearer token. Tokens are held in memory by
// the session package and never persisted.
package google
