// Package session tracks the signed-in user and the tokens that authorize
// calendar fetches.
//
// A Session is created from the identity credential returned by the sign-in
// callback, optionally upgraded with a calendar-scoped bearer token, and torn
// down on logout or whenever the Guard reports that the credential is no
// longer fresh. Every create and destroy bumps a generation number so that
// work started under an older session can detect that it has been superseded.
package session
