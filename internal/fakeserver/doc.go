// Package fakeserver is an in-process implementation of the session API and
// its push channel, used by tests, the dev server and local agent runs.
//
// It serves /auth, /logout, /auth/signout, /validate-session,
// /admin/force-logout and the /ws push endpoint. Session ids are HS256 JWTs
// tracked in a Redis registry (miniredis unless a client is supplied), and
// an account may hold one live session at a time: a second login gets 403.
//
// # What this package must NOT do
//
//   - Import goSession or the client packages other than apiclient's wire types.
//   - Be used as a production server. It keeps users in memory and trusts
//     every origin.
package fakeserver
