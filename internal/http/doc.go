// Package http provides HTTP handlers and middleware for the coordinator API.
//
// The router exposes the following endpoints:
//   - POST /sessions: issues a session token. Body: {"email","password"}. The
//     token is returned in the body and surfaced via the `X-Session-Token`
//     header and a `session_token` cookie.
//   - DELETE /sessions/current: revokes the current session and clears the cookie.
//   - GET/POST /events, GET/PUT/DELETE /events/{id}: event and sub-shift
//     management exchanging the `eventDTO` payload defined in event_handler.go.
//     Mutations require organizer privileges; destructive edits over live
//     assignments must be re-confirmed with `?force=true`.
//   - GET/POST /assignments, GET/DELETE /assignments/{id}: shift sign-up and
//     withdrawal. POST /assignments/{id}/swap opens a swap request for the
//     caller's assignment.
//   - GET /swaps: open swap requests for the organizer review queue.
//     POST /swaps/{id}/accept and /swaps/{id}/decline resolve a request;
//     DELETE /swaps/{id} removes the underlying assignment outright.
//   - GET/PUT /preferences, POST/DELETE /push-subscriptions: per-user reminder
//     settings and Web Push registrations.
//   - GET /calendar/feeds/{token}: session-free iCalendar feed of the token
//     owner's confirmed shifts. POST /calendar/token rotates the feed token.
//   - GET/POST /volunteers, GET /volunteers/{id}: directory and detail views.
//     POST /volunteers/{id}/promote, /demote, /transfer-super change roles.
//   - POST /internal/reminders/scan: runs one reminder cycle. Session-free,
//     guarded by the `X-Trigger-Secret` header.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
