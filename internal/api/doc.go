// Package api implements the HTTP API for the door controller.
//
// This package provides:
//   - Command routes (POST /toggle, /open, /close) that deposit into the
//     controller mailbox and answer 202 Accepted
//   - The current state (GET /status) and two live feeds of it: Server-Sent
//     Events on /watch-status and a WebSocket on /ws
//   - Paginated door history (GET /history) when the database is enabled
//   - Bearer authentication with the shared api key or a short-lived JWT
//     minted by POST /auth/token
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Live feeds
//
// Every feed client holds its own subscription to the controller's state
// publisher. A client sees the current state on connect and then only the
// latest state after any burst, never a backlog. Feeds end when the client
// disconnects or the server closes.
//
// # Security
//
// The api key is compared in constant time. Browsers cannot attach headers to
// a WebSocket upgrade, so they trade their bearer token for a single-use
// ticket at POST /auth/ws-ticket and pass it as ?ticket=.
package api
