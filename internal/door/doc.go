// Package door implements the garage door control loop.
//
// The opener is driven by a single toggle relay (the coupler). Each press
// advances the opener's internal cycle (stop → forward → stop → reverse), so
// the package translates intended outcomes (open, close, toggle) into the
// right number of timed presses while tracking the door from two limit
// switches and a dead-reckoning position estimate.
//
// Architecture:
//
//	┌──────────────────────────────────────────────────────────┐
//	│                Controller (controller.go)                 │
//	│  single owner of State, Tracking and the pulse queue      │
//	│                                                           │
//	│  Mailbox ──▶ Plan (planner.go) ──▶ Driver (driver.go)     │
//	│                     ▲                    │                │
//	│  limits ──▶ Estimate (estimator.go)      ▼ coupler        │
//	│                     │                                     │
//	│                     ▼                                     │
//	│            Publisher (publisher.go) ──▶ subscribers       │
//	└──────────────────────────────────────────────────────────┘
//
// # Tick order
//
//  1. Read both limit switches
//  2. Estimate status and position
//  3. Take at most one command from the Mailbox and plan it
//  4. Apply at most one pulse event to the coupler
//  5. Publish the state if it differs from the last published one
//  6. Sleep until the next tick
//
// # Thread Safety
//
// The Controller's loop state is touched only by the goroutine running Run.
// Mailbox and Publisher are the two surfaces shared with other goroutines and
// are safe for concurrent use. Estimate and PlanCommand are pure functions.
package door
