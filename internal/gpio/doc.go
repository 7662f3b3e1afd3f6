// Package gpio provides the limit switch and coupler capabilities consumed
// by the door controller.
//
// Two implementations are available:
//   - Open requests real lines from a GPIO character device (linux only)
//     using go-gpiocdev. Limit switches are inputs with pull-up bias and,
//     by default, active-low so that a pressed switch reads as asserted.
//   - Simulator is a kinematic model of a toggle-relay door opener for
//     development machines and tests.
//
// Both return a *Pins, so the caller selects one at startup and the
// controller never knows which it was given.
package gpio
