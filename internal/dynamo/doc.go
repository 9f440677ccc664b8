// Package dynamo provides the primitives shared by the quadrotor simulation
// and the code that drives it.
//
//   - [State]: flat observation vector handed to learning collaborators
//   - [Control]: action vector
//   - [Controller]: policy interface (observation in, action out)
//   - [Metric]: per-episode statistic fed by observations
//
// Errors returned across package boundaries wrap one of the sentinel
// values in errors.go, so callers can test them with errors.Is.
//
// # Thread Safety
//
// None of the types here carry locks. Parallel rollouts give every worker
// its own environment, controller and metrics; see package rollout.
package dynamo
