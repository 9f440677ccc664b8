// Package control provides the attitude stabilizer that sits inside the
// quadrotor control loop, plus a few simple policies that drive an
// environment through the [dynamo.Controller] interface:
//
//   - [Stabilizer]: fixed-gain PD attitude damping, body torque out
//   - [PID]: altitude hold on the observed vertical position
//   - [Constant]: replays a fixed action vector
//   - [None]: zero action
//
// Policies see only observations, never the simulator's internal state.
// PID keeps integral state and must not be shared between environments.
package control
