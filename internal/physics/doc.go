// Package physics integrates quadrotor rigid-body dynamics in generalized
// coordinates (unit quaternion attitude plus position) and, for the
// slung-load configuration, the taut/slack cable between vehicle and load.
//
// Every step is a single semi-implicit Euler update at a fixed dt:
// velocities first, then attitude through the boxplus retraction using the
// new angular velocity, then positions, then velocity clamping.
//
//	in, _ := physics.NewIntegrator(physics.NewQuadrotor())
//	body := physics.Body{Orientation: quat.Number{Real: 1}}
//	in.Step(&body, physics.Wrench{Thrust: in.Vehicle().HoverThrust()}, r3.Vec{}, 0.01)
//
// Angular velocity is stored in the inertial frame. The body-frame rate
// used by Euler's equation is R^T·ω.
//
// Nothing in this package locks. A Body, Load or Integrator belongs to one
// goroutine.
package physics
