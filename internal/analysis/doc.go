// Package analysis characterises recorded trajectories.
//
//   - [Spectrum] and [DominantFrequency]: FFT power spectrum of a signal
//   - [SwingFrequency]: small-angle frequency of a load on a cable
//   - [Crossings] and [MeanPeriod]: upward level crossings of a signal
//   - [PortraitToASCII]: 2D phase portrait of two signals
//
// A slung load hanging from a hovering vehicle should swing close to the
// pendulum frequency of its cable:
//
//	f, _ := analysis.DominantFrequency(swing, dt)
//	ratio := f / analysis.SwingFrequency(length, physics.GravityAccel)
package analysis
