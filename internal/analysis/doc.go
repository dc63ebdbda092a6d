// Package analysis provides diagnostics over a phase-space buffer.
//
//   - [Summarize]: centre of mass, speed and radius statistics
//   - [RadialProfile]: surface density and mean speed in concentric shells
//   - [RotationCurve]: mean tangential speed against disk radius
//   - [Project]: a rotated 2D density map, with an ASCII rendering
//
// # Rotation curves
//
// A freshly generated disk has speed rising with radius; after some frames
// under the central pull the inner curve steepens:
//
//	curve := analysis.RotationCurve(buf, analysis.PlaneXZ, 32)
//	fmt.Println(asciigraph.Plot(curve.Speeds))
package analysis
