// Package analysis turns sampled video frames into dashboard data.
//
// The pipeline is linear: a Sampler seeks to evenly spaced timestamps and
// collects decoded frames, a port.FrameDetector scores each frame, and a
// Synthesizer maps the strongest detection onto chart-ready series. The
// ContrastDetector shipped here is a luma-contrast heuristic, not a model.
package analysis
