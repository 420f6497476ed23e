// Package devices provides simulated hardware: motors with optional move and
// settle times, Gaussian detectors that follow a motor, and constant detectors.
// They satisfy the capability interfaces of package ports and are meant for
// dry runs, demos and tests.
package devices
