package beamline

// Version is the release of the module. Overridden at build time with
// -ldflags "-X github.com/aretw0/beamline.Version=...".
var Version = "0.1.0-dev"
