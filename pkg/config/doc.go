// Package config loads experiment files: the device list, the named plans and
// the storage, lock and server settings of a beamline.
package config
