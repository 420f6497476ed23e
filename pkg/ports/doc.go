/*
Package ports defines the driven ports (interfaces) of the Beamline engine.

These interfaces decouple the interpreter from concrete hardware and from the
storage used to record results. The engine only ever depends on the capability
sets below, never on a concrete device type.

# Key Interfaces

  - Readable, Movable, Triggerable, Settler: device capabilities.
  - Status: completion signal returned by asynchronous device operations.
  - DocumentStore: persistence of published documents (memory, Redis).
  - DistributedLocker: cross-process guarantee of one experiment at a time.
*/
package ports
