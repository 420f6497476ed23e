/*
Package domain contains the core types of the Beamline plan interpreter.

It defines the instruction set plans are written in, the documents the engine
publishes while a plan runs, and the error taxonomy shared by every layer. The
package is kept pure and free of I/O, following Hexagonal Architecture principles.

# Key Entities

  - Msg: One instruction (command, target, args, kwargs) produced by a plan.
  - Command: The closed vocabulary the interpreter understands.
  - RunStart, Event, RunStop: Documents published to subscribers during a run.
  - RunResult: The terminal outcome of a run (completed, stopped, failed, aborted).
  - LifecycleHooks: Observability callbacks that cannot affect a run.
*/
package domain
