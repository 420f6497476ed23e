/*
Package beamline runs scientific-instrument experiments described as plans.

A plan is a lazy, restartable producer of messages: move this motor, trigger
that detector, read both, save the readings as an event. The engine pulls one
message at a time, dispatches it to the device it targets, and hands the result
back to the plan, so a plan can adapt to what it measures. Observers subscribe
to the documents the engine publishes: one start document per run, one event
per saved bundle of readings and one stop document carrying the exit status.

# Usage

An experiment file declares the devices and a set of named plans:

	name: demo
	devices:
	  - {name: motor, kind: motor, params: {move_time: 10ms}}
	  - {name: det, kind: gauss, params: {motor: motor, sigma: 0.5}}
	plans:
	  peak:
	    kind: scan
	    detectors: [det]
	    args: {motor: motor, start: -2, stop: 2, num: 21}

Load it and run a plan, collecting the events on the way:

	eng, err := beamline.New("demo.yaml")
	if err != nil {
		log.Fatal(err)
	}
	rec := &dispatch.Recorder{}
	res, err := eng.RunNamed(ctx, "peak", nil, dispatch.Subscriptions{
		domain.DocEvent: {rec.Callback()},
	})

Plans can also be built in code with the constructors of package plan, and
devices registered directly with WithRegistry.
*/
package beamline
