// Package simulation provides core abstractions and types for the
// time-accelerated business event simulator.
//
// This package defines the fundamental contracts shared by the engine
// subpackages: event descriptors, issues, priorities, the Sender
// collaborator boundary, the status snapshot, and common error
// definitions.
//
// The simulator models the business week of a small e-mail company.
// A virtual clock advances simulated time under a configurable speed
// level, a scenario generator derives event volume from the simulated
// calendar position, and a dispatch queue delivers the generated
// events to a Sender under dual sliding-window rate limits.
//
// Key types:
//   - EventDescriptor: an immutable, factory-built event to be dispatched
//   - Issue: a simulated ongoing business problem influencing event volume
//   - Sender: the external delivery collaborator consumed by the dispatcher
//   - StatusSnapshot: the machine-readable state exposed for polling
//
// Common usage pattern:
//
//	eng, err := engine.NewEngine(sender,
//		engine.WithLogger(logger),
//		engine.WithRateLimits(5, 30),
//	)
//	if err != nil {
//		// handle error
//	}
//
//	eng.StartContinuous()
//	defer eng.StopContinuous()
//
//	status := eng.Status()
package simulation
