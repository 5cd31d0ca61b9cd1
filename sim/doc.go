// Package sim provides the discrete-event simulation kernel.
//
// # Reading Guide
//
// Start with these files to understand the kernel:
//   - event.go / calendar.go: events and the time-ordered calendar
//   - executive.go: the dispatch loop, stopping rules and the ending event
//   - element.go / model.go: the element tree and its lifecycle hooks
//   - simulation.go: the replication controller and experiment results
//
// # Architecture
//
// The sim package owns time, the element tree and the response collectors;
// model building blocks live in sub-packages:
//   - sim/stats/: online estimators, batch means and confidence intervals
//   - sim/random/: distributions and independent random streams
//   - sim/queue/: FIFO, LIFO and priority queues that record time in queue
//   - sim/resource/: resource units, requests, failure and inactivity notices, pools
//   - sim/station/: service stations and config-driven tandem networks
//   - sim/trace/: state transition recording
//   - sim/report/: plain-text experiment reports
//
// # Lifecycle
//
// Every element receives, in pre-order of the tree: BeforeExperiment once,
// then per replication BeforeReplication, Initialize, WarmUp (when a warm-up
// length is set) and AfterReplication, and finally AfterExperiment. A
// component opts in by implementing the matching single-method interface.
package sim
