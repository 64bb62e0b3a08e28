package daemon

// Please add the dependencies if you add your own priority here.
// Otherwise investigating deadlocks at shutdown is much more complicated.

const (
	PriorityCloseDatabase = iota // no dependencies
	PriorityCloseRetainer        // no dependencies
	PriorityProtocol             // depends on PriorityCloseDatabase and PriorityCloseRetainer
	PriorityRestAPI              // depends on PriorityProtocol
	PriorityMetrics              // depends on PriorityProtocol
)
