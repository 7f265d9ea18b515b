package domain

// ExecutionStatus is the per-node state machine driven by the scheduler:
// idle -> running -> success | error, with bypassed as the terminal state
// for structural kinds.
type ExecutionStatus string

const (
	StatusIdle     ExecutionStatus = "idle"
	StatusRunning  ExecutionStatus = "running"
	StatusSuccess  ExecutionStatus = "success"
	StatusError    ExecutionStatus = "error"
	StatusBypassed ExecutionStatus = "bypassed"
)

// Terminal reports whether the status will not change for the remainder
// of the current run.
func (s ExecutionStatus) Terminal() bool {
	switch s {
	case StatusSuccess, StatusError, StatusBypassed:
		return true
	}
	return false
}
