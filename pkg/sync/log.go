package sync

//go:generate mockery -name Logger

// Logger receives the progress of synchronization passes. Log is called once
// for every change made to the replica, and once with a summary at the end of
// each pass. LogError is called for every failure.
type Logger interface {
	Log(msg string)
	LogError(msg string, err error)
}
