package metrics

import "time"

// Recorder defines observability hooks for step accounting.
type Recorder interface {
	IncReadings()
	IncRollovers()
	IncCounterResets()
	ObserveDelta(steps int64)
	IncPersistFailure(op string) // op: load|save
	ObservePersistDuration(op string, d time.Duration)
	SetActiveAccumulators(n int)
}

// NoopRecorder is a Recorder that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) IncReadings()                                 {}
func (NoopRecorder) IncRollovers()                                {}
func (NoopRecorder) IncCounterResets()                            {}
func (NoopRecorder) ObserveDelta(int64)                           {}
func (NoopRecorder) IncPersistFailure(string)                     {}
func (NoopRecorder) ObservePersistDuration(string, time.Duration) {}
func (NoopRecorder) SetActiveAccumulators(int)                    {}
