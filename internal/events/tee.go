package events

// Tee fans one stream of emitted events out to multiple Sinks, so a
// Controller can write events.jsonl locally and mirror them to a remote
// bridge (internal/events/wsbridge) at the same time.
type Tee struct {
	sinks []Sink
}

// NewTee builds a Tee over sinks, skipping any nil entries.
func NewTee(sinks ...Sink) *Tee {
	t := &Tee{}
	for _, s := range sinks {
		if s != nil {
			t.sinks = append(t.sinks, s)
		}
	}
	return t
}

// EmitOutput implements Sink.
func (t *Tee) EmitOutput(sessionID string, seq uint64, data string) {
	for _, s := range t.sinks {
		s.EmitOutput(sessionID, seq, data)
	}
}

// EmitClosed implements Sink.
func (t *Tee) EmitClosed(sessionID string, exitCode int) {
	for _, s := range t.sinks {
		s.EmitClosed(sessionID, exitCode)
	}
}

// EmitDiagnostic implements Sink.
func (t *Tee) EmitDiagnostic(sessionID string, level DiagnosticLevel, source, code, message string) {
	for _, s := range t.sinks {
		s.EmitDiagnostic(sessionID, level, source, code, message)
	}
}
