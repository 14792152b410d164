package trace

// Recorder collects records in memory, in emission order.
type Recorder struct {
	Records []Record
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{Records: make([]Record, 0)}
}

// Emit appends a record.
func (r *Recorder) Emit(rec Record) {
	r.Records = append(r.Records, rec)
}

// OfKind returns the recorded events of the given kind.
func (r *Recorder) OfKind(k Kind) []Record {
	var out []Record
	for _, rec := range r.Records {
		if rec.Kind == k {
			out = append(out, rec)
		}
	}
	return out
}
