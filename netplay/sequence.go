package netplay

// SequenceFilter drops duplicate and out of order messages: a sequence
// number is accepted only if it is strictly greater than every one accepted
// before. Rejected messages are not buffered.
//
// Not safe for concurrent use.
type SequenceFilter struct {
	last int64
}

func (f *SequenceFilter) Accept(seq int64) bool {
	if seq <= f.last {
		return false
	}
	f.last = seq
	return true
}

// Last is the highest sequence accepted so far, 0 before any.
func (f *SequenceFilter) Last() int64 { return f.last }
