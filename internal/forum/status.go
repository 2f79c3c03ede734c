package forum

// StatusFor is the status transition function: a pure mapping from the
// aggregate vote count to a lifecycle state, given the approval threshold.
//
//	voteCount >= threshold  → approved
//	voteCount <= -threshold → disapproved
//	otherwise               → pending
//
// Callers must only apply it to posts still in pending; approved and
// disapproved are terminal.
func StatusFor(voteCount, threshold int) Status {
	switch {
	case voteCount >= threshold:
		return StatusApproved
	case voteCount <= -threshold:
		return StatusDisapproved
	default:
		return StatusPending
	}
}
