package storage

// Key schema:
//
//	sub:<submissionID> -> tracker.Snapshot (JSON)
const prefixSubmission = "sub:"

func submissionKey(id string) []byte {
	return []byte(prefixSubmission + id)
}

// keyUpperBound returns the exclusive upper bound for a prefix scan
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
