package clientsync

// ConflictPolicy names a strategy for resolving two sides editing the same
// path. The engine only ever invokes Recent (last-writer-wins by
// modification timestamp), per the resolution recorded for Open Question
// (a): the non-goals explicitly permit last-writer-wins, so the remaining
// policies are documented extension points rather than reachable behavior.
type ConflictPolicy int

const (
	ConflictRecent ConflictPolicy = iota
	ConflictPreferLocal
	ConflictPreferRemote
	ConflictAsk
	ConflictKeepBoth
)

func (p ConflictPolicy) String() string {
	switch p {
	case ConflictRecent:
		return "recent"
	case ConflictPreferLocal:
		return "local"
	case ConflictPreferRemote:
		return "remote"
	case ConflictAsk:
		return "ask"
	case ConflictKeepBoth:
		return "keep-both"
	default:
		return "unknown"
	}
}
