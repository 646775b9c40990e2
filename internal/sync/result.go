package sync

// outcomeKind tags an outcome. Exactly one of the fields beyond Kind is
// meaningful, per Kind. Neither type is used by the passes:
// routeR2LEvent and pushPendingWrite return nothing, staging writes into
// the batch and reporting per-document errors through emitError.
type outcomeKind int

const (
	outcomeApplied outcomeKind = iota
	outcomeDropped
	outcomeConflict
	outcomeNeedsDesync
	outcomePausedError
	outcomeDeferred
)

// outcome describes the result of routing one (docConfig, event) pair
// through the remote-to-local or local-to-remote decision tree.
type outcome struct {
	Kind        outcomeKind
	RemoteEvent *ChangeEvent // set when Kind == outcomeConflict
	Err         error        // set when Kind == outcomePausedError
}
