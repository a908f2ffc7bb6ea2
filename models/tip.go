package models

// DAGTip points at a node no other live node references yet.
// ID is process local and never leaves the node.
type DAGTip struct {
	ID                    uint64 `json:"id"`
	DAGNodeReference      Hash   `json:"dag_node_reference"`
	OldestEpochReferenced uint64 `json:"oldest_epoch_referenced"`
	Weight                uint64 `json:"weight"`
}
