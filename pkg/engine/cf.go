package engine

// Column family names the engine always opens, in this fixed order. Index
// into this slice lines up with the *grocksdb.ColumnFamilyHandle slice
// OpenDbColumnFamilies returns.
const (
	DefaultCF = "default"
	WriteCF   = "write"
	LockCF    = "lock"
	RaftCF    = "raft"
)

var cfNames = []string{DefaultCF, WriteCF, LockCF, RaftCF}
