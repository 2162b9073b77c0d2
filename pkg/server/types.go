package server

// These are the plain Go structs carried over the JSON gRPC codec for the
// KV, Coprocessor, and Raft services. The protocols they stand in for are
// referenced only by interface; only the RPC shape (unary request/response,
// bidirectional stream) is exercised here.

type getRequest struct {
	Key []byte `json:"key"`
}

type getResponse struct {
	Value []byte `json:"value"`
}

type prewriteRequest struct {
	Mutations []wireMutation `json:"mutations"`
}

type wireMutation struct {
	Key   []byte `json:"key"`
	Value []byte `json:"value"`
}

type prewriteResponse struct{}

type commitRequest struct {
	Keys     [][]byte `json:"keys"`
	CommitTS uint64   `json:"commit_ts"`
}

type commitResponse struct{}

type rollbackRequest struct {
	Keys [][]byte `json:"keys"`
}

type rollbackResponse struct{}

type scanRequest struct {
	StartKey []byte `json:"start_key"`
	EndKey   []byte `json:"end_key"`
	Limit    int    `json:"limit"`
}

type scanResponse struct {
	Rows []wireKV `json:"rows"`
}

type wireKV struct {
	Key   []byte `json:"key"`
	Value []byte `json:"value"`
}

type gcRequest struct {
	SafePoint uint64 `json:"safe_point"`
}

type gcResponse struct{}

// coprocessorRequest carries an opaque pushdown task. Its payload format is
// the coprocessor subsystem's concern, referenced only by interface; the
// service here only routes it onto a bounded thread pool.
type coprocessorRequest struct {
	RegionID uint64 `json:"region_id"`
	Task     []byte `json:"task"`
}

type coprocessorResponse struct {
	Result []byte `json:"result"`
}

// raftEnvelope is one message exchanged on a Raft stream. Its fields mirror
// raftrouter.RaftMessage one for one; FromPeer/ToPeer name the sending and
// receiving peers.
type raftEnvelope struct {
	RegionID  uint64 `json:"region_id"`
	FromPeer  uint64 `json:"from_peer"`
	ToPeer    uint64 `json:"to_peer"`
	Term      uint64 `json:"term"`
	EntryData []byte `json:"entry_data"`
}
