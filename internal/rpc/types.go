package rpc

// balanceResponse answers a BALANCE query (spec §6's BALANCE/SEND_BAL
// opcode pair, exposed here over HTTP instead of the fixed wire frame).
type balanceResponse struct {
	Address string `json:"address"`
	Balance uint64 `json:"balance"`
	Found   bool   `json:"found"`
}

// resolveResponse answers a RESOLVE query: a 12-byte tag mapped to the
// ledger address currently bound to it.
type resolveResponse struct {
	Tag     string `json:"tag"`
	Address string `json:"address"`
	Found   bool   `json:"found"`
}

// errorResponse is the JSON body written alongside a non-2xx status.
type errorResponse struct {
	Error string `json:"error"`
}
