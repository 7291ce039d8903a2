package rpc

import (
	"encoding/hex"
	"net/http"
)

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	addrHex := r.URL.Query().Get("addr")
	if addrHex == "" {
		writeError(w, http.StatusBadRequest, "missing addr query parameter")
		return
	}
	addr, err := decodeAddr(addrHex)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	balance, found, err := s.ledger.Balance(addr)
	if err != nil {
		s.logger.Error().Err(err).Msg("balance query failed")
		writeError(w, http.StatusInternalServerError, "balance lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Address: addrHex, Balance: balance, Found: found})
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	tagHex := r.URL.Query().Get("tag")
	if tagHex == "" {
		writeError(w, http.StatusBadRequest, "missing tag query parameter")
		return
	}
	tag, err := decodeTag(tagHex)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	addr, found, err := s.ledger.Resolve(tag)
	if err != nil {
		s.logger.Error().Err(err).Msg("resolve query failed")
		writeError(w, http.StatusInternalServerError, "resolve lookup failed")
		return
	}
	resp := resolveResponse{Tag: tagHex, Found: found}
	if found {
		resp.Address = hex.EncodeToString(addr[:])
	}
	writeJSON(w, http.StatusOK, resp)
}
