// Package rpc implements a minimal, read-only HTTP stand-in for the
// BALANCE and RESOLVE wire opcodes (§6): a convenience wrapper over the
// node's committed ledger view for operators and tests, not a consensus
// surface. It mirrors the teacher's internal/rpc package shape (IP
// filtering, CORS, a single listening *http.Server) scoped down to the
// two read-only queries spec.md's external interface actually defines.
package rpc

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/haikuchain/haikunode/config"
	"github.com/haikuchain/haikunode/internal/ledger"
	klog "github.com/haikuchain/haikunode/internal/log"
	"github.com/haikuchain/haikunode/internal/node"
	"github.com/haikuchain/haikunode/pkg/blockfile"
	"github.com/rs/zerolog"
)

// Ledger is the read surface Server needs from the running node. It is
// satisfied by *node.Node; tests supply a lighter fake.
type Ledger interface {
	Balance(addr [blockfile.AddrLen]byte) (uint64, bool, error)
	Resolve(tag [ledger.TagLen]byte) ([blockfile.AddrLen]byte, bool, error)
}

var _ Ledger = (*node.Node)(nil)

// Server is the read-only HTTP stand-in.
type Server struct {
	addr        string
	ledger      Ledger
	server      *http.Server
	logger      zerolog.Logger
	ln          net.Listener
	allowedNets []*net.IPNet
	corsOrigins []string
}

// New creates a Server bound to addr, querying led for every request.
// A zero-value config.RPCConfig allows all IPs and disables CORS.
func New(addr string, led Ledger, rpcCfg ...config.RPCConfig) *Server {
	s := &Server{
		addr:   addr,
		ledger: led,
		logger: klog.WithComponent("rpc"),
	}
	if len(rpcCfg) > 0 {
		s.allowedNets = parseAllowedIPs(rpcCfg[0].AllowedIPs)
		s.corsOrigins = rpcCfg[0].CORSOrigins
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/balance", s.withGuards(s.handleBalance))
	mux.HandleFunc("/resolve", s.withGuards(s.handleResolve))

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// parseAllowedIPs converts string IP/CIDR entries into net.IPNet.
func parseAllowedIPs(entries []string) []*net.IPNet {
	var nets []*net.IPNet
	for _, entry := range entries {
		if _, ipNet, err := net.ParseCIDR(entry); err == nil {
			nets = append(nets, ipNet)
			continue
		}
		ip := net.ParseIP(entry)
		if ip == nil {
			continue
		}
		bits := 32
		if ip.To4() == nil {
			bits = 128
		}
		nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return nets
}

func (s *Server) isIPAllowed(ip net.IP) bool {
	for _, n := range s.allowedNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func (s *Server) setCORSHeaders(w http.ResponseWriter, r *http.Request) {
	if len(s.corsOrigins) == 0 {
		return
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range s.corsOrigins {
		if allowed == "*" || allowed == origin {
			w.Header().Set("Access-Control-Allow-Origin", allowed)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			return
		}
	}
}

// withGuards wraps a handler with IP filtering, CORS, and GET-only
// enforcement, the same perimeter the teacher's handleRequest applied
// ahead of JSON-RPC dispatch.
func (s *Server) withGuards(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if len(s.allowedNets) > 0 {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}
			ip := net.ParseIP(host)
			if ip == nil || !s.isIPAllowed(ip) {
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}
		}

		s.setCORSHeaders(w, r)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "only GET is allowed")
			return
		}
		next(w, r)
	}
}

// Start begins listening and serving in a background goroutine. It
// returns immediately after the listener is bound.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("rpc listen: %w", err)
	}
	s.ln = ln

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("rpc server error")
		}
	}()
	return nil
}

// Addr returns the listener address (useful when bound to :0).
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// decodeAddr hex-decodes a blockfile.AddrLen-byte ledger address.
func decodeAddr(s string) ([blockfile.AddrLen]byte, error) {
	var addr [blockfile.AddrLen]byte
	raw, err := hex.DecodeString(s)
	if err != nil {
		return addr, fmt.Errorf("invalid hex: %w", err)
	}
	if len(raw) != blockfile.AddrLen {
		return addr, fmt.Errorf("address must be %d bytes, got %d", blockfile.AddrLen, len(raw))
	}
	copy(addr[:], raw)
	return addr, nil
}

// decodeTag hex-decodes a 12-byte ledger tag.
func decodeTag(s string) ([ledger.TagLen]byte, error) {
	var tag [ledger.TagLen]byte
	raw, err := hex.DecodeString(s)
	if err != nil {
		return tag, fmt.Errorf("invalid hex: %w", err)
	}
	if len(raw) != ledger.TagLen {
		return tag, fmt.Errorf("tag must be %d bytes, got %d", ledger.TagLen, len(raw))
	}
	copy(tag[:], raw)
	return tag, nil
}
