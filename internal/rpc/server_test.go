package rpc

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/haikuchain/haikunode/config"
	"github.com/haikuchain/haikunode/internal/ledger"
	"github.com/haikuchain/haikunode/pkg/blockfile"
)

type fakeLedger struct {
	balances map[[blockfile.AddrLen]byte]uint64
	tags     map[[ledger.TagLen]byte][blockfile.AddrLen]byte
}

func (f *fakeLedger) Balance(addr [blockfile.AddrLen]byte) (uint64, bool, error) {
	bal, ok := f.balances[addr]
	return bal, ok, nil
}

func (f *fakeLedger) Resolve(tag [ledger.TagLen]byte) ([blockfile.AddrLen]byte, bool, error) {
	addr, ok := f.tags[tag]
	return addr, ok, nil
}

func newTestServer(t *testing.T, led *fakeLedger) *httptest.Server {
	t.Helper()
	s := New("127.0.0.1:0", led)
	return httptest.NewServer(s.server.Handler)
}

func TestHandleBalanceFound(t *testing.T) {
	var addr [blockfile.AddrLen]byte
	addr[0] = 7
	led := &fakeLedger{balances: map[[blockfile.AddrLen]byte]uint64{addr: 12345}}
	ts := newTestServer(t, led)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/balance?addr=" + hex.EncodeToString(addr[:]))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var out balanceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if !out.Found || out.Balance != 12345 {
		t.Fatalf("balance response = %+v, want found=true balance=12345", out)
	}
}

func TestHandleBalanceMissingParam(t *testing.T) {
	ts := newTestServer(t, &fakeLedger{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/balance")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHandleResolveNotFound(t *testing.T) {
	ts := newTestServer(t, &fakeLedger{tags: map[[ledger.TagLen]byte][blockfile.AddrLen]byte{}})
	defer ts.Close()

	var tag [ledger.TagLen]byte
	tag[0] = 9
	resp, err := http.Get(ts.URL + "/resolve?tag=" + hex.EncodeToString(tag[:]))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var out resolveResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Found {
		t.Fatal("expected Found=false for an unbound tag")
	}
}

func TestAllowedIPsRejectsOthers(t *testing.T) {
	led := &fakeLedger{balances: map[[blockfile.AddrLen]byte]uint64{}}
	s := New("127.0.0.1:0", led, config.RPCConfig{AllowedIPs: []string{"10.0.0.0/8"}})
	ts := httptest.NewServer(s.server.Handler)
	defer ts.Close()

	// httptest requests originate from 127.0.0.1, outside the allow-list.
	resp, err := http.Get(ts.URL + "/balance?addr=00")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
}

func TestNonGETRejected(t *testing.T) {
	ts := newTestServer(t, &fakeLedger{})
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/balance", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.StatusCode)
	}
}
