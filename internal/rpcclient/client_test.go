package rpcclient

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/btcsuite/btcd/wire"
)

func testBlock() *wire.MsgBlock {
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Index: ^uint32(0)}})
	tx.AddTxOut(&wire.TxOut{Value: 5_000_000_000, PkScript: []byte{0x51}})
	return &wire.MsgBlock{
		Header: wire.BlockHeader{
			Version:    1,
			MerkleRoot: tx.TxHash(),
			Timestamp:  time.Unix(1231006505, 0),
			Bits:       0x1d00ffff,
		},
		Transactions: []*wire.MsgTx{tx},
	}
}

func blockHex(t *testing.T, block *wire.MsgBlock) string {
	t.Helper()
	var buf bytes.Buffer
	if err := block.Serialize(&buf); err != nil {
		t.Fatal(err)
	}
	return hex.EncodeToString(buf.Bytes())
}

func headerHex(t *testing.T, header *wire.BlockHeader) string {
	t.Helper()
	var buf bytes.Buffer
	if err := header.Serialize(&buf); err != nil {
		t.Fatal(err)
	}
	return hex.EncodeToString(buf.Bytes())
}

// testServer answers the bitcoind methods the client uses for a one-block
// chain.
func testServer(t *testing.T, block *wire.MsgBlock) *httptest.Server {
	t.Helper()
	hash := block.BlockHash()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}

		write := func(result interface{}) {
			resp := map[string]interface{}{"result": result, "id": 1}
			json.NewEncoder(w).Encode(resp)
		}
		writeErr := func(code int, msg string) {
			resp := map[string]interface{}{
				"error": map[string]interface{}{"code": code, "message": msg},
				"id":    1,
			}
			json.NewEncoder(w).Encode(resp)
		}

		switch req.Method {
		case "getblockcount":
			write(0)
		case "getblockhash":
			var height uint64
			json.Unmarshal(req.Params[0], &height)
			if height > 0 {
				writeErr(-8, "Block height out of range")
				return
			}
			write(hash.String())
		case "getblock":
			write(blockHex(t, block))
		case "getblockheader":
			write(headerHex(t, &block.Header))
		default:
			writeErr(-32601, "Method not found")
		}
	}))
}

func TestGetBlockCount(t *testing.T) {
	server := testServer(t, testBlock())
	defer server.Close()

	client := New(server.URL, "", "")
	count, err := client.GetBlockCount()
	if err != nil {
		t.Fatalf("GetBlockCount error: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
}

func TestGetBlockHash(t *testing.T) {
	block := testBlock()
	server := testServer(t, block)
	defer server.Close()

	client := New(server.URL, "", "")
	hash, err := client.GetBlockHash(0)
	if err != nil {
		t.Fatalf("GetBlockHash error: %v", err)
	}
	want := block.BlockHash()
	if *hash != want {
		t.Errorf("hash = %s, want %s", hash, want)
	}
}

func TestGetBlockHashPastTip(t *testing.T) {
	server := testServer(t, testBlock())
	defer server.Close()

	client := New(server.URL, "", "")
	hash, err := client.GetBlockHash(1)
	if err != nil {
		t.Fatalf("past-tip height must be absence, not failure: %v", err)
	}
	if hash != nil {
		t.Errorf("hash = %s, want nil past the tip", hash)
	}
}

func TestGetBlockRoundTrip(t *testing.T) {
	block := testBlock()
	server := testServer(t, block)
	defer server.Close()

	client := New(server.URL, "", "")
	hash := block.BlockHash()
	got, err := client.GetBlock(&hash)
	if err != nil {
		t.Fatalf("GetBlock error: %v", err)
	}
	if got.BlockHash() != hash {
		t.Error("deserialized block hash mismatch")
	}
	if len(got.Transactions) != 1 {
		t.Errorf("transactions = %d, want 1", len(got.Transactions))
	}
	if got.Transactions[0].TxHash() != block.Transactions[0].TxHash() {
		t.Error("transaction round trip mismatch")
	}
}

func TestGetBlockHeader(t *testing.T) {
	block := testBlock()
	server := testServer(t, block)
	defer server.Close()

	client := New(server.URL, "", "")
	hash := block.BlockHash()
	header, err := client.GetBlockHeader(&hash)
	if err != nil {
		t.Fatalf("GetBlockHeader error: %v", err)
	}
	if header.BlockHash() != hash {
		t.Error("deserialized header hash mismatch")
	}
}

func TestBasicAuth(t *testing.T) {
	var gotUser, gotPass string
	var gotOK bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, gotOK = r.BasicAuth()
		json.NewEncoder(w).Encode(map[string]interface{}{"result": 0, "id": 1})
	}))
	defer server.Close()

	client := New(server.URL, "alice", "secret")
	if _, err := client.GetBlockCount(); err != nil {
		t.Fatal(err)
	}
	if !gotOK || gotUser != "alice" || gotPass != "secret" {
		t.Errorf("basic auth = (%q, %q, %v)", gotUser, gotPass, gotOK)
	}
}

func TestRPCErrorSurfaced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{"code": -28, "message": "Loading block index"},
			"id":    1,
		})
	}))
	defer server.Close()

	client := New(server.URL, "", "")
	_, err := client.GetBlockCount()
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("error = %v, want *RPCError", err)
	}
	if rpcErr.Code != -28 {
		t.Errorf("code = %d, want -28", rpcErr.Code)
	}
}

func TestHTTPErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, "Unauthorized")
	}))
	defer server.Close()

	client := New(server.URL, "", "")
	if _, err := client.GetBlockCount(); err == nil {
		t.Error("non-JSON error response should surface an error")
	}
}
