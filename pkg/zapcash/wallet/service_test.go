package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// rpcStub serves canned JSON-RPC responses keyed by method.
func rpcStub(t *testing.T, handlers map[string]func(params []json.RawMessage) (any, error)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
			ID     int64             `json:"id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		handler, ok := handlers[req.Method]
		if !ok {
			t.Errorf("unexpected method %s", req.Method)
			http.Error(w, "unknown method", http.StatusBadRequest)
			return
		}
		result, err := handler(req.Params)
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if err != nil {
			resp["error"] = map[string]any{"code": -32000, "message": err.Error()}
		} else {
			resp["result"] = result
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func testService(cfg Config) *Service {
	cfg.ConfirmTimeout = 5 * time.Second
	return NewService(cfg, nil)
}

func TestGetBalance(t *testing.T) {
	srv := rpcStub(t, map[string]func([]json.RawMessage) (any, error){
		"eth_call": func(params []json.RawMessage) (any, error) {
			var call map[string]string
			json.Unmarshal(params[0], &call)
			if call["to"] != "0xtoken" {
				return nil, fmt.Errorf("wrong contract %s", call["to"])
			}
			// 500 tokens at 6 decimals = 0x1dcd6500
			return "0x000000000000000000000000000000000000000000000000000000001dcd6500", nil
		},
	})
	defer srv.Close()

	svc := testService(Config{RPCURLs: []string{srv.URL}, TokenAddress: "0xtoken", TokenDecimals: 6})
	bal, err := svc.GetBalance(context.Background(), "0x1111111111111111111111111111111111111111")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if bal.Int64() != 500000000 {
		t.Errorf("expected 500000000 units, got %s", bal)
	}
}

func TestGenerateWallet(t *testing.T) {
	var gotPassphrase string
	srv := rpcStub(t, map[string]func([]json.RawMessage) (any, error){
		"personal_newAccount": func(params []json.RawMessage) (any, error) {
			json.Unmarshal(params[0], &gotPassphrase)
			return "0xnewaddress", nil
		},
	})
	defer srv.Close()

	svc := testService(Config{RPCURLs: []string{srv.URL}})
	keys, err := svc.GenerateWallet(context.Background())
	if err != nil {
		t.Fatalf("GenerateWallet failed: %v", err)
	}
	if keys.Address != "0xnewaddress" {
		t.Errorf("unexpected address %s", keys.Address)
	}
	if keys.Secret == "" || keys.Secret != gotPassphrase {
		t.Error("wallet secret not used as keystore passphrase")
	}
}

func TestTransfer(t *testing.T) {
	var receiptPolls atomic.Int32
	srv := rpcStub(t, map[string]func([]json.RawMessage) (any, error){
		"personal_sendTransaction": func(params []json.RawMessage) (any, error) {
			return "0xtxhash", nil
		},
		"eth_getTransactionReceipt": func(params []json.RawMessage) (any, error) {
			if receiptPolls.Add(1) < 2 {
				return nil, nil // not mined yet
			}
			return map[string]string{"status": "0x1", "blockNumber": "0x10"}, nil
		},
	})
	defer srv.Close()

	svc := testService(Config{RPCURLs: []string{srv.URL}, TokenAddress: "0xtoken"})
	keys := &Keys{Address: "0xsender", Secret: "pass"}
	receipt, err := svc.Transfer(context.Background(), keys,
		"0x2222222222222222222222222222222222222222", bigIntFromString(t, "12500000"))
	if err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}
	if receipt.TxHash != "0xtxhash" {
		t.Errorf("unexpected hash %s", receipt.TxHash)
	}
	if receiptPolls.Load() < 2 {
		t.Error("expected receipt polling")
	}
}

func TestTransferReverted(t *testing.T) {
	srv := rpcStub(t, map[string]func([]json.RawMessage) (any, error){
		"personal_sendTransaction": func(params []json.RawMessage) (any, error) {
			return "0xtxhash", nil
		},
		"eth_getTransactionReceipt": func(params []json.RawMessage) (any, error) {
			return map[string]string{"status": "0x0"}, nil
		},
	})
	defer srv.Close()

	svc := testService(Config{RPCURLs: []string{srv.URL}, TokenAddress: "0xtoken"})
	_, err := svc.Transfer(context.Background(), &Keys{Address: "0xsender", Secret: "p"},
		"0x2222222222222222222222222222222222222222", bigIntFromString(t, "1"))
	if err == nil {
		t.Fatal("expected error for reverted transaction")
	}
}

func TestRPCFallback(t *testing.T) {
	good := rpcStub(t, map[string]func([]json.RawMessage) (any, error){
		"eth_getBalance": func(params []json.RawMessage) (any, error) {
			return "0xde0b6b3a7640000", nil // 1 ether
		},
	})
	defer good.Close()

	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer dead.Close()

	client := NewRPCClient([]string{dead.URL, good.URL})
	bal, err := client.EthBalance(context.Background(), "0xtreasury")
	if err != nil {
		t.Fatalf("EthBalance failed: %v", err)
	}
	if bal.String() != "1000000000000000000" {
		t.Errorf("unexpected balance %s", bal)
	}
}

func TestRPCAllEndpointsFailed(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer dead.Close()

	client := NewRPCClient([]string{dead.URL})
	if _, err := client.Call(context.Background(), "eth_blockNumber"); err == nil {
		t.Error("expected failure when all endpoints are down")
	}
}

func TestExplorerLink(t *testing.T) {
	svc := testService(Config{ExplorerBaseURL: "https://basescan.org/"})
	got := svc.ExplorerLink("0xabc")
	if got != "https://basescan.org/tx/0xabc" {
		t.Errorf("unexpected link %s", got)
	}
}

func bigIntFromString(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		t.Fatalf("bad big int %s", s)
	}
	return v
}
