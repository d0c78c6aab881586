package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetAccountInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "2.0", req.JSONRPC)
		assert.Equal(t, "getAccountInfo", req.Method)
		require.Len(t, req.Params, 2)
		assert.Equal(t, "VAULT_PUBKEY", req.Params[0])

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%d,"result":{"value":{"lamports":2039280,"owner":"%s","data":["AQID","base64"],"executable":false,"rentEpoch":361}}}`, req.ID, TokenProgramID)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)

	info, err := c.GetAccountInfo(context.Background(), "VAULT_PUBKEY")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, uint64(2039280), info.Lamports)
	assert.Equal(t, TokenProgramID, info.Owner)
	assert.Equal(t, "AQID", info.Data)
}

func TestGetAccountInfo_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":{"value":null}}`)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)

	info, err := c.GetAccountInfo(context.Background(), "MISSING")
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestGetTokenAccountsByOwner(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "getTokenAccountsByOwner", req.Method)
		require.Len(t, req.Params, 3)
		assert.Equal(t, "WALLET", req.Params[0])

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":{"value":[
			{"pubkey":"ATA1","account":{"data":{"parsed":{"info":{"mint":"MINT","owner":"WALLET","tokenAmount":{"uiAmount":250000.5,"amount":"250000500000000","decimals":9}}}}}}
		]}}`)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)

	accounts, err := c.GetTokenAccountsByOwner(context.Background(), "WALLET", TokenProgramID)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "ATA1", accounts[0].Pubkey)
	assert.Equal(t, "MINT", accounts[0].Mint)
	assert.Equal(t, "WALLET", accounts[0].Owner)
	assert.Equal(t, 250000.5, accounts[0].UIAmount)
}

func TestCall_RetriesOnRateLimit(t *testing.T) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt64(&hits, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"result":{"value":null}}`)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, WithRetryDelay(time.Millisecond))

	_, err := c.GetAccountInfo(context.Background(), "PUBKEY")
	require.NoError(t, err)
	assert.Equal(t, int64(2), atomic.LoadInt64(&hits))
}

func TestCall_RPCErrorNotRetried(t *testing.T) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt64(&hits, 1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"invalid params"}}`)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, WithRetryDelay(time.Millisecond))

	_, err := c.GetAccountInfo(context.Background(), "PUBKEY")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid params")
	assert.Equal(t, int64(1), atomic.LoadInt64(&hits))
}

func TestCall_MaxRetriesExceeded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, WithMaxRetries(1), WithRetryDelay(time.Millisecond))

	_, err := c.GetAccountInfo(context.Background(), "PUBKEY")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries exceeded")
}
