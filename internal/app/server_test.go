package app

import (
	"context"
	"io"
	"math/big"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	gogrpc "google.golang.org/grpc"

	enginerpc "github.com/quillhash/entropy-engine/internal/api/rpc"
	"github.com/quillhash/entropy-engine/internal/chain"
	"github.com/quillhash/entropy-engine/internal/engine"
	platformgrpc "github.com/quillhash/entropy-engine/internal/platform/grpc"
	"github.com/quillhash/entropy-engine/internal/platform/metrics"
	"github.com/quillhash/entropy-engine/internal/telemetry"
)

func startTestServer(t *testing.T, healthAddr string) *Server {
	t.Helper()

	deployer := common.HexToAddress("0x00000000000000000000000000000000000000dd")
	provider := &chain.FixedProvider{Snapshot: chain.Context{
		Timestamp:   1700000000,
		BlockRandom: common.HexToHash("0x6d6978206469676573740000000000000000000000000000000000000000beef"),
		BlockNumber: 123456,
		ChainID:     *uint256.NewInt(1),
	}}
	eng, err := engine.New(context.Background(), provider, nil, deployer)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	registry := prometheus.NewRegistry()
	service := enginerpc.NewRandomnessService(
		eng,
		telemetry.NewEmitter(nil),
		metrics.NewEngine(registry),
		enginerpc.Placement{Deployer: deployer, CodeHash: common.HexToHash("0xc0")},
		deployer,
	)

	server, err := New(Options{
		Addr:       "127.0.0.1:0",
		HealthAddr: healthAddr,
		Service:    service,
		Registry:   registry,
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("serve: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("server did not stop in time")
		}
	})
	return server
}

func TestServerServesRandomNumbers(t *testing.T) {
	server := startTestServer(t, "")

	client, err := gethrpc.Dial("http://" + server.Addr())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	var value hexutil.Big
	err = client.CallContext(context.Background(), &value, "engine_getRandomNumber",
		hexutil.Bytes("strong caller payload, 32 bytes!"))
	if err != nil {
		t.Fatalf("call getRandomNumber: %v", err)
	}
	if (*big.Int)(&value).Sign() == 0 {
		t.Fatal("expected a nonzero value")
	}

	var nonce hexutil.Big
	if err := client.CallContext(context.Background(), &nonce, "engine_getCurrentNonce"); err != nil {
		t.Fatalf("call getCurrentNonce: %v", err)
	}
	if (*big.Int)(&nonce).Uint64() != 1 {
		t.Fatalf("expected nonce 1, got %s", (*big.Int)(&nonce))
	}
}

func TestServerCallerHeader(t *testing.T) {
	server := startTestServer(t, "")
	url := "http://" + server.Addr()
	payload := hexutil.Bytes("byte-identical payload for both!")

	callAs := func(caller string) *big.Int {
		opts := []gethrpc.ClientOption{}
		if caller != "" {
			opts = append(opts, gethrpc.WithHeader("X-Engine-Caller", caller))
		}
		client, err := gethrpc.DialOptions(context.Background(), url, opts...)
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		defer client.Close()

		var value hexutil.Big
		if err := client.CallContext(context.Background(), &value, "engine_getRandomNumber", payload); err != nil {
			t.Fatalf("call as %q: %v", caller, err)
		}
		return (*big.Int)(&value)
	}

	first := callAs("0x00000000000000000000000000000000000000aa")
	second := callAs("0x00000000000000000000000000000000000000bb")
	if first.Cmp(second) == 0 {
		t.Fatal("expected different header callers to produce different values")
	}
}

func TestServerReturnsValidationErrorCodes(t *testing.T) {
	server := startTestServer(t, "")

	client, err := gethrpc.Dial("http://" + server.Addr())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	var value hexutil.Big
	err = client.CallContext(context.Background(), &value, "engine_getRandomInRange",
		hexutil.Bytes("payload"), (*hexutil.Big)(big.NewInt(10)), (*hexutil.Big)(big.NewInt(5)))
	if err == nil {
		t.Fatal("expected an inverted range to fail")
	}
	rpcErr, ok := err.(gethrpc.Error)
	if !ok {
		t.Fatalf("expected a JSON-RPC error, got %T: %v", err, err)
	}
	if rpcErr.ErrorCode() != -38101 {
		t.Fatalf("expected error code -38101, got %d", rpcErr.ErrorCode())
	}

	var values []*hexutil.Big
	err = client.CallContext(context.Background(), &values, "engine_getMultipleRandomNumbers",
		hexutil.Bytes("payload"), hexutil.Uint64(101))
	if err == nil {
		t.Fatal("expected an oversized batch to fail")
	}
	rpcErr, ok = err.(gethrpc.Error)
	if !ok {
		t.Fatalf("expected a JSON-RPC error, got %T: %v", err, err)
	}
	if rpcErr.ErrorCode() != -38103 {
		t.Fatalf("expected error code -38103, got %d", rpcErr.ErrorCode())
	}
}

func TestServerHTTPEndpoints(t *testing.T) {
	server := startTestServer(t, "")
	base := "http://" + server.Addr()

	response, err := http.Get(base + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from healthz, got %d", response.StatusCode)
	}

	metricsResponse, err := http.Get(base + "/metrics")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer metricsResponse.Body.Close()
	body, err := io.ReadAll(metricsResponse.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if metricsResponse.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from metrics, got %d", metricsResponse.StatusCode)
	}
	if !strings.Contains(string(body), "entropy_engine") {
		t.Fatal("expected engine metrics in the exposition")
	}
}

func TestServerHealthService(t *testing.T) {
	server := startTestServer(t, "127.0.0.1:0")
	if server.HealthAddr() == "" {
		t.Fatal("expected a health listener address")
	}

	conn, err := gogrpc.NewClient(server.HealthAddr(), platformgrpc.DefaultClientDialOptions()...)
	if err != nil {
		t.Fatalf("dial health: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := platformgrpc.WaitForHealth(ctx, conn, HealthServiceName, t.Logf); err != nil {
		t.Fatalf("wait for health: %v", err)
	}
}

func TestServerRequiresService(t *testing.T) {
	if _, err := New(Options{Addr: "127.0.0.1:0"}); err == nil {
		t.Fatal("expected error without a service")
	}
}
