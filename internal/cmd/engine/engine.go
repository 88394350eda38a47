// Package engine parses engine command flags and starts the API runtime.
package engine

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus"

	enginerpc "github.com/quillhash/entropy-engine/internal/api/rpc"
	"github.com/quillhash/entropy-engine/internal/app"
	"github.com/quillhash/entropy-engine/internal/chain"
	enginecore "github.com/quillhash/entropy-engine/internal/engine"
	entrypoint "github.com/quillhash/entropy-engine/internal/platform/cmd"
	"github.com/quillhash/entropy-engine/internal/platform/metrics"
	bboltstore "github.com/quillhash/entropy-engine/internal/storage/bbolt"
	sqlitestore "github.com/quillhash/entropy-engine/internal/storage/sqlite"
	"github.com/quillhash/entropy-engine/internal/telemetry"
)

// Config holds engine command configuration.
type Config struct {
	Addr       string `env:"ENTROPY_ENGINE_ADDR" envDefault:":8545"`
	HealthAddr string `env:"ENTROPY_ENGINE_HEALTH_ADDR" envDefault:":8546"`
	DataDir    string `env:"ENTROPY_ENGINE_DATA_DIR" envDefault:"data"`
	NodeURL    string `env:"ENTROPY_ENGINE_NODE_URL"`
	ChainID    uint64 `env:"ENTROPY_ENGINE_CHAIN_ID" envDefault:"1337"`
	Deployer   string `env:"ENTROPY_ENGINE_DEPLOYER"`
	CodeHash   string `env:"ENTROPY_ENGINE_CODE_HASH"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The engine API listen address")
	fs.StringVar(&cfg.HealthAddr, "health-addr", cfg.HealthAddr, "The gRPC health listen address (empty disables)")
	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "Directory for persistent engine state")
	fs.StringVar(&cfg.NodeURL, "node-url", cfg.NodeURL, "Chain node RPC URL (empty runs the local context provider)")
	fs.Uint64Var(&cfg.ChainID, "chain-id", cfg.ChainID, "Chain identifier for the local context provider")
	fs.StringVar(&cfg.Deployer, "deployer", cfg.Deployer, "Deployer address seeding the entropy pool")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the engine API service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceEngine, func(ctx context.Context) error {
		return run(ctx, cfg)
	})
}

func run(ctx context.Context, cfg Config) error {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	deployer := common.HexToAddress(cfg.Deployer)

	provider, closeProvider, err := newProvider(ctx, cfg, deployer)
	if err != nil {
		return err
	}
	defer closeProvider()

	stateStore, err := bboltstore.Open(filepath.Join(cfg.DataDir, "engine-state.db"))
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	defer func() {
		if err := stateStore.Close(); err != nil {
			log.Printf("close state store: %v", err)
		}
	}()

	auditStore, err := sqlitestore.Open(filepath.Join(cfg.DataDir, "engine-audit.db"))
	if err != nil {
		return fmt.Errorf("open audit store: %w", err)
	}
	defer func() {
		if err := auditStore.Close(); err != nil {
			log.Printf("close audit store: %v", err)
		}
	}()

	eng, err := enginecore.New(ctx, provider, stateStore, deployer)
	if err != nil {
		return fmt.Errorf("initialize engine: %w", err)
	}

	registry := prometheus.NewRegistry()
	service := enginerpc.NewRandomnessService(
		eng,
		telemetry.NewEmitter(auditStore),
		metrics.NewEngine(registry),
		enginerpc.Placement{Deployer: deployer, CodeHash: codeHash(cfg)},
		deployer,
	)

	server, err := app.New(app.Options{
		Addr:       cfg.Addr,
		HealthAddr: cfg.HealthAddr,
		Service:    service,
		Registry:   registry,
	})
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// newProvider picks the node-backed provider when a node URL is configured
// and the synthetic local provider otherwise.
func newProvider(ctx context.Context, cfg Config, account common.Address) (chain.Provider, func(), error) {
	if strings.TrimSpace(cfg.NodeURL) != "" {
		node, err := chain.NewNodeProvider(ctx, cfg.NodeURL, account)
		if err != nil {
			return nil, nil, err
		}
		return node, node.Close, nil
	}
	return chain.NewLocalProvider(cfg.ChainID), func() {}, nil
}

// codeHash resolves the placement code hash, defaulting to the hash of the
// version tag when no deployed artifact hash is configured.
func codeHash(cfg Config) common.Hash {
	value := strings.TrimSpace(cfg.CodeHash)
	if value != "" {
		return common.HexToHash(value)
	}
	return crypto.Keccak256Hash([]byte(chain.PlacementSaltTag))
}
