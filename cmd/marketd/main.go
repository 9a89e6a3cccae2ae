package main

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"time"

	"marketd/config"
	"marketd/core/events"
	"marketd/native/market"
	"marketd/native/reputation"
	"marketd/observability/logging"
	"marketd/observability/metrics"
	"marketd/rpc"
	"marketd/state"
	"marketd/storage"
)

// nativeBackendID is the reserved ledger identity backing the native
// settlement currency. It is not a BackendId from the marketplace's point of
// view and never appears in the whitelist.
const nativeBackendID = "native"

func devAddress(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func resolveAddress(value string, fallback [20]byte) ([20]byte, error) {
	if strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	return config.ParseAddress(value)
}

func openDatabase(cfg *config.Config) (storage.Database, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.StorageBackend)) {
	case "memory":
		return storage.NewMemDB(), nil
	case "leveldb":
		return storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	default:
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, err
		}
		return storage.NewBoltDB(filepath.Join(cfg.DataDir, "state.db"))
	}
}

func main() {
	configPath := flag.String("config", "./config.toml", "path to the marketd config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Setup("marketd", "", logging.Options{}).Error("failed to load config", "path", *configPath, "err", err)
		os.Exit(1)
	}
	log := logging.Setup("marketd", cfg.Env, logging.Options{
		FilePath:   cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})

	admin, err := resolveAddress(cfg.AdminAddress, devAddress(0x01))
	if err != nil {
		log.Error("invalid admin address", "err", err)
		os.Exit(1)
	}
	custody, err := resolveAddress(cfg.CustodyAddress, devAddress(0x02))
	if err != nil {
		log.Error("invalid custody address", "err", err)
		os.Exit(1)
	}
	feeRecipient, err := resolveAddress(cfg.FeeRecipient, devAddress(0x03))
	if err != nil {
		log.Error("invalid fee recipient", "err", err)
		os.Exit(1)
	}

	db, err := openDatabase(cfg)
	if err != nil {
		log.Error("failed to open state database", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	manager := state.NewManager(db)

	recorder := events.NewRecorder()
	emitter := metrics.NewEmitter(events.NewMulti(recorder))

	repLedger := reputation.NewLedger(manager)
	repLedger.SetEmitter(emitter)

	registry := market.NewBackendRegistry()
	for _, backend := range cfg.AssetBackends {
		if err := registry.RegisterAsset(backend, state.NewAssetLedger(manager, backend)); err != nil {
			log.Error("failed to register asset backend", "backend", backend, "err", err)
			os.Exit(1)
		}
	}
	for _, backend := range cfg.ValueBackends {
		if err := registry.RegisterValue(backend, state.NewValueLedger(manager, backend)); err != nil {
			log.Error("failed to register value backend", "backend", backend, "err", err)
			os.Exit(1)
		}
	}

	engine := market.NewEngine()
	engine.SetState(manager)
	engine.SetEmitter(emitter)
	engine.SetRegistry(registry)
	engine.SetNativeValue(state.NewValueLedger(manager, nativeBackendID))
	engine.SetReputation(repLedger)
	engine.SetAdmin(admin)
	engine.SetCustody(custody)
	// The standalone daemon has no consensus clock; heights tick once per
	// second from the unix epoch so expiries stay monotonic across restarts.
	engine.SetHeightFn(func() uint64 { return uint64(time.Now().Unix()) })

	if err := engine.SeedFeePolicy(market.FeePolicy{RateBps: cfg.FeeRateBps, Recipient: feeRecipient}); err != nil {
		log.Error("failed to seed fee policy", "err", err)
		os.Exit(1)
	}
	for _, backend := range append(append([]string(nil), cfg.AssetBackends...), cfg.ValueBackends...) {
		if engine.IsWhitelisted(backend) {
			continue
		}
		if err := engine.SetWhitelisted(admin, backend, true); err != nil {
			log.Error("failed to whitelist backend", "backend", backend, "err", err)
			os.Exit(1)
		}
	}

	server := rpc.NewServer(engine, repLedger, recorder, log)
	if err := server.Start(cfg.RPCAddress); err != nil {
		log.Error("rpc server stopped", "err", err)
		os.Exit(1)
	}
}
