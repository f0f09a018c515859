package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"trade-gateway/src/adapters"
	"trade-gateway/src/config"
	"trade-gateway/src/grpc_control"
	"trade-gateway/src/interfaces"
	"trade-gateway/src/logger"
	"trade-gateway/src/managers"
	"trade-gateway/src/models"
	"trade-gateway/src/server"
	"trade-gateway/src/session"
	"trade-gateway/src/storage"
)

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "../../config/default.yaml", "path to config file")
	flag.Parse()

	// Load config from YAML file
	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	appLogger := logger.NewLogger(cfg.LogLevel, cfg.Name)

	// Replay store
	var store interfaces.IStore
	switch cfg.Storage.DBType {
	case "postgres":
		store, err = storage.NewPostgresStore(cfg.MConfig, appLogger)
	default:
		// Default to SQLite
		store, err = storage.NewSQLiteStore(cfg.MConfig, appLogger)
	}
	if err != nil {
		appLogger.Critical("Failed to init store: %v", err)
	}
	if err := store.Initialize(); err != nil {
		appLogger.Critical("Failed to migrate store: %v", err)
	}

	// Reference data
	securities, err := managers.NewSecurityMaster(cfg.Seed.SecuritiesFile)
	if err != nil {
		appLogger.Critical("Failed to load securities: %v", err)
	}
	accounts, err := managers.NewAccountManager(cfg.Seed.AccountsFile)
	if err != nil {
		appLogger.Critical("Failed to load accounts: %v", err)
	}

	// Live state singletons
	marketdata := managers.NewMarketDataManager()
	positions := managers.NewPositionManager(cfg.Storage.StoreRoot, appLogger.Named("positions"))
	book, err := managers.NewGlobalOrderBook(store, securities, accounts, appLogger.Named("orderbook"))
	if err != nil {
		appLogger.Critical("Failed to init order book: %v", err)
	}
	connectivity := managers.NewExchangeConnectivityManager(book, positions, accounts, appLogger.Named("connectivity"))
	algos, err := managers.NewAlgoManager(store, appLogger.Named("algos"))
	if err != nil {
		appLogger.Critical("Failed to init algo manager: %v", err)
	}
	registerBuiltinAlgos(algos)

	// Exchange adapters
	for _, link := range cfg.Exchanges {
		sim := adapters.NewSimExchange(link.Name, link.MIC,
			connectivity.HandleConfirmation, appLogger.Named(link.Name))
		connectivity.RegisterAdapter(sim)
	}

	// Market data feed
	if cfg.Feed.NatsURL != "" {
		feed := adapters.NewNatsFeed(cfg.Feed, marketdata, appLogger.Named("feed"))
		if err := feed.Connect(); err != nil {
			appLogger.Warning("Feed connect failed, will retry on reconnect: %v", err)
		}
		marketdata.RegisterAdapter(feed)
	}

	deps := &session.Deps{
		Securities: securities,
		Accounts:   accounts,
		MarketData: marketdata,
		Positions:  positions,
		Exchange:   connectivity,
		Algos:      algos,
		OrderBook:  book,
		Tokens:     session.NewTokenRegistry(),
		AlgoRoot:   cfg.AlgoRoot,
		StoreRoot:  cfg.Storage.StoreRoot,
		StartTime:  time.Now().Unix(),
	}

	gateway := server.NewGateway(cfg.MConfig, deps, []server.EventHub{book, algos}, appLogger)
	deps.Server = gateway

	// gRPC health probe
	if cfg.GrpcPort > 0 {
		grpcService, err := grpc_control.NewGRPCService(cfg, appLogger.Named("grpc"))
		if err != nil {
			appLogger.Critical("Failed to init gRPC control: %v", err)
		}
		grpcService.Start()
		defer grpcService.Stop()
	}

	if err := gateway.Start(); err != nil {
		appLogger.Critical("Gateway stopped: %v", err)
	}
}

// -----------------------------------------------------------------------------

// registerBuiltinAlgos installs the strategy definitions advertised to
// clients at login.
func registerBuiltinAlgos(algos *managers.AlgoManager) {
	algos.RegisterDef(&managers.AlgoDef{
		AlgoName: "TWAP",
		Params: []models.MParamDef{
			{Name: "Security", Default: models.MParamValue{Kind: models.ParamSecurity}, Required: true},
			{Name: "ValidSeconds", Default: models.MParamValue{Kind: models.ParamInt, Int: 300}, Required: true, Min: 60, Max: 86400},
			{Name: "MinSize", Default: models.MParamValue{Kind: models.ParamInt, Int: 0}, Min: 0, Max: 10000000},
			{Name: "Aggression", Default: models.MParamValue{Kind: models.ParamString, Str: "low"}, Required: true},
		},
	})
	algos.RegisterDef(&managers.AlgoDef{
		AlgoName: "POV",
		Params: []models.MParamDef{
			{Name: "Security", Default: models.MParamValue{Kind: models.ParamSecurity}, Required: true},
			{Name: "Ratio", Default: models.MParamValue{Kind: models.ParamFloat, Float: 0.1}, Required: true, Min: 0, Max: 1, Precision: 2},
			{Name: "ValidSeconds", Default: models.MParamValue{Kind: models.ParamInt, Int: 300}, Required: true, Min: 60, Max: 86400},
		},
	})
}
