// Package bootstrap wires the orchestrator's components together: storage,
// oracle, quote engine, risk controller, per-chain executors, the webhook
// and settlement workers, and the HTTP server. cmd/orchestrator/main.go is
// a thin wrapper around this package.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/chigozirigeorge/omnixec-sub000/internal/config"
	"github.com/chigozirigeorge/omnixec-sub000/internal/domain"
	"github.com/chigozirigeorge/omnixec-sub000/internal/execution"
	"github.com/chigozirigeorge/omnixec-sub000/internal/execution/near"
	"github.com/chigozirigeorge/omnixec-sub000/internal/execution/solana"
	"github.com/chigozirigeorge/omnixec-sub000/internal/execution/stellar"
	"github.com/chigozirigeorge/omnixec-sub000/internal/expiry"
	"github.com/chigozirigeorge/omnixec-sub000/internal/httpapi"
	"github.com/chigozirigeorge/omnixec-sub000/internal/logging"
	"github.com/chigozirigeorge/omnixec-sub000/internal/metrics"
	"github.com/chigozirigeorge/omnixec-sub000/internal/oracle"
	"github.com/chigozirigeorge/omnixec-sub000/internal/platform/database"
	"github.com/chigozirigeorge/omnixec-sub000/internal/platform/migrations"
	"github.com/chigozirigeorge/omnixec-sub000/internal/quote"
	"github.com/chigozirigeorge/omnixec-sub000/internal/risk"
	"github.com/chigozirigeorge/omnixec-sub000/internal/settlement"
	"github.com/chigozirigeorge/omnixec-sub000/internal/storage"
	"github.com/chigozirigeorge/omnixec-sub000/internal/storage/memory"
	"github.com/chigozirigeorge/omnixec-sub000/internal/storage/postgres"
	"github.com/chigozirigeorge/omnixec-sub000/internal/system"
	"github.com/chigozirigeorge/omnixec-sub000/internal/webhook"
)

// Application bundles every constructed component and the lifecycle
// manager that starts and stops them.
type Application struct {
	Config  *config.Config
	DB      *sql.DB
	Ledger  storage.Ledger
	Manager *system.Manager
	Log     *logging.Logger

	Engine    *quote.Engine
	Risk      *risk.Controller
	Router    *execution.Router
	Webhook   *webhook.Ingestor
	RetryLoop *webhook.Loop
}

// New constructs every component from cfg and registers the background
// workers and HTTP server with a system.Manager, but does not start them.
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	log := logging.New(logging.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePrefix: cfg.Logging.FilePrefix,
	})

	ledger, db, err := openLedger(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	metrics.Init()

	priceOracle := buildOracle(cfg, log)

	profiles := cfg.ChainProfiles()
	allowlist := cfg.Allowlist()

	engine := quote.New(ledger, priceOracle, profiles, allowlist, cfg.Quote, log)
	riskCtl := risk.New(ledger, cfg.Risk, log)

	router, err := buildRouter(cfg, log)
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, err
	}

	coordinator := execution.NewCoordinator(router, riskCtl, ledger, log)
	retryLoop := webhook.NewLoop(coordinator, riskCtl, ledger, cfg.Retry, log)
	ingestor := webhook.NewIngestor(engine, ledger, retryLoop, log)

	sweeper := expiry.New(ledger, 10*time.Second, log)
	aggregator := settlement.New(ledger, router, cfg.Settlement, log)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := httpapi.NewServer(addr, httpapi.Deps{
		Engine:    engine,
		Ledger:    ledger,
		Webhook:   ingestor,
		RetryLoop: retryLoop,
		Metrics:   metrics.Global(),
		Log:       log,
	})

	manager := system.NewManager(log)
	for _, svc := range []system.Service{sweeper, aggregator, server} {
		if err := manager.Register(svc); err != nil {
			if db != nil {
				db.Close()
			}
			return nil, err
		}
	}

	return &Application{
		Config:    cfg,
		DB:        db,
		Ledger:    ledger,
		Manager:   manager,
		Log:       log,
		Engine:    engine,
		Risk:      riskCtl,
		Router:    router,
		Webhook:   ingestor,
		RetryLoop: retryLoop,
	}, nil
}

// Start brings up every registered background worker and the HTTP server.
func (a *Application) Start(ctx context.Context) error {
	return a.Manager.Start(ctx)
}

// Stop drains every started component in reverse order and closes the
// database connection, if one was opened.
func (a *Application) Stop(ctx context.Context) error {
	err := a.Manager.Stop(ctx)
	if a.DB != nil {
		a.DB.Close()
	}
	return err
}

func openLedger(ctx context.Context, cfg *config.Config, log *logging.Logger) (storage.Ledger, *sql.DB, error) {
	if cfg.Database.DSN == "" {
		log.Warn("no database DSN configured; using in-memory storage")
		return memory.New(), nil, nil
	}

	db, err := database.Open(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: open database: %w", err)
	}
	if cfg.Database.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	}
	if cfg.Database.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	}
	if cfg.Database.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Second)
	}

	if cfg.Database.MigrateOnStart {
		if err := migrations.Apply(ctx, db); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("bootstrap: apply migrations: %w", err)
		}
	}

	return postgres.New(db), db, nil
}

func buildOracle(cfg *config.Config, log *logging.Logger) oracle.Oracle {
	if cfg.Oracle.SourceURL == "" {
		log.Warn("no oracle source configured; using static development rates")
		return oracle.NewStaticOracle(map[string]oracle.Price{})
	}

	source := oracle.NewHTTPSource(cfg.Oracle.SourceURL)

	var rdb *redis.Client
	if cfg.Oracle.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Oracle.RedisAddr})
	} else {
		log.Warn("no oracle cache address configured; caching disabled")
	}

	ttl := time.Duration(cfg.Oracle.CacheTTLSeconds) * time.Second
	return oracle.NewCachedOracle(source, rdb, ttl, log)
}

func buildRouter(cfg *config.Config, log *logging.Logger) (*execution.Router, error) {
	router := execution.NewRouter(log)
	profiles := cfg.ChainProfiles()

	if cfg.Treasury.SolanaPrivateKey != "" {
		solProfile := profiles[domain.ChainSolana]
		ex, err := solana.New(solana.Config{
			RPCURL:             solProfile.RPCURL,
			TreasuryPrivateKey: cfg.Treasury.SolanaPrivateKey,
			MaxComputeUnits:    solProfile.MaxComputeUnits,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: solana executor: %w", err)
		}
		router.Register(ex)
	} else {
		log.Warn("no solana treasury key configured; solana executor disabled")
	}

	if cfg.Treasury.StellarSecretSeed != "" {
		stellarProfile := profiles[domain.ChainStellar]
		ex, err := stellar.New(stellar.Config{
			HorizonURL:         stellarProfile.RPCURL,
			NetworkPassphrase:  stellarProfile.Network,
			TreasurySecretSeed: cfg.Treasury.StellarSecretSeed,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: stellar executor: %w", err)
		}
		router.Register(ex)
	} else {
		log.Warn("no stellar treasury seed configured; stellar executor disabled")
	}

	if cfg.Treasury.NearSecretKey != "" {
		nearProfile := profiles[domain.ChainNear]
		ex, err := near.New(near.Config{
			RPCURL:            nearProfile.RPCURL,
			NetworkID:         nearProfile.Network,
			TreasuryAccountID: cfg.Treasury.NearAccountID,
			TreasurySecretKey: cfg.Treasury.NearSecretKey,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: near executor: %w", err)
		}
		router.Register(ex)
	} else {
		log.Warn("no near treasury key configured; near executor disabled")
	}

	return router, nil
}
