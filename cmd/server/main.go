package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sdkmath "cosmossdk.io/math"
	"golang.org/x/sync/errgroup"

	"caravel/internal/auth"
	"caravel/internal/authz"
	authzstore "caravel/internal/authz/store"
	"caravel/internal/bank"
	jwttoken "caravel/internal/jwt_token"
	"caravel/internal/oracle"
	oraclemetrics "caravel/internal/oracle/metrics"
	oraclemodels "caravel/internal/oracle/models"
	"caravel/internal/oracle/mirror"
	oraclestore "caravel/internal/oracle/store"
	"caravel/internal/platform/config"
	"caravel/internal/platform/httpserver"
	"caravel/internal/platform/kafka"
	"caravel/internal/platform/logger"
	"caravel/internal/platform/metrics"
	platformpg "caravel/internal/platform/postgres"
	platformredis "caravel/internal/platform/redis"
	"caravel/internal/pricing"
	"caravel/internal/referral"
	referralstore "caravel/internal/referral/store"
	httptransport "caravel/internal/transport/http"
	"caravel/internal/vault"
	vaultmetrics "caravel/internal/vault/metrics"
	vaultmodels "caravel/internal/vault/models"
	vaultstore "caravel/internal/vault/store"
	"caravel/pkg/domain"
	dErrors "caravel/pkg/domain-errors"
	"caravel/pkg/platform/audit"
	auditmemory "caravel/pkg/platform/audit/store/memory"
	auditpg "caravel/pkg/platform/audit/store/postgres"
	auditworker "caravel/pkg/platform/audit/worker"
	txcontext "caravel/pkg/platform/tx"
)

// main wires stores, services, and transport, seeds bootstrap state, and runs
// the HTTP server plus the audit outbox relay until a signal arrives.
// Business logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("caravel exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	assetDenom, err := domain.ParseDenom(cfg.Asset.Denom)
	if err != nil {
		return err
	}
	shareDenom, err := domain.ParseDenom(cfg.Vault.ShareDenom)
	if err != nil {
		return err
	}
	feedID, err := domain.ParseFeedID(cfg.Oracle.FeedID)
	if err != nil {
		return err
	}

	// Stores: Postgres when configured, in-memory otherwise. The runner and
	// the audit store follow the same choice so every mutation commits with
	// its trail.
	var (
		db            *sql.DB
		runner        txcontext.Runner
		oracleFeeds   oraclestore.Store
		bankStore     bank.Store
		vaultState    vaultstore.Store
		referralStore referralstore.Store
		authzCaps     authzstore.Store
		auditStore    audit.Store
		auditOutbox   *auditpg.Store
	)
	if cfg.Postgres.URL != "" {
		db, err = platformpg.Open(ctx, cfg.Postgres)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := platformpg.EnsureSchema(ctx, db); err != nil {
			return err
		}
		runner = txcontext.NewSQLRunner(db)
		oracleFeeds = oraclestore.NewPostgres(db)
		bankStore = bank.NewPostgres(db)
		vaultState = vaultstore.NewPostgres(db)
		referralStore = referralstore.NewPostgres(db)
		authzCaps = authzstore.NewPostgres(db)
		auditOutbox = auditpg.New(db)
		auditStore = auditOutbox
	} else {
		log.Info("no postgres configured, using in-memory stores")
		runner = txcontext.NewMemoryRunner()
		oracleFeeds = oraclestore.NewInMemory()
		bankMem := bank.NewInMemory()
		bankStore = bankMem
		vaultState = vaultstore.NewInMemory()
		referralStore = referralstore.NewInMemory()
		authzCaps = authzstore.NewInMemory()
		auditStore = auditmemory.NewInMemoryStore()

		// Dev bootstrap: give the seeded principals assets to deposit.
		seedAmount := sdkmath.NewInt(1_000_000).Mul(pricing.AssetScale(cfg.Asset.Decimals))
		bank.SeedBalances(bankMem, assetDenom, seedAmount,
			domain.MustAddress(cfg.Roles.Admin),
			domain.MustAddress(cfg.Roles.Operator),
		)
	}

	recorder := audit.NewRecorder(auditStore, audit.WithLogger(log))

	authzSvc := authz.NewService(authzCaps, runner, recorder)
	if err := seedRoles(ctx, authzSvc, cfg.Roles); err != nil {
		return err
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	var navMirror *mirror.Mirror
	if redisClient != nil {
		defer redisClient.Close()
		navMirror = mirror.New(redisClient.Client)
	}

	oracleSvc := oracle.NewService(oracleFeeds, authzSvc, runner, recorder,
		oracle.WithLogger(log),
		oracle.WithMetrics(oraclemetrics.New()),
		oracle.WithMirror(navMirror),
	)
	admin := domain.MustAddress(cfg.Roles.Admin)
	if err := ensureFeed(ctx, oracleSvc, admin, feedID, oraclemodels.Config{
		MaxStaleness: cfg.Oracle.MaxStaleness,
		MaxMoveBps:   cfg.Oracle.MaxMoveBps,
	}); err != nil {
		return err
	}

	ledger := bank.NewLedger(bankStore,
		bank.WithAuthority(shareDenom, vaultmodels.ModuleAddress),
		bank.WithLogger(log),
	)
	converter := pricing.NewConverter(oracleSvc, ledger, shareDenom, cfg.Asset.Decimals)
	referralSvc := referral.NewService(referralStore, recorder)

	vaultSvc := vault.NewService(vault.Deps{
		Store:      vaultState,
		Ledger:     ledger,
		Pricer:     converter,
		NAV:        oracleSvc,
		Referrals:  referralSvc,
		Authz:      authzSvc,
		Tx:         runner,
		Audit:      recorder,
		AssetDenom: assetDenom,
		ShareDenom: shareDenom,
	}, vault.WithLogger(log), vault.WithMetrics(vaultmetrics.New()))
	if err := vaultSvc.Init(ctx, vaultmodels.Config{
		MaxPriceAge:        cfg.Vault.MaxPriceAge,
		EpochLength:        cfg.Vault.EpochLength,
		ExitFeeBps:         cfg.Vault.ExitFeeBps,
		LiquidityRecipient: domain.MustAddress(cfg.Vault.LiquidityRecipient),
	}, feedID, time.Now()); err != nil {
		return err
	}

	jwtService := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, "caravel", "caravel")
	authHandler, err := tokenHandler(cfg.Auth, jwtService, log)
	if err != nil {
		return err
	}
	router := httptransport.NewRouter(httptransport.Handlers{
		Oracle: oracle.NewHandler(oracleSvc, feedID, log),
		Vault:  vault.NewHandler(vaultSvc, log),
		Authz:  authz.NewHandler(authzSvc, log),
		Auth:   authHandler,
	}, httptransport.Deps{
		Logger:    log,
		Metrics:   metrics.New(),
		Validator: jwttoken.NewJWTServiceAdapter(jwtService),
		Timeout:   30 * time.Second,
	})

	srv := httpserver.New(cfg.Server.Addr, router)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("starting caravel", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if auditOutbox != nil && len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			return err
		}
		defer producer.Close()
		outbox := auditworker.NewOutbox(auditOutbox, producer, runner, log)
		group.Go(func() error {
			if err := outbox.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			// Flush whatever the last tick left behind before the producer
			// goes away.
			drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := outbox.DrainOnce(drainCtx); err != nil {
				log.Warn("final outbox drain failed", "error", err)
			}
			return nil
		})
	}

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

// tokenHandler builds the secret-for-token endpoint from the configured
// credentials. No credentials, no endpoint.
func tokenHandler(cfg config.Auth, issuer auth.TokenIssuer, log *slog.Logger) (*auth.Handler, error) {
	if len(cfg.Credentials) == 0 {
		return nil, nil
	}
	credentials := auth.Credentials{}
	for _, c := range cfg.Credentials {
		addr, err := domain.ParseAddress(c.Address)
		if err != nil {
			return nil, err
		}
		credentials[addr] = c.SecretHash
	}
	svc := auth.NewService(credentials, issuer, cfg.TokenTTL, log)
	return auth.NewHandler(svc, log), nil
}

// seedRoles installs the bootstrap capability grants from configuration.
// Idempotent, so restarts reconcile instead of failing.
func seedRoles(ctx context.Context, svc *authz.Service, roles config.Roles) error {
	seeds := authz.Seeds{}
	add := func(raw string, capability domain.Capability) error {
		if raw == "" {
			return nil
		}
		addr, err := domain.ParseAddress(raw)
		if err != nil {
			return err
		}
		seeds[addr] = append(seeds[addr], capability)
		return nil
	}
	if err := add(roles.Admin, domain.CapabilityAdmin); err != nil {
		return err
	}
	if err := add(roles.Operator, domain.CapabilityOperator); err != nil {
		return err
	}
	if err := add(roles.Guardian, domain.CapabilityGuardian); err != nil {
		return err
	}
	if err := add(roles.Reporter, domain.CapabilityReporter); err != nil {
		return err
	}
	return svc.Seed(ctx, seeds)
}

// ensureFeed creates the default feed on first boot and leaves an existing
// one untouched.
func ensureFeed(ctx context.Context, svc *oracle.Service, admin domain.Address, feedID domain.FeedID, cfg oraclemodels.Config) error {
	if _, err := svc.GetFeed(ctx, feedID); err == nil {
		return nil
	} else if !dErrors.HasCode(err, dErrors.CodeNotFound) {
		return err
	}
	_, err := svc.CreateFeed(ctx, admin, feedID, cfg)
	if err != nil && dErrors.HasCode(err, dErrors.CodeConflict) {
		return nil
	}
	return err
}
