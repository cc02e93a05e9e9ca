package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	s3blob "github.com/alanyoungcy/epochkeeper/internal/blob/s3"
	"github.com/alanyoungcy/epochkeeper/internal/cache/redis"
	"github.com/alanyoungcy/epochkeeper/internal/config"
	"github.com/alanyoungcy/epochkeeper/internal/crypto"
	"github.com/alanyoungcy/epochkeeper/internal/domain"
	"github.com/alanyoungcy/epochkeeper/internal/notify"
	"github.com/alanyoungcy/epochkeeper/internal/platform/evm"
	"github.com/alanyoungcy/epochkeeper/internal/retry"
	"github.com/alanyoungcy/epochkeeper/internal/server/handler"
	"github.com/alanyoungcy/epochkeeper/internal/service"
	"github.com/alanyoungcy/epochkeeper/internal/store/postgres"
	"github.com/alanyoungcy/epochkeeper/internal/telemetry"
)

// Dependencies bundles everything the modes need. It is constructed by Wire
// and torn down by the returned cleanup function.
type Dependencies struct {
	Account  common.Address
	Decimals uint8

	// Chain
	Client    *evm.Client
	Gateway   *evm.Gateway
	Submitter *evm.Submitter
	Retry     *retry.Executor

	// Positions
	Registry *service.PositionRegistry
	Values   *service.ValueAggregator

	// Optional backends; nil when disabled.
	LedgerStore domain.EpochLedgerStore
	Receipts    domain.ReceiptStore
	Locks       domain.LockManager
	Bus         domain.StatusBus
	Archiver    domain.ReportArchiver

	Notifier *notify.Notifier
	Metrics  *telemetry.Metrics
	Checks   map[string]handler.Checker
}

// Wire constructs every dependency from cfg and returns them together with a
// cleanup function to call on shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{
		Account:  common.HexToAddress(cfg.Wallet.Address),
		Decimals: uint8(cfg.Contracts.Decimals),
		Retry:    retry.New(cfg.Engine.RetryDelay.Duration, logger),
		Metrics:  telemetry.New(),
		Checks:   make(map[string]handler.Checker),
	}

	// --- Chain ---
	client, err := evm.Dial(ctx, cfg.Chain.Endpoint(), cfg.Chain.ChainID, logger)
	if err != nil {
		return fail(fmt.Errorf("wire: %w", err))
	}
	closers = append(closers, client.Close)
	deps.Client = client
	deps.Checks["rpc"] = func(ctx context.Context) error {
		_, err := client.BlockNumber(ctx)
		return err
	}

	deps.Gateway = evm.NewGateway(client, evm.Contracts{
		Staking:      common.HexToAddress(cfg.Contracts.Staking),
		StakedToken:  common.HexToAddress(cfg.Contracts.StakedToken),
		RedeemHelper: common.HexToAddress(cfg.Contracts.RedeemHelper),
	}, deps.Decimals, logger)

	signer, err := loadSigner(cfg, deps.Account, logger)
	if err != nil {
		return fail(err)
	}
	deps.Submitter = evm.NewSubmitter(client, signer, client.ChainIDValue(),
		common.HexToAddress(cfg.Contracts.RedeemHelper), logger)

	// --- Positions ---
	deps.Registry = service.NewPositionRegistry(deps.Gateway, deps.Retry, logger)
	if err := deps.Registry.Discover(ctx, cfg.Engine.MaxBonds, parseAddresses(cfg.Engine.SupplementalBonds)); err != nil {
		return fail(fmt.Errorf("wire: discover positions: %w", err))
	}
	deps.Values = service.NewValueAggregator(deps.Gateway, deps.Retry, deps.Decimals, logger)

	backend := strings.ToLower(cfg.Ledger.Backend)

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled {
		pg, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pg.Close)

		if cfg.Postgres.RunMigrations {
			if err := pg.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}

		deps.Receipts = postgres.NewReceiptStore(pg.Pool())
		if backend == "postgres" {
			deps.LedgerStore = postgres.NewEpochLedgerStore(pg.Pool())
		}
		deps.Checks["postgres"] = pg.Ping
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		rc, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = rc.Close() })

		if backend == "redis" {
			deps.LedgerStore = redis.NewEpochLedgerStore(rc)
		}
		if cfg.Redis.RedeemLock {
			deps.Locks = redis.NewLockManager(rc)
		}
		if cfg.Redis.PublishStatus {
			deps.Bus = redis.NewStatusBus(rc)
		}
		deps.Checks["redis"] = rc.Ping
	}

	// --- S3 ---
	if cfg.S3.Enabled {
		s3c, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		deps.Archiver = s3blob.NewReportArchiver(s3blob.NewWriter(s3c), cfg.S3.Prefix, logger)
		deps.Checks["s3"] = s3c.Health
	}

	// --- Notifications ---
	deps.Notifier = notify.NewNotifier(
		notify.Senders(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID, cfg.Notify.DiscordWebhookURL),
		cfg.Notify.Events,
		logger,
	)

	return deps, cleanup, nil
}

// loadSigner resolves the configured key. Monitor mode tolerates a missing
// key; run mode does not. A key that does not belong to account is rejected.
func loadSigner(cfg *config.Config, account common.Address, logger *slog.Logger) (evm.Signer, error) {
	s, err := crypto.LoadSigner(crypto.KeyConfig{
		RawPrivateKey:    cfg.Wallet.PrivateKey,
		EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
		KeystoreDir:      cfg.Wallet.KeystoreDir,
		KeyPassword:      cfg.Wallet.KeyPassword,
	}, logger)
	if errors.Is(err, domain.ErrNoSigner) && isMonitor(cfg.Mode) {
		logger.Info("no signing key configured, submissions disabled")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("wire: signer: %w", err)
	}
	created := false
	if ks, ok := s.(*crypto.KeystoreSigner); ok {
		created = ks.Created()
	}
	if err := checkSigner(s.Address(), account, created); err != nil {
		return nil, err
	}
	return s, nil
}

// checkSigner rejects a key for another account. A freshly created keystore
// account cannot match yet, so it gets ErrNewAccount carrying its address.
func checkSigner(signer, account common.Address, created bool) error {
	if signer == account {
		return nil
	}
	if created {
		return fmt.Errorf("wire: %w: set wallet.address to %s, fund it and restart", domain.ErrNewAccount, signer.Hex())
	}
	return fmt.Errorf("wire: signing key belongs to %s, wallet.address is %s", signer.Hex(), account.Hex())
}

// parseAddresses converts validated hex strings, skipping blanks.
func parseAddresses(raw []string) []common.Address {
	out := make([]common.Address, 0, len(raw))
	for _, r := range raw {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, common.HexToAddress(r))
		}
	}
	return out
}

func isMonitor(mode string) bool {
	return strings.EqualFold(mode, "monitor")
}
