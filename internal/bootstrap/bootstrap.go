// Package bootstrap turns a Config into a running game: ledger, payment
// verification and payouts. The API server and bqctl share it.
package bootstrap

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"baseQuestAPI/internal/chain"
	"baseQuestAPI/internal/config"
	"baseQuestAPI/internal/epoch"
	"baseQuestAPI/internal/ledger"
	"baseQuestAPI/internal/logger"
	"baseQuestAPI/internal/week"
	"baseQuestAPI/services"
)

// OpenStore connects to Postgres when DATABASE_URL is set and falls back to
// an in-memory ledger otherwise. A fresh ledger starts at the week now
// falls in.
func OpenStore(ctx context.Context, cfg *config.Config, now time.Time) (ledger.Store, error) {
	schedule := epoch.NewSchedule(cfg.LaunchTime)
	initial := week.NewState(cfg.LaunchTime, cfg.EntryFeeWei)
	initial.CurrentWeek = schedule.WeekIndexOf(now)

	if cfg.DatabaseURL == "" {
		logger.L().Warn("DATABASE_URL not set, using in-memory ledger")
		return ledger.NewMemoryStore(initial), nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := ledger.NewPostgresStore(pool)
	if err := store.Migrate(ctx, initial); err != nil {
		pool.Close()
		return nil, err
	}

	logger.L().Info("connected to postgres ledger")
	return store, nil
}

// Game is a wired game service plus the resources it holds.
type Game struct {
	Service *services.GameService
	Payouts chain.PayoutSender

	client *ethclient.Client
}

func (g *Game) Close() {
	if g.client != nil {
		g.client.Close()
	}
}

// NewGame wires payments and settlement according to cfg.
func NewGame(ctx context.Context, cfg *config.Config, store ledger.Store, clock epoch.Clock) (*Game, error) {
	log := logger.L()
	roles := services.NewRoles(cfg.Curators, cfg.Attester)
	svc := services.NewGameService(store, epoch.NewSchedule(cfg.LaunchTime), clock, roles)
	g := &Game{Service: svc}

	chainID := big.NewInt(cfg.ChainID)
	if cfg.RPCURL != "" {
		client, err := ethclient.DialContext(ctx, cfg.RPCURL)
		if err != nil {
			return nil, fmt.Errorf("failed to dial RPC: %w", err)
		}
		g.client = client
	}

	if g.client != nil && cfg.TreasuryPrivateKey != "" {
		sender, err := chain.NewEthPayoutSender(g.client, cfg.TreasuryPrivateKey, chainID)
		if err != nil {
			g.Close()
			return nil, err
		}
		if cfg.Treasury == (common.Address{}) {
			cfg.Treasury = sender.From()
		}
		g.Payouts = sender
	} else {
		log.Warn("no treasury key or RPC configured, payouts are recorded but not sent")
		g.Payouts = chain.NewRecordingPayoutSender()
	}
	svc.SetSettler(services.NewTreasuryService(g.Payouts))

	switch {
	case cfg.DevTrustedPayments || (g.client == nil && cfg.IsDev()):
		log.Warn("accepting declared payment amounts without on-chain verification")
		svc.SetPaymentVerifier(chain.TrustedVerifier{})
	case g.client != nil && cfg.Treasury != (common.Address{}):
		svc.SetPaymentVerifier(chain.NewEthVerifier(g.client, cfg.Treasury, chainID))
		log.Info("verifying entry payments on chain",
			zap.String("treasury", cfg.Treasury.Hex()),
			zap.Int64("chain_id", cfg.ChainID),
		)
	default:
		g.Close()
		return nil, fmt.Errorf("TREASURY_ADDRESS or TREASURY_PRIVATE_KEY is required to verify payments")
	}

	return g, nil
}
