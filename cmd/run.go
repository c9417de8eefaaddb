package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"sidestake/config"
	"sidestake/database"
	"sidestake/events"
	"sidestake/metrics"
	"sidestake/repository"
	"sidestake/resolver"
	"sidestake/service"

	log "github.com/sirupsen/logrus"
)

// Run initializes and starts the application
func Run(ctx context.Context) error {
	cfg := config.Get()

	if cfg.Environment == "development" {
		log.SetLevel(log.DebugLevel)
	}
	log.WithField("environment", cfg.Environment).Info("Starting sidestake")

	db, err := database.NewConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	log.Info("Database connection established")

	eventBus := events.NewBus()
	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus, cfg.StartingBalance)

	matchStore := repository.NewMatchRepository(db)
	var providers []resolver.Provider
	if cfg.OddsAPIURL != "" {
		providers = append(providers, resolver.NewOddsAPIProvider(cfg.OddsAPIURL, cfg.OddsAPIKey))
	} else {
		log.Warn("ODDS_API_URL not set, primary odds provider disabled")
	}
	if cfg.ScoreFeedURL != "" {
		providers = append(providers, resolver.NewScoreFeedProvider(cfg.ScoreFeedURL))
	} else {
		log.Warn("SCORE_FEED_URL not set, secondary score feed disabled")
	}
	providers = append(providers, resolver.NewStaticProvider())

	matchCache := resolver.NewCache(resolver.Config{
		Store:           matchStore,
		Providers:       providers,
		MaxAge:          cfg.MatchMaxAge,
		ProviderTimeout: cfg.ProviderTimeout,
		Bus:             eventBus,
	})

	escrow := service.NewEscrowCoordinator()
	betService := service.NewBetService(uowFactory, escrow, matchCache)

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		metricsSrv = metrics.Serve(cfg.MetricsAddr)
		log.WithField("addr", cfg.MetricsAddr).Info("Metrics server listening")
	}

	// Settlement loop: periodically settle active bets whose match has
	// completed. User-facing settle calls remain available in parallel;
	// the per-bet lock keeps them from colliding.
	go settleLoop(ctx, betService, cfg.SettlePoll)

	log.Info("sidestake is running")
	<-ctx.Done()

	log.Info("Shutting down")
	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	return nil
}

func settleLoop(ctx context.Context, bets service.BetService, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			settled, err := bets.SettleDue(ctx)
			if err != nil {
				log.WithField("error", err).Warn("Settlement sweep failed")
				continue
			}
			if settled > 0 {
				log.WithField("count", settled).Info("Settled due bets")
			}
		}
	}
}
