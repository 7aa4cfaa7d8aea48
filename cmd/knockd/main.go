package main

import (
	"context"
	"crypto/sha256"
	"crypto/x509"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/veylan/knock/internal/agent"
	"github.com/veylan/knock/internal/creator/repository"
	"github.com/veylan/knock/internal/creator/service"
	"github.com/veylan/knock/internal/joiner"
	joinerrepo "github.com/veylan/knock/internal/joiner/repository"
	"github.com/veylan/knock/internal/shared/infra"
	"github.com/veylan/knock/internal/shared/log"
	"github.com/veylan/knock/internal/transport/relay"
)

func main() {
	configPath := flag.String("config", "", "path to the knockd config file")
	trustRelay := flag.Bool("trust-relay", false, "pin the relay's key on first contact")
	flag.Parse()

	logger := log.New("knockd")

	cfg, err := agent.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		logger.Fatal().Err(err).Msg("failed to create data directory")
	}

	identity, err := agent.EnsureIdentity(cfg.IdentityPath(), &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load identity")
	}

	db, err := infra.OpenDB(cfg.DatabasePath())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conversations, err := repository.NewBunConversationRepository(ctx, db)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init conversation repository")
	}
	redemptions, err := repository.NewBunRedemptionRepository(ctx, db)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init redemption repository")
	}
	joinLog, err := repository.NewBunJoinLogRepository(ctx, db)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init join log repository")
	}

	pins := &relay.TOMLPinStore{FilePath: cfg.PinsPath()}
	if _, err := pins.Get(cfg.Relay.ID); err != nil {
		if err := pins.Set(cfg.Relay.ID, relay.RelayPin{
			ID:      cfg.Relay.ID,
			Address: cfg.Relay.Address,
		}); err != nil {
			logger.Fatal().Err(err).Msg("failed to seed relay pin")
		}
	}

	transportLogger := log.New("relay")
	transport := &relay.Transport{
		Identity: identity,
		Pins:     pins,
		Logger:   &transportLogger,
	}
	if *trustRelay {
		transport.UserTrustCertificate = func(cert *x509.Certificate) bool {
			sum := sha256.Sum256(cert.Raw)
			transportLogger.Warn().
				Str("fingerprint", fmt.Sprintf("%x", sum)).
				Msg("pinning unverified relay certificate")
			return true
		}
	}
	if err := transport.Dial(ctx, cfg.Relay.ID); err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to relay")
	}
	defer transport.Close()

	creatorLogger := log.New("creator")
	conversationService := &service.ConversationService{
		Identity:      identity,
		Transport:     transport,
		Conversations: conversations,
		Redemptions:   redemptions,
		JoinLog:       joinLog,
		TXRunner:      infra.NewBunTransactionRunner(db),
		Logger:        &creatorLogger,
	}

	joinerLogger := log.New("joiner")
	j := &joiner.Joiner{
		Identity:      identity,
		Transport:     transport,
		Conversations: &joinerrepo.TOMLConversationStore{FilePath: cfg.ConversationsPath()},
		Logger:        &joinerLogger,
	}

	adminLogger := log.New("admin")
	a := &agent.Agent{
		Admin: agent.AdminConfig{
			Addr:   cfg.AdminAddr,
			Logger: &adminLogger,
		},
		Conversations: conversationService,
		Joiner:        j,
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return a.ServeAdmin(ctx) })
	group.Go(func() error { return a.Run(ctx) })
	if err := group.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("agent stopped")
	}
}
