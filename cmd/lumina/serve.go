package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/digkill/lumina/internal/api"
	"github.com/digkill/lumina/internal/config"
	"github.com/digkill/lumina/internal/identity"
	"github.com/digkill/lumina/internal/imagegen"
	"github.com/digkill/lumina/internal/kv"
	"github.com/digkill/lumina/internal/notify"
	"github.com/digkill/lumina/internal/repository"
	"github.com/digkill/lumina/internal/service"
	"github.com/digkill/lumina/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Example: `lumina serve --config config.yaml
lumina serve -c /etc/lumina/config.yaml --log-level debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	if err := cfg.ValidateServe(); err != nil {
		return err
	}
	ctx := cmd.Context()

	store, err := kv.Open(ctx, cfg.Store, log)
	if err != nil {
		return err
	}
	defer store.Close()

	users := repository.NewUserRepository(store)
	history := repository.NewHistoryRepository(store, cfg.History.Limit)
	plans := repository.NewPlanRepository(store)

	planService := service.NewPlanService(log, plans)
	if err := planService.EnsureDefaultPlans(ctx); err != nil {
		return fmt.Errorf("ensure default plans: %w", err)
	}

	provider, err := newIdentityProvider(cfg, log)
	if err != nil {
		return err
	}

	var federated identity.Federated
	if cfg.Auth.OIDC.Enabled {
		oidcProvider, err := identity.NewOIDC(ctx, cfg.Auth.OIDC)
		if err != nil {
			return fmt.Errorf("init oidc: %w", err)
		}
		federated = oidcProvider
	}

	var uploader *storage.Uploader
	if cfg.S3.Enabled() {
		uploader, err = storage.NewUploader(cfg.S3)
		if err != nil {
			return fmt.Errorf("storage uploader: %w", err)
		}
	}

	generator, closeGenerator, err := newGenerator(ctx, cfg, uploader, log)
	if err != nil {
		return err
	}
	defer closeGenerator()

	var notifier service.Notifier = service.NopNotifier{}
	if cfg.Telegram.Enabled() {
		botAPI, err := notify.Connect(cfg.Telegram.BotToken)
		if err != nil {
			return fmt.Errorf("telegram bot: %w", err)
		}
		tg := notify.NewTelegram(botAPI, cfg.Telegram.AdminChatID, log)
		defer tg.Close()
		notifier = tg
	}

	sessions := service.NewSessionService(cfg.Auth, log, provider, federated, users, notifier)
	ledger := service.NewLedgerService(log, users, plans, notifier, cfg.Checkout.Simulated)

	// A nil *storage.Uploader must not reach the interface.
	var imageUploader service.ImageUploader
	if uploader != nil {
		imageUploader = uploader
	}

	server := api.NewServer(cfg.Server, log, api.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.JWTTTL), api.Services{
		Sessions:   sessions,
		Ledger:     ledger,
		Plans:      planService,
		Stats:      service.NewStatsService(users, history),
		Generation: service.NewGenerationService(log, ledger, history, generator, imageUploader, cfg.Generator.RequestTimeout),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx)
	})
	log.Info("lumina started",
		"store", cfg.Store.Driver,
		"identity", cfg.Auth.Provider,
		"generator", cfg.Generator.Provider,
		"federated", federated != nil,
		"s3", cfg.S3.Enabled(),
		"simulated_checkout", cfg.Checkout.Simulated,
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server stopped", "err", err)
		return err
	}
	return nil
}

func newIdentityProvider(cfg *config.Config, log *slog.Logger) (identity.Provider, error) {
	switch cfg.Auth.Provider {
	case config.IdentityGoTrue:
		return identity.NewGoTrue(cfg.Auth.GoTrue), nil
	case config.IdentityMemory:
		verifyURL := strings.TrimRight(cfg.Server.PublicURL, "/") + "/auth/verify"
		return identity.NewMemory().WithMailLog(log, verifyURL), nil
	default:
		return nil, fmt.Errorf("unsupported identity provider: %q", cfg.Auth.Provider)
	}
}

func newGenerator(ctx context.Context, cfg *config.Config, uploader *storage.Uploader, log *slog.Logger) (imagegen.Generator, func(), error) {
	switch cfg.Generator.Provider {
	case config.GeneratorKIE:
		var stager imagegen.Stager
		if uploader != nil {
			stager = uploader
		}
		return imagegen.NewKIE(cfg.Generator.KIE, cfg.Generator.RequestTimeout, stager, log), func() {}, nil
	case config.GeneratorGemini:
		gemini, err := imagegen.NewGemini(ctx, cfg.Generator.Gemini.APIKey, cfg.Generator.Gemini.Model, log)
		if err != nil {
			return nil, nil, fmt.Errorf("init gemini: %w", err)
		}
		return gemini, func() {
			if err := gemini.Close(); err != nil {
				log.Warn("close gemini client", "err", err)
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported generator provider: %q", cfg.Generator.Provider)
	}
}
