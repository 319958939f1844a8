package app

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/trufnetwork/waterjudge/cmd/version"
	"github.com/trufnetwork/waterjudge/internal/attest"
	"github.com/trufnetwork/waterjudge/internal/config"
	"github.com/trufnetwork/waterjudge/internal/judge"
	"github.com/trufnetwork/waterjudge/internal/metrics"
	"github.com/trufnetwork/waterjudge/internal/server"
)

// RootCmd creates the waterjudged root command with its subcommands.
func RootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "waterjudged",
		Short:         "Water quality judge with signed attestations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(version.NewVersionCmd())
	return cmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the judge HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := zap.L()

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			signer, err := deriveSigner(cfg)
			if err != nil {
				return err
			}
			defer signer.Zero()
			logger.Info("judge key derived", zap.String("address", signer.Address()))

			engine, err := judge.NewChatEngine(judge.ChatEngineOpts{
				URL:     cfg.EngineURL,
				APIKey:  cfg.EngineAPIKey,
				Model:   cfg.EngineModel,
				Timeout: cfg.EngineTimeout,
				Logger:  logger.Named("engine"),
			})
			if err != nil {
				return err
			}

			recorder := metrics.NewRecorder(logger.Named("metrics"))
			srv := server.New(cfg, server.Deps{
				Producer: judge.NewProducer(engine, logger.Named("producer"), recorder),
				Attestor: attest.NewAttestor(signer, logger.Named("attestor")),
				Verifier: attest.NewVerifier(logger.Named("verifier")),
				Signer:   signer,
				Recorder: recorder,
			}, logger.Named("server"))

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			group, ctx := errgroup.WithContext(ctx)
			group.Go(func() error { return srv.Run(ctx) })
			return group.Wait()
		},
	}
}

// deriveSigner builds the process-lifetime signing key from whichever secret
// is configured. A raw private key wins over a mnemonic when both are set.
func deriveSigner(cfg *config.Config) (*attest.JudgeSigner, error) {
	if cfg.PrivateKeyHex != "" {
		return attest.NewSignerFromHex(cfg.PrivateKeyHex)
	}
	return attest.NewSignerFromMnemonic(cfg.Mnemonic, cfg.Passphrase)
}
