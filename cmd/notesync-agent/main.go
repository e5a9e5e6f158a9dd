package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/featherdesk/notesync/internal/auth"
	"github.com/featherdesk/notesync/internal/config"
	"github.com/featherdesk/notesync/internal/identity"
	"github.com/featherdesk/notesync/internal/localstore"
	"github.com/featherdesk/notesync/internal/logging"
	"github.com/featherdesk/notesync/internal/note"
	"github.com/featherdesk/notesync/internal/remotestore"
	"github.com/featherdesk/notesync/internal/server"
	"github.com/featherdesk/notesync/internal/syncer"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "notesync-agent",
		Short: "NoteSync local sync agent",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address for the host command surface")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "Local SQLite database path")
	cmd.PersistentFlags().String("remote-dsn", defaults.GetString("remote.dsn"), "Remote Postgres DSN")
	cmd.PersistentFlags().Int("sync-interval", defaults.GetInt("sync.interval_s"), "Periodic sync interval in seconds")
	cmd.PersistentFlags().String("session-issuer", defaults.GetString("auth.issuer"), "Expected session token issuer")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Session signing secret (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "remote.dsn", "remote-dsn")
	bindFlag(cmd, "sync.interval_s", "sync-interval")
	bindFlag(cmd, "auth.issuer", "session-issuer")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runAgent(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	local, err := localstore.OpenSQLite(appConfig.LocalDatabasePath, logger)
	if err != nil {
		return err
	}
	defer local.Close() //nolint:errcheck

	remote, err := remotestore.NewPostgres(ctx, appConfig.RemoteDSN)
	if err != nil {
		return err
	}
	defer remote.Close()

	idProvider := note.NewUUIDProvider()
	normalizer, err := identity.NewNormalizer(identity.NormalizerConfig{
		IDProvider: idProvider,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	engine, err := syncer.NewEngine(syncer.EngineConfig{
		Local:      local,
		Remote:     remote,
		Normalizer: normalizer,
		IDProvider: idProvider,
		Logger:     logger,
		Interval:   appConfig.SyncInterval,
	})
	if err != nil {
		return err
	}

	sessionValidator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(appConfig.SessionSigningKey),
		Issuer:        appConfig.SessionIssuer,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Sessions: sessionValidator,
		Engine:   engine,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engineCtx, cancelEngine := context.WithCancel(signalCtx)
	defer cancelEngine()
	go engine.Run(engineCtx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("agent starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
