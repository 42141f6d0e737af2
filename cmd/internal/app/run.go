package app

import (
	"context"
	"os/signal"
	"syscall"
)

// Run is the CLI entrypoint used by cmd/warden.
// It returns an error instead of calling os.Exit to keep defers effective and lint clean.
func Run() error {
	envFile := EnvString("WARDEN_ENV_FILE", ".env")
	loaded, envErr := LoadEnvFile(envFile)

	cfg := LoadConfig()
	log := NewLogger(cfg.LogLevel, cfg.LogFormat)

	if envErr != nil {
		log.Error("config.env_file.fail", "path", envFile, "err", envErr)
		return envErr
	}
	if loaded {
		log.Info("config.env_file.loaded", "path", envFile)
	}

	a, err := New(cfg, log)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return a.Run(ctx)
}
