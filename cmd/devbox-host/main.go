package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labring/devbox-console/internal/server"
	"github.com/labring/devbox-console/pkg/auth"
	"github.com/labring/devbox-console/pkg/config"
	"github.com/labring/devbox-console/pkg/handlers"
	"github.com/labring/devbox-console/pkg/host"
	"github.com/labring/devbox-console/pkg/logger"
	"golang.org/x/term"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if len(os.Args) > 1 && os.Args[1] == "hash-password" {
		if err := hashPassword(); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
		return
	}

	cfg := config.ParseCfg()
	logger.Init(cfg.LogLevel, cfg.LogFormat, os.Stdout)

	if err := cfg.Load(); err != nil {
		slog.Error("failed to load config", slog.String("file", cfg.ConfigFile), slog.String("error", err.Error()))
		os.Exit(1)
	}

	h := host.New(cfg.Targets, cfg.MaxStreamBytes)
	h.StartAll()

	srv, err := server.New(cfg, h)
	if err != nil {
		slog.Error("failed to create server", slog.String("error", err.Error()))
		h.Stop(shutdownTimeout)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("devbox host starting",
			slog.String("addr", cfg.Addr),
			slog.String("version", handlers.Version),
			slog.Int("targets", len(cfg.Targets)),
			slog.Int("running", h.Running()),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	slog.Info("shutting down", slog.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// upgraded websocket connections are closed by Cleanup, not Shutdown
	if err := srv.Cleanup(shutdownTimeout); err != nil {
		slog.Error("cleanup failed", slog.String("error", err.Error()))
	}
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("graceful shutdown failed", slog.String("error", err.Error()))
	}
}

// hashPassword prints an argon2id hash for the users section of the config
func hashPassword() error {
	fd := int(os.Stdin.Fd())
	var password string
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, "Password: ")
		data, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return err
		}
		password = string(data)
	} else {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if password == "" {
		return errors.New("password is empty")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}
