package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/atutic/TicTacToe/internal/config"
	"github.com/atutic/TicTacToe/internal/match"
	"github.com/atutic/TicTacToe/internal/registry"
	"github.com/atutic/TicTacToe/internal/repository"
	"github.com/atutic/TicTacToe/internal/repository/storage"
	"github.com/atutic/TicTacToe/internal/server/tcp"
	"github.com/atutic/TicTacToe/internal/tournament"
	"github.com/atutic/TicTacToe/transport/rest"
)

var ErrAddrNotFound = errors.New("redis address string is empty")

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	redisAddrString := conf.Redis.GetRedisAddr()
	if redisAddrString == "" {
		return ErrAddrNotFound
	}

	redisStorage, err := storage.NewRedisStorage(ctx, redisAddrString)
	if err != nil {
		return fmt.Errorf("could not connect to redis storage: %w", err)
	}

	defer func() {
		if err = redisStorage.Connection.Close(); err != nil {
			log.Error("could not close redis storage", "error", err)
		}
	}()

	scoreRepo := repository.NewScoreRepository(redisStorage.Connection)
	moveLogRepo := repository.NewMoveLogRepository(redisStorage.Connection)
	historyRepo := repository.NewHistoryRepository(redisStorage.Connection)

	regConf := registry.Config{
		Match: match.Config{
			TurnTimeout: time.Duration(conf.Game.DefaultTimerSec) * time.Second,
			RemoveDelay: time.Duration(conf.Game.SessionLingerSec) * time.Second,
		},
		Tournament: tournament.Config{
			TurnTimeout: time.Duration(conf.Tournament.TurnTimerSec) * time.Second,
			RoundPause:  time.Duration(conf.Tournament.RoundPauseSec) * time.Second,
			DrawAdvance: strings.ToUpper(conf.Tournament.DrawAdvances),
		},
	}

	reg := registry.New(ctx, logger, scoreRepo, moveLogRepo, historyRepo, regConf)

	// run HTTP server
	httpErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		if httpErr := rest.Start(conf.HTTPPort, scoreRepo); httpErr != nil {
			log.Error("HTTP server error", "error", httpErr)
			httpErrCh <- httpErr
		}
	}()

	// run game TCP server
	tcpErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting TCP server", "port", conf.TCPPort)
		tcpServer := tcp.New(logger, reg, conf.Game.DefaultTimerSec)
		if tcpErr := tcpServer.Start(ctx, conf.TCPPort); tcpErr != nil {
			log.Error("TCP server error", "error", tcpErr)
			tcpErrCh <- tcpErr
		}
	}()

	select {
	case err = <-httpErrCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case err = <-tcpErrCh:
		return fmt.Errorf("TCP server error: %w", err)
	case <-ctx.Done():
		log.Info("Application context canceled, shutting down")
		return nil
	}
}
