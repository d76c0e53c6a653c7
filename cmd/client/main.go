// Package main runs the interactive g3chat client: it restores the stored
// session, listens for the OAuth redirect and drives the chat from a REPL.
package main

import (
	"bufio"
	"cmp"
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	nethttp "net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/g3chat/internal/app"
	"github.com/atinyakov/g3chat/internal/client/api"
	"github.com/atinyakov/g3chat/internal/client/storage"
	"github.com/atinyakov/g3chat/internal/config"
	"github.com/atinyakov/g3chat/internal/db"
	"github.com/atinyakov/g3chat/internal/logger"
	"github.com/atinyakov/g3chat/internal/repository"
	"github.com/atinyakov/g3chat/internal/server/handler/http"
	"github.com/atinyakov/g3chat/internal/service"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	var showVer bool
	flag.BoolVar(&showVer, "version", false, "show build version and date")

	// Parse command-line, config file and environment configuration.
	options, err := config.Parse()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if showVer {
		fmt.Printf("g3chat client\nVersion: %s\nBuild Date: %s\n", cmp.Or(version, "N/A"), cmp.Or(buildDate, "N/A"))
		return
	}

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	kv, closeKV, err := openStorage(options, zapLogger)
	if err != nil {
		zapLogger.Fatal("cannot open storage", zap.String("storage", options.Storage), zap.Error(err))
	}
	defer closeKV()

	httpClient, err := storage.NewHTTPClient(options.CAFile, options.Timeout)
	if err != nil {
		zapLogger.Fatal("failed to build HTTP client", zap.Error(err))
	}

	// Wire the backend client, the services and the controller.
	client := api.NewClient(httpClient, options.BaseURL, kv, zapLogger)
	authService := service.NewAuthService(client, kv, options.APIPrefix, zapLogger)
	chatService := service.NewChatService(client, options.APIPrefix)
	ctrl := app.NewController(authService, chatService, kv, zapLogger)
	ctrl.Bootstrap()

	// The backend redirects the browser here once Google sign-in completes.
	results := make(chan http.LoginResult, 1)
	callbackHandler := &http.CallbackHandler{Login: ctrl, Results: results, Logger: zapLogger}
	server := &nethttp.Server{
		Addr:              options.CallbackAddr,
		Handler:           http.NewRouter(callbackHandler, zapLogger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	listening := false
	ln, err := net.Listen("tcp", options.CallbackAddr)
	if err != nil {
		// Login still works by pasting the redirect URL into "callback".
		zapLogger.Warn("redirect listener unavailable", zap.String("addr", options.CallbackAddr), zap.Error(err))
	} else {
		listening = true
		zapLogger.Info("starting redirect listener", zap.String("addr", options.CallbackAddr))
		go func() {
			if err := server.Serve(ln); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
				zapLogger.Error("redirect listener stopped", zap.Error(err))
			}
		}()
	}

	sh := &shell{
		ctrl:      ctrl,
		in:        bufio.NewScanner(os.Stdin),
		out:       os.Stdout,
		results:   results,
		listening: listening,
		loginWait: loginWait,
	}
	sh.run(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(ctx)
}

// openStorage returns the key-value backend selected by options and a
// function releasing it.
func openStorage(options *config.Options, log *zap.Logger) (storage.KV, func(), error) {
	switch options.Storage {
	case config.StorageMemory:
		return storage.NewMemoryKV(), func() {}, nil
	case config.StorageSQLite, config.StoragePostgres:
		driver, dsn := db.DriverPostgres, options.DatabaseDSN
		if options.Storage == config.StorageSQLite {
			driver, dsn = db.DriverSQLite, options.StoragePath
			if err := os.MkdirAll(filepath.Dir(dsn), 0o700); err != nil {
				return nil, nil, fmt.Errorf("create storage dir: %w", err)
			}
		}
		conn, err := db.Init(driver, dsn)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewSQLKV(conn, log), func() { _ = conn.Close() }, nil
	default:
		kv := storage.NewFileKV(options.StoragePath)
		if err := kv.Load(); err != nil {
			// An unreadable document is treated as empty and replaced on the
			// next write.
			log.Warn("ignoring unreadable storage", zap.String("path", options.StoragePath), zap.Error(err))
		}
		return kv, func() {}, nil
	}
}
