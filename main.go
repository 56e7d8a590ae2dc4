package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/common/version"
	"go.uber.org/zap"

	"github.com/sepich/layerproxy/pkg/config"
	"github.com/sepich/layerproxy/pkg/mux"
	"github.com/sepich/layerproxy/pkg/model"
	"github.com/sepich/layerproxy/pkg/registry"
	"github.com/sepich/layerproxy/pkg/service"
)

type JsonableRequest struct {
	ID         string
	Method     string
	Proto      string
	Header     http.Header
	Host       string
	RemoteAddr string
	RequestURI string
}

var logger *zap.Logger

func main() {
	cfg, showVersion, err := config.Load(os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if showVersion {
		fmt.Println(version.Print("layerproxy"))
		return
	}

	if cfg.Debug {
		logger = zap.Must(zap.NewDevelopment())
	} else {
		logger = zap.Must(zap.NewProduction())
	}
	zap.ReplaceGlobals(logger)
	defer logger.Sync()

	logger.Info("Starting layerproxy", zap.String("version", version.Info()), zap.Bool("basic-auth", cfg.Username != ""))

	client := registry.NewClient(registry.NewHTTPClient(cfg.Timeout), cfg.Username, cfg.Password)
	client.TokenTimeout = cfg.Timeout
	router := mux.NewRouter(&service.ProxyService{
		Client: client,
	})

	everything := func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set(model.HeaderRequestID, id)
		logRequest(id, r)
		router.ServeHTTP(w, r)
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           http.HandlerFunc(everything),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	idle := make(chan struct{})
	go func() {
		defer close(idle)
		<-ctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Shutdown incomplete", zap.Error(err))
		}
	}()

	logger.Info("Listening over HTTP", zap.String("address", cfg.Listen))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("could not listen", zap.Error(err))
	}
	<-idle
}

func logRequest(id string, r *http.Request) {
	// http.Request contains methods which the JSON marshaller doesn't like.
	jsonRequest := JsonableRequest{
		ID:         id,
		Method:     r.Method,
		Proto:      r.Proto,
		Header:     r.Header,
		Host:       r.Host,
		RemoteAddr: r.RemoteAddr,
		RequestURI: r.RequestURI,
	}
	logger.Debug("Received HTTP request", zap.Any("request", jsonRequest))
}
