package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/nrednav/cuid2"
	"golang.org/x/sync/errgroup"
	"uk.co.dudmesh.bitlink/internal/boot"
	"uk.co.dudmesh.bitlink/internal/delivery"
	"uk.co.dudmesh.bitlink/internal/handlers"
	"uk.co.dudmesh.bitlink/internal/service/command"
	"uk.co.dudmesh.bitlink/internal/service/ingest"
	"uk.co.dudmesh.bitlink/internal/session"
	"uk.co.dudmesh.bitlink/internal/store"
	"uk.co.dudmesh.bitlink/pkg/waclient"
)

func main() {
	config, err := boot.Load()
	if err != nil {
		log.Fatalf("boot: %+v", err)
	}

	client, err := waclient.Dial(context.Background(), config.BridgeURL)
	if err != nil {
		log.Fatalf("connecting to whatsapp bridge: %+v", err)
	}
	defer client.Close()

	ledger, err := store.NewSentLog(config.DataDirectory)
	if err != nil {
		log.Fatalf("opening sent log: %+v", err)
	}
	defer ledger.Close()

	state := session.NewState()

	var channel delivery.Channel
	var queue *delivery.Queue
	if config.DeliveryMode == boot.DeliveryModePush {
		channel = delivery.NewHub(config.HubURL, config.SharedSecret, config.HubTimeout)
	} else {
		queue = delivery.NewQueue(config.QueueCapacity)
		channel = queue
	}

	ingestService := ingest.New(client, state, channel)
	commandService := command.New(client, state, ledger)

	server := echo.New()
	server.HideBanner = true
	server.Use(middleware.BodyLimit("50M"))
	server.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string {
			return cuid2.Generate()
		},
	}))
	server.Use(echoprometheus.NewMiddleware("bitlink_gateway"))
	server.Use(middleware.Recover())

	server.Logger.SetLevel(log.INFO)

	secret := handlers.RequireSecret(config.SharedSecret)

	var healthQueue handlers.MessageQueue
	if queue != nil {
		healthQueue = queue
	}
	server.GET("/health", handlers.Health(state, healthQueue))
	if queue != nil {
		server.GET("/get-messages", handlers.Messages(queue), secret)
	}
	server.POST("/send-message", handlers.SendMessage(commandService), secret)
	server.POST("/delete-message", handlers.DeleteMessage(commandService), secret)
	server.GET("/chat-info/:chatId", handlers.ChatInfo(commandService), secret)
	server.POST("/wa/sendText", handlers.SendText(commandService), secret)
	server.POST("/wa/sendMedia", handlers.SendMedia(commandService), secret)

	metrics := echo.New()
	metrics.HideBanner = true
	metrics.GET("/metrics", echoprometheus.NewHandler())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return ingestService.Run(groupCtx)
	})

	group.Go(func() error {
		if err := server.Start(fmt.Sprintf(":%d", config.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		if err := metrics.Start(fmt.Sprintf(":%d", config.MetricsPort)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt)
		defer signal.Stop(quit)

		select {
		case <-quit:
		case <-groupCtx.Done():
			return nil
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := metrics.Shutdown(shutdownCtx); err != nil {
			log.Errorf("shutting down metrics server: %+v", err)
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Errorf("shutting down server: %+v", err)
		}
		cancel()
		return nil
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("gateway: %+v", err)
	}
}
