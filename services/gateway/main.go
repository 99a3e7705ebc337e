// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/AleutianAI/AleutianSearch/pkg/config"
	"github.com/AleutianAI/AleutianSearch/services/gateway/observability"
	"github.com/AleutianAI/AleutianSearch/services/gateway/routes"
	"github.com/AleutianAI/AleutianSearch/services/gateway/search"
	"github.com/AleutianAI/AleutianSearch/services/gateway/store"
	"github.com/AleutianAI/AleutianSearch/services/pipelines"
	"github.com/AleutianAI/AleutianSearch/services/searxng"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "aleutian-otel-collector:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("search-gateway")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

// buildRegistry wires the built-in focus modes. The four retrieval modes are
// one meta search pipeline with different SearXNG engine sets.
func buildRegistry(client *searxng.Client, measure string) *search.Registry {
	registry := search.NewRegistry()
	registry.Register("webSearch", pipelines.NewMetaSearch(client, "webSearch",
		searxng.SearchOptions{}, measure))
	registry.Register("academicSearch", pipelines.NewMetaSearch(client, "academicSearch",
		searxng.SearchOptions{Engines: []string{"arxiv", "google scholar", "pubmed"}}, measure))
	registry.Register("youtubeSearch", pipelines.NewMetaSearch(client, "youtubeSearch",
		searxng.SearchOptions{Engines: []string{"youtube"}}, measure))
	registry.Register("redditSearch", pipelines.NewMetaSearch(client, "redditSearch",
		searxng.SearchOptions{Engines: []string{"reddit"}}, measure))
	registry.Register("writingAssistant", pipelines.NewWritingAssistant())
	return registry
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	configPath := os.Getenv("GATEWAY_CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfgStore, err := config.NewStore(configPath)
	if err != nil {
		log.Fatalf("failed to load config from %s: %v", configPath, err)
	}
	cfg := cfgStore.Snapshot()

	// Reload snapshots when the config file changes on disk. Sessions that
	// already resolved their models are unaffected.
	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	go func() {
		if err := cfgStore.Watch(watchCtx); err != nil {
			slog.Warn("Config watcher stopped", "error", err)
		}
	}()

	chats, err := store.Open(cfg.DataDir, logger)
	if err != nil {
		log.Fatalf("failed to open chat store at %s: %v", cfg.DataDir, err)
	}
	defer chats.Close()

	metrics := observability.InitMetrics()

	registry := buildRegistry(searxng.NewClient(cfg.SearxngAPIURL), cfg.SimilarityMeasure)
	slog.Info("Registered focus modes", "modes", registry.FocusModes())

	router := gin.Default()
	router.Use(otelgin.Middleware("search-gateway"))

	routes.SetupRoutes(router, cfgStore, registry, chats, metrics)

	port := strconv.Itoa(cfg.Port)
	if envPort := os.Getenv("GATEWAY_PORT"); envPort != "" {
		port = envPort
	}
	log.Println("Starting the search gateway on port ", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
