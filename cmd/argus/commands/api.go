package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/argus/backend/internal/api"
	"github.com/wonny/argus/backend/internal/api/handlers"
	"github.com/wonny/argus/backend/internal/realtime"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

Endpoints:
  GET  /health              - Health check
  GET  /metrics             - Prometheus metrics
  GET  /api/weights/latest  - 최신 목표 비중
  GET  /api/weights/{date}  - 날짜별 목표 비중
  GET  /api/runs/latest     - 최신 실행 요약
  GET  /api/runs/{date}     - 날짜별 실행 요약
  POST /api/runs            - 파이프라인 실행 트리거
  GET  /api/scores/{date}   - 날짜별 결합 스코어
  GET  /ws/weights          - 비중 업데이트 스트림 (websocket)

Example:
  go run ./cmd/argus api
  go run ./cmd/argus api --port 8091`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: PORT 환경변수)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Argus API Server ===")

	ctx := cmd.Context()

	// 1. Initialize runtime
	rt, err := initRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	if apiPort != "" {
		rt.cfg.Port = apiPort
	}

	// 2. Start the websocket hub
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()

	hub := realtime.NewHub(rt.log, rt.metrics)
	go hub.Run(hubCtx)

	// 3. Create handler and router
	pipelineHandler := handlers.NewPipelineHandler(
		rt.runRepo,
		rt.weightsRepo,
		rt.orchestrator,
		rt.cache,
		hub,
		rt.strategy.Meta.StrategyID,
		rt.log,
	)
	router := api.NewRouter(pipelineHandler, hub, rt.metrics, rt.log)

	// 4. Start server with graceful shutdown
	server := api.New(rt.cfg, rt.log, router)

	go func() {
		if err := server.Start(); err != nil {
			rt.log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", rt.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	rt.log.Info("Shutting down server...")

	// 허브를 먼저 내려 웹소켓 연결을 닫는다 (hijacked 연결은 Shutdown이 기다려주지 않음)
	stopHub()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	rt.log.Info("Server stopped")
	return nil
}
