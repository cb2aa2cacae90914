// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"akwa/internal/pkg/config"
	"akwa/internal/pkg/nacos"
	"akwa/internal/pkg/tracing"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// AppCtx 传递给业务方注册路由时的上下文
type AppCtx struct {
	Mux *http.ServeMux
}

// AppInfo 包含了启动服务所需的全部信息。配置显式传入，
// 不依赖任何进程级单例。
type AppInfo struct {
	ServiceName      string
	Port             int
	Config           *config.Config
	RegisterHandlers func(appCtx AppCtx)
	// OnShutdown 在 HTTP 服务停止后、进程退出前按注册顺序执行，
	// 用于停掉后台 Worker、关闭连接等清理动作
	OnShutdown []func(ctx context.Context)
}

// StartService 封装了通用的启动和优雅关停逻辑。
// 阻塞直到收到退出信号并完成清理。
func StartService(info AppInfo) {
	// 1. 配置 zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zlog.Logger = zlog.With().Str("service", info.ServiceName).Logger()

	// 2. Tracer
	tp, err := tracing.InitTracerProvider(info.ServiceName, info.Config.Infra.Jaeger.Endpoint)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to initialize tracer provider")
	}

	// 3. 服务注册（可选）
	var namingClient *nacos.Client
	var registeredIP string
	if info.Config.Infra.Nacos.Enabled {
		namingClient, err = nacos.NewClient(
			info.Config.Infra.Nacos.Addrs,
			info.Config.Infra.Nacos.Namespace,
			info.Config.Infra.Nacos.Group,
		)
		if err != nil {
			zlog.Fatal().Err(err).Msg("failed to initialize nacos client")
		}
		registeredIP, err = getOutboundIP()
		if err != nil {
			zlog.Fatal().Err(err).Msg("failed to get outbound IP address")
		}
		if err := namingClient.Register(info.ServiceName, registeredIP, info.Port); err != nil {
			zlog.Fatal().Err(err).Msg("failed to register service with nacos")
		}
	}

	// 4. HTTP Server
	mux := http.NewServeMux()
	if info.RegisterHandlers != nil {
		info.RegisterHandlers(AppCtx{Mux: mux})
	}
	server := &http.Server{Addr: ":" + strconv.Itoa(info.Port), Handler: mux}
	go func() {
		zlog.Info().Int("port", info.Port).Msg("service listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Str("addr", server.Addr).Msg("could not listen")
		}
	}()

	// 5. 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("shutting down service")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 6. 清理顺序: 先摘流量，再停 HTTP，再停后台任务，最后 flush trace
	if namingClient != nil {
		if err := namingClient.Deregister(info.ServiceName, registeredIP, info.Port); err != nil {
			zlog.Error().Err(err).Msg("error deregistering from nacos")
		}
	}

	if err := server.Shutdown(ctx); err != nil {
		zlog.Error().Err(err).Msg("error shutting down http server")
	}

	for _, fn := range info.OnShutdown {
		fn(ctx)
	}

	if err := tp.Shutdown(ctx); err != nil {
		zlog.Error().Err(err).Msg("error shutting down tracer provider")
	}

	zlog.Info().Msg("service gracefully shut down")
}

// getOutboundIP 获取本机对外 IP，用于服务注册
func getOutboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
