// cmd/inventory-service/main.go
package main

import (
	"context"
	"time"

	"akwa/internal/pkg/bootstrap"
	"akwa/internal/pkg/config"
	"akwa/internal/pkg/httpclient"
	pkgredis "akwa/internal/pkg/redis"
	"akwa/internal/service/inventory/application"
	"akwa/internal/service/inventory/infrastructure"
	"akwa/internal/service/inventory/interfaces"
	"akwa/internal/service/inventory/port"
	"akwa/internal/service/ledger"
	"akwa/internal/service/ledgersync"
	"akwa/internal/service/permission"
	"akwa/internal/zookeeper"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
)

// main 是组装根: 加载配置，创建并组装所有依赖，启动后台 Worker，
// 最后交给 bootstrap 托管 HTTP 生命周期。
func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	tracer := otel.Tracer(cfg.App.ServiceName)

	// 1. 持久化
	db, err := infrastructure.NewDB(cfg.Infra.Mysql.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	repos := infrastructure.NewGormRepos(db)

	// 2. 账本网关客户端
	httpClient := httpclient.NewClient(tracer)
	ledgerClient := ledger.NewClient(httpClient, cfg.Ledger.BaseURL, cfg.Ledger.RequestTimeout)

	// 启动时核对本地能力枚举与账本声明，不一致直接拒绝启动
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 10*time.Second)
	if err := permission.ValidateCapabilities(startupCtx, ledgerClient); err != nil {
		cancelStartup()
		log.Fatal().Err(err).Msg("capability validation failed")
	}
	cancelStartup()

	// 3. 权限缓存
	redisClient, err := pkgredis.NewClient(cfg.Infra.Redis.Addr)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize redis client")
	}
	permCache := permission.NewCache(
		permission.NewRedisStore(redisClient),
		ledgerClient,
		cfg.Permission.CacheTTL,
		cfg.App.PermissionTimeout,
	)

	// 4. per-item 锁: 多副本部署走 ZooKeeper，否则用进程内锁
	var locker port.ItemLocker
	if cfg.Infra.Zookeeper.Enabled {
		zkConn, err := zookeeper.Connect(cfg.Infra.Zookeeper.Servers)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to zookeeper")
		}
		locker = infrastructure.NewZkItemLocker(zkConn)
	} else {
		locker = infrastructure.NewLocalItemLocker()
	}

	// 5. 告警
	ruleEngine, err := infrastructure.NewCelRuleEngine()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize rule engine")
	}
	notifier := infrastructure.NewKafkaAlertNotifier(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.AlertTopic)

	alertRules := make([]application.AlertRule, 0, len(cfg.AlertRules))
	for _, r := range cfg.AlertRules {
		alertRules = append(alertRules, application.AlertRule{
			Name: r.Name, Kind: r.Kind, Severity: r.Severity, Expr: r.Expr, Message: r.Message,
		})
	}

	// 6. 应用服务
	svc := application.NewReservationService(
		repos,
		repos.Items(),
		repos.Reservations(),
		repos.Alerts(),
		permCache,
		locker,
		ruleEngine,
		notifier,
		alertRules,
		cfg.App.ReservationTTL,
		tracer,
	)
	handler := interfaces.NewInventoryHandler(svc)
	ledgerHandler := interfaces.NewLedgerHandler(ledgerClient)

	// 7. 后台任务: 过期清扫、出站同步、入站权限事件
	bgCtx, cancelBg := context.WithCancel(context.Background())

	sweeper := application.NewSweeper(svc, cfg.App.SweepInterval)
	go sweeper.Run(bgCtx)

	worker := ledgersync.NewWorker(repos.ActionLog(), repos.Alerts(), notifier, ledgerClient, ledgersync.Options{
		Interval:    cfg.Sync.Interval,
		BatchSize:   cfg.Sync.BatchSize,
		MaxAttempts: cfg.Sync.MaxAttempts,
		BackoffBase: cfg.Sync.BackoffBase,
		BackoffMax:  cfg.Sync.BackoffMax,
	})
	go worker.Run(bgCtx)

	stream := ledger.NewEventStream(cfg.Ledger.StreamURL)
	go stream.Run(bgCtx)

	auditPublisher := ledgersync.NewKafkaAuditRecorder(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.AuditTopic)
	inbound := ledgersync.NewInbound(stream.Events(), permCache, ledgersync.MultiRecorder{
		infrastructure.NewPermissionAuditStore(db),
		auditPublisher,
	})
	go inbound.Run(bgCtx)

	// 8. HTTP 生命周期托管
	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: cfg.App.ServiceName,
		Port:        cfg.App.Port,
		Config:      cfg,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			handler.RegisterRoutes(appCtx.Mux)
			ledgerHandler.RegisterRoutes(appCtx.Mux)
			appCtx.Mux.Handle("/metrics", promhttp.Handler())
		},
		OnShutdown: []func(ctx context.Context){
			func(ctx context.Context) { cancelBg() },
			func(ctx context.Context) {
				if err := notifier.Close(); err != nil {
					log.Error().Err(err).Msg("error closing alert kafka writer")
				}
				if err := auditPublisher.Close(); err != nil {
					log.Error().Err(err).Msg("error closing audit kafka writer")
				}
			},
			func(ctx context.Context) {
				if err := redisClient.Close(); err != nil {
					log.Error().Err(err).Msg("error closing redis client")
				}
			},
		},
	})
}
