package application

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Sweeper 周期性地运行过期清扫。与请求处理解耦，
// ctx 取消时在当前一轮结束后退出，不会留下
// 只改了数量没写日志的半截事务。
type Sweeper struct {
	svc      *ReservationService
	interval time.Duration
}

// NewSweeper 创建清扫器
func NewSweeper(svc *ReservationService, interval time.Duration) *Sweeper {
	return &Sweeper{svc: svc, interval: interval}
}

// Run 阻塞运行直到 ctx 取消
func (s *Sweeper) Run(ctx context.Context) {
	log.Info().Dur("interval", s.interval).Msg("reservation sweeper started")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			expired, err := s.svc.ExpireStaleReservations(ctx)
			if err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("expiry sweep failed")
			}
			if expired > 0 {
				log.Info().Int("expired", expired).Msg("expired stale reservations")
			}
		case <-ctx.Done():
			log.Info().Msg("reservation sweeper shutting down")
			return
		}
	}
}
