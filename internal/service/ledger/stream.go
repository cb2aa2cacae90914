package ledger

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// EventStream 通过 websocket 订阅账本的权限变更事件。
// 连接断开后带退避自动重连；事件推入带缓冲的 channel，
// 消费方（同步 Worker 的 inbound 循环）不会阻塞请求路径。
type EventStream struct {
	streamURL string
	events    chan PermissionEvent
}

// NewEventStream 创建事件流订阅器
func NewEventStream(streamURL string) *EventStream {
	return &EventStream{
		streamURL: streamURL,
		events:    make(chan PermissionEvent, 128),
	}
}

// Events 返回事件 channel。Run 退出后 channel 关闭。
func (s *EventStream) Events() <-chan PermissionEvent {
	return s.events
}

// Run 维持订阅直到 ctx 取消。阻塞调用，应在独立 goroutine 中运行。
func (s *EventStream) Run(ctx context.Context) {
	defer close(s.events)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.streamURL, nil)
		if err != nil {
			log.Warn().Err(err).Str("url", s.streamURL).
				Dur("retry_in", backoff).Msg("ledger event stream dial failed")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			if backoff *= 2; backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		log.Info().Str("url", s.streamURL).Msg("subscribed to ledger permission events")
		backoff = time.Second

		// ctx 取消时关掉连接，打断阻塞中的 ReadMessage
		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				_ = conn.Close()
			case <-done:
			}
		}()

		s.readLoop(ctx, conn)
		close(done)
		_ = conn.Close()
	}
}

func (s *EventStream) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				log.Warn().Err(err).Msg("ledger event stream read failed, reconnecting")
			}
			return
		}

		var event PermissionEvent
		if err := json.Unmarshal(data, &event); err != nil {
			log.Error().Err(err).Str("frame", string(data)).Msg("malformed permission event, skipping")
			continue
		}

		select {
		case s.events <- event:
		case <-ctx.Done():
			return
		}
	}
}
