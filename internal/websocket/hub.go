// Package websocket 把抽号事件推送给监控客户端
package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wfunc/lotto-draw/internal/lotto"
	"go.uber.org/zap"
)

// Config Hub 配置
type Config struct {
	PingInterval time.Duration
	WriteTimeout time.Duration
	SendBuffer   int
}

func (c Config) withDefaults() Config {
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 64
	}
	return c
}

// Message WebSocket消息
type Message struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// 消息类型
const (
	MessageTypeConnected = "connected"
	MessageTypePing      = "ping"
	MessageTypePong      = "pong"
	MessageTypeError     = "error"
	MessageTypeStatus    = "status"
	MessageTypeEvent     = "event"
	MessageTypeSerial    = "serial"
)

// StatusFunc 返回当前状态快照，客户端请求 status 时调用
type StatusFunc func() interface{}

// Hub WebSocket连接管理中心
type Hub struct {
	cfg    Config
	logger *zap.Logger

	clients   map[string]*Client
	clientsMu sync.RWMutex

	events     chan lotto.Event
	broadcast  chan *Message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	status StatusFunc

	dropped atomic.Uint64
}

// NewHub 创建Hub
func NewHub(cfg Config, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	return &Hub{
		cfg:        cfg,
		logger:     logger,
		clients:    make(map[string]*Client),
		events:     make(chan lotto.Event, 256),
		broadcast:  make(chan *Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// SetStatusProvider 设置状态快照来源，应在 Run 之前调用
func (h *Hub) SetStatusProvider(fn StatusFunc) {
	h.status = fn
}

// Observe 作为控制器的事件观察者，运行在中断上下文，只做非阻塞入队
func (h *Hub) Observe(ev lotto.Event) {
	select {
	case h.events <- ev:
	default:
		h.dropped.Add(1)
	}
}

// Run 运行Hub，ctx 取消后关闭全部连接
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		h.closeAll()
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case ev := <-h.events:
			h.broadcastMessage(NewMessage(MessageTypeEvent, ev))

		case message := <-h.broadcast:
			h.broadcastMessage(message)

		case <-ticker.C:
			h.broadcastMessage(NewMessage(MessageTypePing, nil))
		}
	}
}

// Done Run 退出后关闭
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// Register 注册客户端
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Conn.Close()
	}
}

// Unregister 注销客户端
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast 广播消息，队列满时丢弃
func (h *Hub) Broadcast(message *Message) {
	select {
	case h.broadcast <- message:
	default:
		h.dropped.Add(1)
		h.logger.Warn("广播队列已满", zap.String("type", message.Type))
	}
}

// ClientCount 在线客户端数
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// Dropped 因队列满丢弃的消息数
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

func (h *Hub) registerClient(client *Client) {
	h.clientsMu.Lock()
	h.clients[client.ID] = client
	h.clientsMu.Unlock()

	h.logger.Info("WebSocket客户端连接", zap.String("client_id", client.ID))

	h.SendToClient(client.ID, NewMessage(MessageTypeConnected, map[string]string{"client_id": client.ID}))
	if h.status != nil {
		h.SendToClient(client.ID, NewMessage(MessageTypeStatus, h.status()))
	}
}

func (h *Hub) unregisterClient(client *Client) {
	h.clientsMu.Lock()
	if _, ok := h.clients[client.ID]; ok {
		delete(h.clients, client.ID)
		close(client.Send)
	}
	h.clientsMu.Unlock()

	h.logger.Info("WebSocket客户端断开", zap.String("client_id", client.ID))
}

func (h *Hub) closeAll() {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	for id, client := range h.clients {
		delete(h.clients, id)
		close(client.Send)
	}
}

// broadcastMessage 广播消息
func (h *Hub) broadcastMessage(message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("序列化消息失败", zap.Error(err))
		return
	}

	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.Send <- data:
		default:
			h.dropped.Add(1)
			h.logger.Warn("客户端发送缓冲区满", zap.String("client_id", client.ID))
		}
	}
}

// SendToClient 发送消息给指定客户端
func (h *Hub) SendToClient(clientID string, message *Message) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()

	client, ok := h.clients[clientID]
	if !ok {
		return ErrClientNotFound
	}

	select {
	case client.Send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// NewMessage 创建消息，v 序列化为 data
func NewMessage(t string, v interface{}) *Message {
	msg := &Message{Type: t, Timestamp: time.Now().Unix()}
	if v != nil {
		data, err := json.Marshal(v)
		if err == nil {
			msg.Data = data
		}
	}
	return msg
}
