package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 50 * time.Second
	clientSendSize = 32
)

// Message mensaje enviado a los clientes
type Message struct {
	Type      string      `json:"type"`
	Topic     string      `json:"topic"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// Client conexión suscrita a un tópico
type Client struct {
	ID    string
	topic string
	conn  *websocket.Conn
	send  chan []byte
}

type outbound struct {
	topic string
	data  []byte
}

// Hub reparte mensajes por tópico. Un solo goroutine (Run) es dueño del
// conjunto de clientes.
type Hub struct {
	clients    map[string]map[*Client]bool
	broadcast  chan outbound
	register   chan *Client
	unregister chan *Client
	quit       chan struct{}
	stopOnce   sync.Once
	mutex      sync.RWMutex
	logger     *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		broadcast:  make(chan outbound, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		logger:     logger,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			if h.clients[client.topic] == nil {
				h.clients[client.topic] = make(map[*Client]bool)
			}
			h.clients[client.topic][client] = true
			total := len(h.clients[client.topic])
			h.mutex.Unlock()
			h.logger.Debug("Cliente WebSocket conectado",
				zap.String("client_id", client.ID),
				zap.String("topic", client.topic),
				zap.Int("total", total),
			)

		case client := <-h.unregister:
			h.remove(client)
			h.logger.Debug("Cliente WebSocket desconectado", zap.String("client_id", client.ID), zap.String("topic", client.topic))

		case msg := <-h.broadcast:
			h.mutex.RLock()
			var slow []*Client
			for client := range h.clients[msg.topic] {
				select {
				case client.send <- msg.data:
				default:
					slow = append(slow, client)
				}
			}
			h.mutex.RUnlock()
			for _, client := range slow {
				h.logger.Warn("Cliente WebSocket lento, desconectando", zap.String("client_id", client.ID))
				h.remove(client)
			}

		case <-h.quit:
			h.mutex.Lock()
			for topic, clients := range h.clients {
				for client := range clients {
					close(client.send)
				}
				delete(h.clients, topic)
			}
			h.mutex.Unlock()
			return
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	clients, ok := h.clients[client.topic]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.clients, client.topic)
	}
}

// Stop termina Run y cierra todas las conexiones
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
}

// ClientCount clientes suscritos a un tópico
func (h *Hub) ClientCount(topic string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients[topic])
}

// Publish envía un mensaje a los suscriptores del tópico. No bloquea
// después de Stop.
func (h *Hub) Publish(topic, msgType string, data interface{}) {
	msg := Message{
		Type:      msgType,
		Topic:     topic,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Error serializando mensaje", zap.String("type", msgType), zap.Error(err))
		return
	}

	select {
	case h.broadcast <- outbound{topic: topic, data: payload}:
	case <-h.quit:
	}
}

// Serve suscribe la conexión al tópico y bloquea hasta que se cierra
func (h *Hub) Serve(conn *websocket.Conn, topic string) {
	client := &Client{
		ID:    uuid.New().String(),
		topic: topic,
		conn:  conn,
		send:  make(chan []byte, clientSendSize),
	}

	select {
	case h.register <- client:
	case <-h.quit:
		_ = conn.Close()
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writePump(client)
	}()

	h.readPump(client)

	select {
	case h.unregister <- client:
	case <-h.quit:
	}
	<-done
}

// readPump descarta lo que envía el cliente; solo sirve para detectar el cierre
func (h *Hub) readPump(client *Client) {
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = client.conn.Close()
	}()

	for {
		select {
		case data, ok := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Debug("Error enviando mensaje WebSocket", zap.String("client_id", client.ID), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
