package websocket

import (
	"bytes"
	"encoding/json"
	"sync"
	"sync/atomic"

	"condor/internal/models"
	"condor/pkg/utils"
)

// Размер буфера broadcast канала.
// При переполнении новые сообщения отбрасываются (счетчик dropped)
const broadcastBufferSize = 256

// jsonBufferPool убирает аллокации при каждом Broadcast
var jsonBufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 512))
	},
}

// Hub управляет всеми активными WebSocket соединениями
//
// Назначение:
// Центральный менеджер для broadcast сообщений всем подключенным клиентам.
// Обеспечивает real-time обновления дашборда без необходимости polling.
//
// Функции:
// - Регистрация новых WebSocket клиентов
// - Отмена регистрации отключенных клиентов
// - Broadcast сообщений всем активным клиентам
// - Очистка медленных клиентов (не успевающих читать)
// - Потокобезопасная работа с клиентами (sync.RWMutex)
//
// Типы сообщений:
// - structureUpdate: обновление состояния структуры
// - notification: новое уведомление
// - equityUpdate: обновление капитала аккаунта
// - statsUpdate: обновление статистики
// - indexPrice: живая индексная цена из WebSocket биржи
//
// Использование:
// 1. Создать hub: hub := NewHub()
// 2. Запустить в горутине: go hub.Run()
// 3. Отправлять сообщения: hub.BroadcastStructureUpdate(condor)
type Hub struct {
	// Зарегистрированные клиенты
	clients map[*Client]bool

	// Broadcast канал для отправки сообщений всем клиентам
	broadcast chan []byte

	// Регистрация нового клиента
	register chan *Client

	// Отмена регистрации клиента
	unregister chan *Client

	// Сигнал остановки главного цикла
	done chan struct{}

	// Счетчик отброшенных сообщений (broadcast канал переполнен)
	dropped int64

	// Mutex для потокобезопасного доступа к clients
	mu sync.RWMutex
}

// NewHub создает новый Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, broadcastBufferSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run запускает главный цикл Hub
//
// Должен запускаться в отдельной горутине: go hub.Run()
// Обрабатывает регистрацию, отмену регистрации и broadcast.
// Завершается после вызова Stop().
//
// При broadcast список клиентов копируется под коротким RLock,
// отправка идет без блокировки, медленные клиенты удаляются
// отдельным проходом под Write Lock.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			utils.Debug("websocket client connected", utils.Int("total_clients", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			utils.Debug("websocket client disconnected", utils.Int("total_clients", total))

		case message := <-h.broadcast:
			// Копируем список клиентов под коротким RLock
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			// Отправляем сообщения без блокировки (не блокируем register/unregister)
			var toRemove []*Client
			for _, client := range clients {
				select {
				case client.send <- message:
				default:
					// Клиент не успевает обрабатывать сообщения
					toRemove = append(toRemove, client)
				}
			}

			// Удаляем медленных клиентов под Write Lock
			if len(toRemove) > 0 {
				h.mu.Lock()
				for _, client := range toRemove {
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						close(client.send)
					}
				}
				total := len(h.clients)
				h.mu.Unlock()
				utils.Warn("removed slow websocket clients",
					utils.Int("removed", len(toRemove)),
					utils.Int("total_clients", total),
				)
			}
		}
	}
}

// Stop останавливает главный цикл Hub и отключает всех клиентов
func (h *Hub) Stop() {
	close(h.done)
}

// Broadcast сериализует сообщение и отправляет всем подключенным клиентам.
// Не блокируется: при переполнении канала сообщение отбрасывается
// (следующее обновление всё равно заместит состояние целиком).
func (h *Hub) Broadcast(message interface{}) {
	buf := jsonBufferPool.Get().(*bytes.Buffer)
	buf.Reset()

	if err := json.NewEncoder(buf).Encode(message); err != nil {
		utils.Error("failed to marshal broadcast message", utils.Err(err))
		jsonBufferPool.Put(buf)
		return
	}

	// Убираем trailing newline от Encode
	data := buf.Bytes()
	if len(data) > 0 && data[len(data)-1] == '\n' {
		data = data[:len(data)-1]
	}

	// Копируем данные (буфер вернётся в пул)
	msgCopy := make([]byte, len(data))
	copy(msgCopy, data)

	jsonBufferPool.Put(buf)

	h.BroadcastRaw(msgCopy)
}

// BroadcastRaw отправляет уже сериализованное сообщение
func (h *Hub) BroadcastRaw(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		atomic.AddInt64(&h.dropped, 1)
	}
}

// BroadcastStructureUpdate отправляет обновление состояния структуры
func (h *Hub) BroadcastStructureUpdate(condor *models.Condor) {
	if condor == nil {
		return
	}
	h.Broadcast(NewStructureUpdateMessage(condor))
}

// BroadcastNotification отправляет новое уведомление
func (h *Hub) BroadcastNotification(notif *models.Notification) {
	if notif == nil {
		return
	}
	h.Broadcast(NewNotificationMessage(notif))
}

// BroadcastEquityUpdate отправляет обновление капитала аккаунта
func (h *Hub) BroadcastEquityUpdate(equityUSD float64) {
	h.Broadcast(NewEquityUpdateMessage(equityUSD))
}

// BroadcastStatsUpdate отправляет обновление статистики
func (h *Hub) BroadcastStatsUpdate(stats *models.Stats) {
	h.Broadcast(NewStatsUpdateMessage(stats))
}

// BroadcastIndexPrice отправляет живое обновление индексной цены
func (h *Hub) BroadcastIndexPrice(currency string, price float64) {
	h.Broadcast(NewIndexPriceMessage(currency, price))
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// DroppedMessages возвращает количество отброшенных сообщений
func (h *Hub) DroppedMessages() int64 {
	return atomic.LoadInt64(&h.dropped)
}
