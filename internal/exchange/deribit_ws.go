package exchange

import (
	"fmt"
	"strings"

	"condor/pkg/utils"

	jsoniter "github.com/json-iterator/go"
)

// wsSubscribeRequest - JSON-RPC запрос подписки на каналы Deribit
type wsSubscribeRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      int64             `json:"id"`
	Method  string            `json:"method"`
	Params  wsSubscribeParams `json:"params"`
}

type wsSubscribeParams struct {
	Channels []string `json:"channels"`
}

// wsNotification - push-уведомление от Deribit по подписанному каналу
type wsNotification struct {
	Method string `json:"method"`
	Params struct {
		Channel string              `json:"channel"`
		Data    jsoniter.RawMessage `json:"data"`
	} `json:"params"`
}

// indexPriceData - данные канала deribit_price_index.{index_name}
type indexPriceData struct {
	IndexName string  `json:"index_name"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"`
}

// SubscribeIndexPrice подписывается на обновления индексной цены валюты
// Соединение ленивое: открывается при первой подписке и автоматически
// переподключается с восстановлением всех каналов
func (d *Deribit) SubscribeIndexPrice(currency string, callback func(currency string, price float64)) error {
	indexName := strings.ToLower(currency) + "_usd"
	channel := "deribit_price_index." + indexName

	d.wsSubsMu.Lock()
	d.wsSubs[channel] = callback
	d.wsSubsMu.Unlock()

	if d.wsManager == nil {
		if err := d.startWS(); err != nil {
			return err
		}
	}

	sub := wsSubscribeRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "public/subscribe",
		Params:  wsSubscribeParams{Channels: []string{channel}},
	}

	// Регистрируем подписку для восстановления после переподключения
	d.wsManager.AddSubscription(sub)

	if d.wsManager.IsConnected() {
		return d.wsManager.Send(sub)
	}
	return nil
}

// startWS создаёт WebSocket менеджер и устанавливает соединение
func (d *Deribit) startWS() error {
	manager := NewWSReconnectManager(d.name, d.wsURL, DefaultWSReconnectConfig())
	manager.SetOnMessage(d.handleWSMessage)
	manager.SetOnDisconnect(func(err error) {
		if err != nil {
			utils.Warn("index price stream disconnected", utils.Exchange(d.name), utils.Err(err))
		}
	})

	if err := manager.Connect(); err != nil {
		return fmt.Errorf("ws connect: %w", err)
	}

	d.wsManager = manager
	return nil
}

// handleWSMessage разбирает push-уведомления и вызывает callbacks подписчиков
func (d *Deribit) handleWSMessage(message []byte) {
	var notif wsNotification
	if err := fastJSON.Unmarshal(message, &notif); err != nil {
		return
	}
	if notif.Method != "subscription" {
		// Ответы на subscribe/heartbeat нам не интересны
		return
	}

	d.wsSubsMu.RLock()
	callback, ok := d.wsSubs[notif.Params.Channel]
	d.wsSubsMu.RUnlock()
	if !ok || callback == nil {
		return
	}

	var data indexPriceData
	if err := fastJSON.Unmarshal(notif.Params.Data, &data); err != nil {
		utils.Warn("bad index price payload",
			utils.Exchange(d.name), utils.String("channel", notif.Params.Channel), utils.Err(err))
		return
	}
	if data.Price <= 0 {
		return
	}

	currency := strings.ToUpper(strings.TrimSuffix(data.IndexName, "_usd"))
	callback(currency, data.Price)
}
