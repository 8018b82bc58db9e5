package signal

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Signal/internal/core"
)

const writeWait = 5 * time.Second

func (c *WsSignalConn) writePump() {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
				log.Debug().Str("module", "signal").Str("sid", c.id).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("sid", c.id).Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("sid", c.id).Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("sid", c.id).Msg("writePump ping failed")
				return
			}
		}
	}
}

func (c *WsSignalConn) readPump() {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", c.id).Msg("readPump closing")
		close(c.readDone)
		_ = c.Close()
	}()

	c.conn.SetReadLimit(c.opts.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.pongWait()))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.opts.pongWait()))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Str("module", "signal").Str("sid", c.id).Msg("readPump read error")
			}
			return
		}
		m, err := decode(data)
		if err != nil {
			log.Warn().Err(err).Str("module", "signal").Str("sid", c.id).Msg("bad message")
			continue
		}
		select {
		case c.inbox <- m:
		case <-c.closing:
			return
		}
	}
}

func decode(data []byte) (message, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return message{}, err
	}
	p, err := core.DecodePayload(env.Payload)
	if err != nil {
		return message{}, err
	}
	return message{event: env.Event, payload: p}, nil
}
