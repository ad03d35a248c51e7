package marketdata

import (
	"context"
	"log"
	"strconv"
	"time"

	"algo_engine/internal/models"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

func (c *Client) wsURL() string {
	if c.cfg.MarketData.WSURL != "" {
		return c.cfg.MarketData.WSURL
	}
	return "wss://ws.okx.com:8443/ws/v5/business"
}

// StreamBars keeps one WebSocket per timeframe with the whole symbol batch
// in args. Only confirmed (closed) candles reach the cache; partial updates
// are dropped so strategies never act on a bar that can still change.
func (c *Client) StreamBars(ctx context.Context, symbols []string, timeframe string) {
	if len(symbols) == 0 {
		return
	}

	channel := "candle" + timeframe
	tfDur := timeframeToDuration(timeframe)

	args := make([]map[string]string, 0, len(symbols))
	for _, s := range symbols {
		args = append(args, map[string]string{
			"channel": channel,
			"instId":  s,
		})
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		log.Printf("[WS] connect %s %d symbols", channel, len(symbols))
		conn, _, err := c.wsDialer.Dial(c.wsURL(), nil)
		if err != nil {
			log.Printf("[WS] dial error %s: %v", channel, err)
			time.Sleep(time.Second)
			continue
		}
		if c.health != nil {
			c.health.SetWSConnected(true)
		}

		sub := map[string]any{
			"op":   "subscribe",
			"args": args,
		}
		if err := conn.WriteJSON(sub); err != nil {
			log.Printf("[WS] subscribe error %s: %v", channel, err)
			_ = conn.Close()
			continue
		}

		// keepalive every 20s, the venue drops silent connections
		pingCtx, cancelPing := context.WithCancel(ctx)
		go func() {
			t := time.NewTicker(20 * time.Second)
			defer t.Stop()
			for {
				select {
				case <-pingCtx.Done():
					return
				case <-t.C:
					_ = conn.WriteMessage(websocket.TextMessage, []byte("ping"))
				}
			}
		}()

		c.readLoop(ctx, conn, timeframe, tfDur)

		cancelPing()
		_ = conn.Close()
		if c.health != nil {
			c.health.SetWSConnected(false)
		}

		select {
		case <-ctx.Done():
			return
		default:
			time.Sleep(time.Second)
		}
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, timeframe string, tfDur time.Duration) {
	type frame struct {
		Event string `json:"event"`
		Arg   struct {
			InstID string `json:"instId"`
		} `json:"arg"`
		Data [][]string `json:"data"`
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			log.Printf("[WS] read error %s: %v", timeframe, err)
			return
		}
		if string(raw) == "pong" {
			continue
		}

		var f frame
		if err := sonic.Unmarshal(raw, &f); err != nil || f.Event != "" || len(f.Data) == 0 {
			continue
		}

		for _, row := range f.Data {
			// row: [ts, o, h, l, c, vol, volCcy, volCcyQuote, confirm]
			if len(row) < 9 || row[8] != "1" {
				continue // not closed yet
			}
			tsMs, err := strconv.ParseInt(row[0], 10, 64)
			if err != nil {
				continue
			}
			open, err1 := strconv.ParseFloat(row[1], 64)
			high, err2 := strconv.ParseFloat(row[2], 64)
			low, err3 := strconv.ParseFloat(row[3], 64)
			closep, err4 := strconv.ParseFloat(row[4], 64)
			if err1 != nil || err2 != nil || err3 != nil || err4 != nil || closep <= 0 {
				continue
			}
			var vol float64
			if len(row) >= 6 {
				vol, _ = strconv.ParseFloat(row[5], 64)
			}

			c.cache.Append(models.OHLCBar{
				Symbol:    f.Arg.InstID,
				Timestamp: time.UnixMilli(tsMs),
				Timeframe: timeframe,
				Open:      open,
				High:      high,
				Low:       low,
				Close:     closep,
				Volume:    vol,
			})
			if c.health != nil {
				c.health.TouchTick(time.UnixMilli(tsMs).Add(tfDur))
			}
		}
	}
}
