package realtime

import (
	"bufio"
	"fmt"
	"time"

	"puzzle-bar/utils"

	"github.com/gofiber/fiber/v2"
)

// StreamHandler serves the change feed as server-sent events. The
// subscriber's user id is read from c.Locals("user_id").
func StreamHandler(hub *Hub, keepAlive time.Duration) fiber.Handler {
	if keepAlive <= 0 {
		keepAlive = 15 * time.Second
	}

	return func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)

		c.Set("Content-Type", "text/event-stream")
		c.Set("Cache-Control", "no-cache")
		c.Set("Connection", "keep-alive")
		c.Set("X-Accel-Buffering", "no") // nginx

		client := hub.Subscribe(userID)
		done := c.Context().Done()

		c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
			defer hub.Unsubscribe(client)

			ticker := time.NewTicker(keepAlive)
			defer ticker.Stop()

			w.WriteString(":\n\n")
			if err := w.Flush(); err != nil {
				return
			}

			for {
				select {
				case ev, ok := <-client.Events():
					if !ok {
						return
					}
					name, data, err := Encode(ev)
					if err != nil {
						utils.LogError("[STREAM] encode %s: %v", ev.Kind(), err)
						continue
					}
					fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
					if err := w.Flush(); err != nil {
						// client disconnected
						return
					}

				case <-ticker.C:
					w.WriteString(":\n\n")
					if err := w.Flush(); err != nil {
						return
					}

				case <-done:
					return
				}
			}
		})

		return nil
	}
}
