package respond

import (
	"github.com/gin-gonic/gin"
)

// StreamHeaders prepares the response for server-sent events.
func StreamHeaders(c *gin.Context) {
	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

// Event writes one server-sent event and flushes it to the client.
func Event(c *gin.Context, name string, payload interface{}) {
	c.SSEvent(name, payload)
	c.Writer.Flush()
}
