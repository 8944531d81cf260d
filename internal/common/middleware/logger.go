package middleware

import (
	"io"
	"os"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

// ============================================================
// Logger Middleware
// ============================================================

// Logger пишет строку доступа на каждый запрос в w (nil означает stdout).
func Logger(w io.Writer) fiber.Handler {
	if w == nil {
		w = os.Stdout
	}
	return logger.New(logger.Config{
		Format:     "[${time}] ${status} - ${latency} ${method} ${path} | plan=${locals:planID} ${error}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
		Stream:     w,
	})
}
