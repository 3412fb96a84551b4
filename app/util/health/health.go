package health

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

// Start runs a minimal liveness endpoint and shuts it down with the
// context. A no-op when listen is empty.
func Start(ctx context.Context, listen string) {
	if listen == "" {
		return
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	go func() {
		<-ctx.Done()
		_ = app.Shutdown()
	}()

	go func() {
		if err := app.Listen(listen); err != nil {
			slog.Warn("Health server stopped", "addr", listen, "error", err)
		}
	}()
}
