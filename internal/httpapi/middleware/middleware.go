// Package middleware holds the global fiber middleware the
// observability surface runs, carried over from the reference service's
// internal/api/middleware package.
package middleware

import (
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// Recovery enables fiber's panic-recovery middleware. Stack traces are
// only emitted outside production to avoid leaking internals.
func Recovery() fiber.Handler {
	return recover.New(recover.Config{
		EnableStackTrace: os.Getenv("ALARMD_ENV") != "production",
	})
}

// CORS allows the read-only observability surface to be polled from a
// browser dashboard on a different origin.
func CORS() fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET",
	})
}
