package api

import (
	"os"

	"github.com/fieldwave/comsrv/internal/calc"
	"github.com/fieldwave/comsrv/internal/config"
	"github.com/fieldwave/comsrv/internal/factory"
	"github.com/fieldwave/comsrv/internal/response"
	"github.com/gofiber/contrib/v3/monitor"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/shirou/gopsutil/v4/process"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// NewFiberApp builds the fiber.App the introspection API serves on,
// carrying the teacher's own error-handling/requestid/access-log/recover
// middleware stack (http/http.go), minus the JWT/static/pprof/websocket
// pieces that served the dropped auth and frontend surfaces.
func NewFiberApp(errorLogger, accessLogger *logrus.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c fiber.Ctx, err error) error {
			errorLogger.WithFields(logrus.Fields{
				"path":   c.Path(),
				"ip":     c.IP(),
				"method": c.Method(),
			}).WithError(err).Error("fiber error")

			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"code": code, "error": err.Error()})
		},
	})

	app.Use(requestid.New())
	app.Use(AccessLogMiddleware(accessLogger))
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			errorLogger.WithFields(logrus.Fields{
				"path":   c.Path(),
				"ip":     c.IP(),
				"method": c.Method(),
			}).Errorf("fiber panic recovered: %v", e)
		},
	}))
	app.Get("/metrics", monitor.New(monitor.Config{Title: "comsrv metrics"}))

	return app
}

// Server holds dependencies for HTTP handlers. There is no authentication
// surface here: the Non-goal "No user authentication" means every route
// below is intentionally open, matching the introspection-only scope of
// this HTTP API.
type Server struct {
	DB      *gorm.DB
	Cfg     *config.Config
	Manager *factory.Manager
	Calc    *calc.Engine
}

// Route builds the full introspection API: channel list/stats, manual
// calculation trigger, and a process-health probe.
func (s *Server) Route(app *fiber.App) *fiber.App {
	v1 := app.Group("/api/v1")

	v1.Get("/healthz", s.Healthz)

	channels := v1.Group("/channels")
	channels.Get("/", s.ListChannels)
	channels.Get("/:id/status", s.ChannelStatus)

	calcs := v1.Group("/calculations")
	calcs.Post("/:id/execute", s.ExecuteCalculation)

	return app
}

// Healthz reports process-level health via gopsutil, the same library
// the teacher's maintenance overview handler uses for process stats.
func (s *Server) Healthz(c fiber.Ctx) error {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return response.Internal(c, "process stats unavailable")
	}
	cpuPct, _ := proc.CPUPercent()
	memInfo, _ := proc.MemoryInfo()

	body := fiber.Map{"status": "ok", "cpu_percent": cpuPct}
	if memInfo != nil {
		body["rss_bytes"] = memInfo.RSS
	}
	return response.OK(c, body)
}
