package http

import (
	"log/slog"
	"os"

	"github.com/apextime/attendance-backend-go/internal/handler/http/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(
	deviceChannel DeviceChannelHandler,
	directPush DirectPushHandler,
	importHandler ImportHandler,
	legacySync LegacySyncHandler,
	query AttendanceQueryHandler,
	commands DeviceCommandHandler,
	reprocessHandler ReprocessHandler,
) *chi.Mux {
	r := chi.NewRouter()
	logFormat := httplog.SchemaECS.Concise(false)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "attendance-backend"),
		slog.String("version", "v1.0.0"),
	)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Tenant-ID", "X-Device-Serial"},
		ExposedHeaders:   []string{"Link"},
		MaxAge:           300,
	}))

	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  slog.LevelDebug,
		Schema: httplog.SchemaECS,
	}))

	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/"))

	r.Handle("/metrics", promhttp.Handler())

	// Push-protocol terminals speak plain text and know nothing about
	// tenants or JSON; these routes stay outside /api/v1.
	r.Route("/iclock", func(r chi.Router) {
		r.Get("/cdata", deviceChannel.Handshake)
		r.Post("/cdata", deviceChannel.ReceiveData)
		r.Get("/getrequest", deviceChannel.CommandPoll)
		r.Post("/devicecmd", deviceChannel.CommandResult)
	})

	r.Route("/api/v1", func(r chi.Router) {

		// Access controller callbacks carry their own device serial.
		r.Post("/events/direct-push", directPush.Receive)

		// Operator surface, tenant scoped.
		r.Group(func(r chi.Router) {
			r.Use(middleware.TenantRequired)

			r.Route("/attendance", func(r chi.Router) {
				r.Get("/summaries", query.ListSummaries)
				r.Get("/summaries/{employeeID}/{date}", query.GetSummary)
				r.Get("/events", query.ListRawEvents)
				r.Post("/reprocess", reprocessHandler.Reprocess)
				r.Post("/purge-pre-join", reprocessHandler.PurgePreJoin)
			})

			r.Route("/devices/{deviceID}", func(r chi.Router) {
				r.Post("/import", importHandler.Upload)
				r.Post("/legacy-logs", legacySync.Receive)

				r.Route("/commands", func(r chi.Router) {
					r.Post("/", commands.Enqueue)
					r.Get("/pending", commands.ListPending)
					r.Post("/upload-employee/{employeeID}", commands.UploadEmployee)
					r.Post("/upload-all", commands.UploadAllEmployees)
					r.Post("/delete-employee/{employeeID}", commands.DeleteEmployee)
					r.Post("/sync-time", commands.SyncTime)
				})
			})
		})
	})
	return r
}
