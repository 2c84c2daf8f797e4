package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/apextime/attendance-backend-go/internal/config"
	appHTTP "github.com/apextime/attendance-backend-go/internal/handler/http"
	"github.com/apextime/attendance-backend-go/internal/pkg/cron"
	"github.com/apextime/attendance-backend-go/internal/pkg/database"
	"github.com/apextime/attendance-backend-go/internal/repository/postgresql"
	"github.com/apextime/attendance-backend-go/internal/service/aggregator"
	"github.com/apextime/attendance-backend-go/internal/service/devicecmd"
	"github.com/apextime/attendance-backend-go/internal/service/normalizer"
	"github.com/apextime/attendance-backend-go/internal/service/reprocess"
	"github.com/apextime/attendance-backend-go/internal/service/resolver"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error loading config:", err)
		return
	}

	dsn := cfg.DatabaseURL()
	db, err := database.NewPostgreSQLDB(dsn)
	if err != nil {
		fmt.Println("Error connecting to database:", err)
		return
	}

	rawEventRepo := postgresql.NewRawEventRepository(db)
	summaryRepo := postgresql.NewSummaryRepository(db)
	identityRepo := postgresql.NewDirectoryRepository(db)
	deviceRepo := postgresql.NewDeviceRepository(db)
	commandRepo := postgresql.NewCommandRepository(db)
	tenantRepo := postgresql.NewTenantRepository(db)

	resolverService := resolver.NewResolverService(identityRepo, cfg.Attendance)
	normalizerService := normalizer.NewNormalizerService(rawEventRepo, tenantRepo, resolverService, cfg.Attendance)
	aggregatorService := aggregator.NewAggregatorService(
		db,
		rawEventRepo,
		summaryRepo,
		tenantRepo,
		resolverService,
		cfg.Attendance,
	)
	reprocessService := reprocess.NewReprocessService(
		tenantRepo,
		identityRepo,
		rawEventRepo,
		summaryRepo,
		aggregatorService,
		resolverService,
	)
	commandService := devicecmd.NewDeviceCommandService(deviceRepo, commandRepo, identityRepo, cfg.Attendance)

	scheduler := cron.NewScheduler()
	scheduler.AddJob("aggregation-sweep", cfg.Attendance.SweepInterval, aggregatorService.SweepAll)
	scheduler.AddJob("command-expiry", cfg.Attendance.CommandSentTimeout, func(ctx context.Context) error {
		_, err := commandService.ExpireStuck(ctx)
		return err
	})
	scheduler.Start()
	defer scheduler.Stop()

	deviceChannelHandler := appHTTP.NewDeviceChannelHandler(deviceRepo, normalizerService, commandService)
	directPushHandler := appHTTP.NewDirectPushHandler(deviceRepo, normalizerService)
	importHandler := appHTTP.NewImportHandler(deviceRepo, normalizerService)
	legacySyncHandler := appHTTP.NewLegacySyncHandler(deviceRepo, normalizerService)
	queryHandler := appHTTP.NewAttendanceQueryHandler(summaryRepo, rawEventRepo)
	commandHandler := appHTTP.NewDeviceCommandHandler(commandService)
	reprocessHandler := appHTTP.NewReprocessHandler(reprocessService)

	router := appHTTP.NewRouter(
		deviceChannelHandler,
		directPushHandler,
		importHandler,
		legacySyncHandler,
		queryHandler,
		commandHandler,
		reprocessHandler,
	)

	port := fmt.Sprintf(":%d", cfg.App.Port)
	fmt.Printf("Server running at http://localhost%s\n", port)
	if err := http.ListenAndServe(port, router); err != nil {
		fmt.Println("Server error:", err)
	}
}
