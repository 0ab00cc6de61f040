package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-adp-api/internal/allocator"
	"github.com/noah-isme/sma-adp-api/internal/compiler"
	"github.com/noah-isme/sma-adp-api/internal/dto"
	"github.com/noah-isme/sma-adp-api/internal/export"
	"github.com/noah-isme/sma-adp-api/internal/metrics"
	"github.com/noah-isme/sma-adp-api/internal/models"
	"github.com/noah-isme/sma-adp-api/internal/repository"
	"github.com/noah-isme/sma-adp-api/internal/scheduler"
	"github.com/noah-isme/sma-adp-api/internal/service"
	"github.com/noah-isme/sma-adp-api/internal/supervisor"
	"github.com/noah-isme/sma-adp-api/internal/writer"
	"github.com/noah-isme/sma-adp-api/pkg/cache"
	"github.com/noah-isme/sma-adp-api/pkg/config"
	"github.com/noah-isme/sma-adp-api/pkg/database"
	"github.com/noah-isme/sma-adp-api/pkg/logger"
	"github.com/noah-isme/sma-adp-api/pkg/middleware/requestid"
	"github.com/noah-isme/sma-adp-api/pkg/response"
	"github.com/noah-isme/sma-adp-api/pkg/storage"
)

// app bundles every wired dependency the CLI subcommands and the ops server
// share, built once at startup.
type app struct {
	cfg        *config.Config
	log        *zap.Logger
	metrics    *metrics.Registry
	generation *service.GenerationService
	allocation *service.AllocationService
	exporter   *export.Exporter
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	zapLogger, err := logger.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer zapLogger.Sync() //nolint:errcheck

	a, closeFn, err := build(cfg, zapLogger)
	if err != nil {
		zapLogger.Sugar().Fatalw("failed to wire application", "error", err)
	}
	defer closeFn()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	switch os.Args[1] {
	case "serve":
		a.serve(ctx)
	case "generate":
		a.cliGenerate(ctx, os.Args[2:])
	case "publish":
		a.cliPublish(ctx, os.Args[2:])
	case "read":
		a.cliRead(ctx, os.Args[2:])
	case "clear":
		a.cliClear(ctx, os.Args[2:])
	case "allocate":
		a.cliAllocate(ctx, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: scheduler <command> [flags]

commands:
  serve     run the ops HTTP server (/health, /ready, /metrics)
  generate  compile and search for a feasible timetable
  publish   persist a previously generated timetable
  read      read the published timetable for a partition
  clear     remove the published timetable for a partition
  allocate  run the elective allocation pass`)
}

func build(cfg *config.Config, log *zap.Logger) (*app, func(), error) {
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}

	localStorage, err := storage.NewLocalStorage(cfg.Export.StorageDir)
	if err != nil {
		_ = db.Close()
		_ = redisClient.Close()
		return nil, nil, fmt.Errorf("init export storage: %w", err)
	}

	teachers := repository.NewTeacherRepository(db)
	subjects := repository.NewSubjectRepository(db)
	rooms := repository.NewRoomRepository(db)
	groups := repository.NewGroupRepository(db)
	assignments := repository.NewAssignmentRepository(db)
	unavailability := repository.NewUnavailabilityRepository(db)
	timetables := repository.NewTimetableRepository(db)
	electives := repository.NewElectiveRepository(db)

	comp := compiler.New(groups, subjects, assignments, rooms, unavailability, log)
	lock := writer.NewPartitionLock(redisClient, cfg.Scheduler.LockTTL)
	tw := writer.New(timetables, lock, log)
	sup := supervisor.New(log)
	reg := metrics.New()
	alloc := allocator.New(electives, log)
	signer := storage.NewSignedURLSigner(cfg.Export.SignedURLSecret, cfg.Export.SignedURLTTL)
	exporter := export.New(localStorage, signer)

	genSvc := service.NewGenerationService(comp, tw, sup, reg, rooms, teachers, subjects, groups, log)
	allocSvc := service.NewAllocationService(alloc, reg, log)

	closeFn := func() {
		_ = db.Close()
		_ = redisClient.Close()
	}

	return &app{
		cfg:        cfg,
		log:        log,
		metrics:    reg,
		generation: genSvc,
		allocation: allocSvc,
		exporter:   exporter,
	}, closeFn, nil
}

// serve runs the ops-only HTTP surface. The scheduling domain API (generate,
// publish, read_timetable, clear_timetable, allocate_electives) is reached
// through the CLI subcommands or in-process calls, never over REST.
func (a *app) serve(ctx context.Context) {
	if a.cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestid.Middleware(), logger.GinMiddleware(a.log))

	router.GET("/health", func(c *gin.Context) {
		response.JSON(c, http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/ready", func(c *gin.Context) {
		response.JSON(c, http.StatusOK, gin.H{"status": "ready"})
	})
	router.GET("/metrics", gin.WrapH(a.metrics.Handler()))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.log.Sugar().Fatalw("ops server failed", "error", err)
		}
	}()
	a.log.Sugar().Infow("ops server listening", "port", a.cfg.Port)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Sugar().Errorw("ops server shutdown error", "error", err)
	}
}

func (a *app) cliGenerate(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	year := fs.String("academic-year", "", "academic year, e.g. 2026-2027")
	semester := fs.String("semester", "", "ODD or EVEN")
	groupIDs := fs.String("groups", "", "comma-separated group ids")
	lunch := fs.Int("lunch-period", 5, "period number reserved for lunch")
	periods := fs.Int("periods-per-day", 8, "number of periods per day")
	maxIter := fs.Int("max-iterations", a.cfg.Scheduler.MaxIterations, "iteration cap (0 = default)")
	_ = fs.Parse(args)

	req := dto.GenerationRequest{
		AcademicYear:     *year,
		SemesterType:     *semester,
		GroupIDs:         splitCSV(*groupIDs),
		LunchBreakPeriod: *lunch,
		PeriodsPerDay:    *periods,
		MaxIterations:    *maxIter,
	}

	requestID := uuid.NewString()
	result, err := a.generation.Generate(ctx, requestID, req)
	if err != nil {
		a.log.Sugar().Errorw("generate failed", "error", err)
		os.Exit(1)
	}
	printJSON(result)
}

func (a *app) cliPublish(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("publish", flag.ExitOnError)
	year := fs.String("academic-year", "", "academic year")
	semester := fs.String("semester", "", "ODD or EVEN")
	inputPath := fs.String("slots-file", "", "path to a JSON array of slot records (- for stdin)")
	_ = fs.Parse(args)

	var raw []byte
	var err error
	if *inputPath == "" || *inputPath == "-" {
		raw, err = readAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(*inputPath)
	}
	if err != nil {
		a.log.Sugar().Errorw("publish failed reading slots", "error", err)
		os.Exit(1)
	}

	var slots []dto.SlotRecord
	if err := json.Unmarshal(raw, &slots); err != nil {
		a.log.Sugar().Errorw("publish failed decoding slots", "error", err)
		os.Exit(1)
	}

	partition := models.TimetablePartition{
		AcademicYear: *year,
		SemesterType: models.SemesterType(*semester),
	}
	if err := a.generation.Publish(ctx, partition, slots); err != nil {
		a.log.Sugar().Errorw("publish failed", "error", err)
		os.Exit(1)
	}
	fmt.Println("published")
}

func (a *app) cliRead(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("read", flag.ExitOnError)
	year := fs.String("academic-year", "", "academic year")
	semester := fs.String("semester", "", "ODD or EVEN")
	groupIDs := fs.String("groups", "", "optional comma-separated group filter")
	format := fs.String("format", "json", "output format: json, csv or pdf")
	_ = fs.Parse(args)

	partition := models.TimetablePartition{
		AcademicYear: *year,
		SemesterType: models.SemesterType(*semester),
	}
	records, err := a.generation.ReadTimetable(ctx, partition, splitCSV(*groupIDs))
	if err != nil {
		a.log.Sugar().Errorw("read failed", "error", err)
		os.Exit(1)
	}

	switch strings.ToLower(*format) {
	case "", "json":
		printJSON(records)
	case "csv", "pdf":
		partitionLabel := fmt.Sprintf("%s-%s", *year, strings.ToLower(*semester))
		artifact, err := a.exporter.Export(uuid.NewString(), partitionLabel, records, export.Format(strings.ToLower(*format)))
		if err != nil {
			a.log.Sugar().Errorw("export failed", "error", err)
			os.Exit(1)
		}
		printJSON(artifact)
	default:
		fmt.Fprintf(os.Stderr, "unsupported format %q (want json, csv or pdf)\n", *format)
		os.Exit(2)
	}
}

func (a *app) cliClear(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)
	year := fs.String("academic-year", "", "academic year")
	semester := fs.String("semester", "", "ODD or EVEN")
	_ = fs.Parse(args)

	partition := models.TimetablePartition{
		AcademicYear: *year,
		SemesterType: models.SemesterType(*semester),
	}
	if err := a.generation.ClearTimetable(ctx, partition); err != nil {
		a.log.Sugar().Errorw("clear failed", "error", err)
		os.Exit(1)
	}
	fmt.Println("cleared")
}

func (a *app) cliAllocate(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("allocate", flag.ExitOnError)
	dryRun := fs.Bool("dry-run", false, "compute allocations without persisting them")
	_ = fs.Parse(args)

	result, err := a.allocation.AllocateElectives(ctx, dto.AllocationRequest{DryRun: *dryRun})
	if err != nil {
		a.log.Sugar().Errorw("allocate failed", "error", err)
		os.Exit(1)
	}
	printJSON(result)
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func readAll(f *os.File) ([]byte, error) {
	info, err := f.Stat()
	if err == nil && info.Size() > 0 {
		buf := make([]byte, info.Size())
		n, err := f.Read(buf)
		if err != nil {
			return nil, err
		}
		return buf[:n], nil
	}
	var out []byte
	buf := make([]byte, 4096)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if err != nil {
			break
		}
	}
	return out, nil
}
