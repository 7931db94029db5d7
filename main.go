package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"plc-datalogger/internal/auth"
	datalogapp "plc-datalogger/internal/datalog/application"
	datalog "plc-datalogger/internal/datalog/domain"
	amqppub "plc-datalogger/internal/datalog/infrastructure/amqp"
	dataloghttp "plc-datalogger/internal/datalog/interfaces/http"
	"plc-datalogger/internal/eventbus"
	"plc-datalogger/internal/observability/metrics"
	persistenceapp "plc-datalogger/internal/persistence/application"
	"plc-datalogger/internal/persistence/infrastructure/excel"
	"plc-datalogger/internal/persistence/infrastructure/pdfreport"
	"plc-datalogger/internal/persistence/infrastructure/sqlstore"
	plcapp "plc-datalogger/internal/plc/application"
	plc "plc-datalogger/internal/plc/domain"
	"plc-datalogger/internal/plc/infrastructure/modbus"
	"plc-datalogger/internal/plc/infrastructure/simulator"
	plchttp "plc-datalogger/internal/plc/interfaces/http"
	settingsapp "plc-datalogger/internal/settings/application"
	settings "plc-datalogger/internal/settings/domain"
	"plc-datalogger/internal/settings/infrastructure/yamlfile"
	settingshttp "plc-datalogger/internal/settings/interfaces/http"
	viewapp "plc-datalogger/internal/view/application"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	if len(os.Args) > 1 && os.Args[1] == "token" {
		issueToken(cfg, os.Args[2:])
		return
	}

	metrics.Init()
	bus := eventbus.NewInMemoryBus(logger)

	settingsRepo, err := yamlfile.NewRepository(cfg.SettingsFile)
	if err != nil {
		logger.Fatalf("settings repository error: %v", err)
	}
	initial, err := settingsRepo.Load()
	if err != nil {
		logger.Fatalf("settings load error: %v", err)
	}
	store, err := settingsapp.NewStore(initial, bus)
	if err != nil {
		logger.Fatalf("settings store error: %v", err)
	}
	store.Subscribe("settings-file", settingsRepo.SaveOnChange)

	driver, err := buildDriver(cfg, logger)
	if err != nil {
		logger.Fatalf("plc driver error: %v", err)
	}
	poller, err := plcapp.NewPoller(driver, logger)
	if err != nil {
		logger.Fatalf("plc poller error: %v", err)
	}

	var reporter persistenceapp.Reporter
	if cfg.ReportDir != "" {
		pdfWriter, err := pdfreport.NewWriter(cfg.ReportDir)
		if err != nil {
			logger.Fatalf("report writer error: %v", err)
		}
		reporter = pdfWriter
	}
	router, err := persistenceapp.NewRouter(store, storageFactory, reporter, logger)
	if err != nil {
		logger.Fatalf("persistence router error: %v", err)
	}

	table := datalog.NewTable(time.Now())
	scheduler, err := datalogapp.NewScheduler(store, poller, table, router, bus, logger,
		datalogapp.WithAutosave(cfg.AutosaveInterval))
	if err != nil {
		logger.Fatalf("scheduler error: %v", err)
	}
	tableView := viewapp.NewTableProjection()
	chartView := viewapp.NewChartProjection()
	scheduler.AddRenderer("table", tableView)
	scheduler.AddRenderer("chart", chartView)

	broker := dataloghttp.NewBroker()
	broker.Attach(bus)

	var publisher *amqppub.Publisher
	if cfg.AMQPURL != "" {
		publisher, err = amqppub.NewPublisher(amqppub.Config{URL: cfg.AMQPURL, Exchange: cfg.AMQPExchange}, logger)
		if err != nil {
			logger.Fatalf("amqp publisher error: %v", err)
		}
		publisher.Attach(bus)
	}

	settingsHandler, err := settingshttp.NewHandler(store, scheduler, router)
	if err != nil {
		logger.Fatalf("settings handler error: %v", err)
	}
	plcHandler, err := plchttp.NewHandler(poller, store)
	if err != nil {
		logger.Fatalf("plc handler error: %v", err)
	}
	loggingHandler, err := dataloghttp.NewLoggingHandler(scheduler)
	if err != nil {
		logger.Fatalf("logging handler error: %v", err)
	}
	viewHandler, err := dataloghttp.NewViewHandler(tableView, chartView)
	if err != nil {
		logger.Fatalf("view handler error: %v", err)
	}
	liveHandler, err := dataloghttp.NewLiveHandler(broker, tableView, chartView, logger)
	if err != nil {
		logger.Fatalf("live handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)
	if cfg.JWTSecret == "" {
		logger.Printf("auth disabled: AUTH_JWT_SECRET not set")
	}

	mux := http.NewServeMux()
	mux.Handle("/api/v1/settings", settingsHandler)
	mux.Handle("/api/v1/settings/", settingsHandler)
	mux.Handle("/api/v1/storage/test", settingsHandler)
	mux.Handle("/api/v1/plc/", plcHandler)
	mux.Handle("/api/v1/logging/", loggingHandler)
	mux.Handle("/api/v1/table", viewHandler)
	mux.Handle("/api/v1/chart", viewHandler)
	mux.Handle("/api/v1/chart/columns", viewHandler)
	mux.Handle("/api/v1/events", dataloghttp.NewStreamHandler(broker))
	mux.Handle("/api/v1/live", liveHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           loggingMiddleware(authMiddleware.Wrap(mux), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Printf("http listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("http server error: %v", err)
			stop()
		}
	}()

	if cfg.AutoStart {
		if err := scheduler.Start(ctx); err != nil {
			logger.Printf("auto start skipped: %v", err)
		}
	}

	<-ctx.Done()
	logger.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	releasers := []datalogapp.Releaser{broker.Close, server.Shutdown}
	if publisher != nil {
		releasers = append(releasers, publisher.Close)
	}
	report := datalogapp.Shutdown(shutdownCtx, logger, scheduler, router, releasers...)
	fmt.Println(report.Message())
	if report.Rows > 0 && !report.Saved {
		os.Exit(1)
	}
}

type config struct {
	HTTPAddr         string
	SettingsFile     string
	PLCDriver        string
	PLCTagMap        string
	PLCUnitID        int
	PLCTimeout       time.Duration
	SimTags          []string
	AutosaveInterval time.Duration
	ReportDir        string
	AMQPURL          string
	AMQPExchange     string
	JWTSecret        string
	AutoStart        bool
	ShutdownTimeout  time.Duration
}

func loadConfig() config {
	cfg := config{
		HTTPAddr:         getenvDefault("HTTP_ADDR", ":8080"),
		SettingsFile:     getenvDefault("SETTINGS_FILE", "plc_logger.yaml"),
		PLCDriver:        getenvDefault("PLC_DRIVER", "modbus"),
		PLCTagMap:        getenvDefault("PLC_TAG_MAP", ""),
		PLCUnitID:        getenvIntDefault("PLC_UNIT_ID", 1),
		PLCTimeout:       getenvDuration("PLC_TIMEOUT", 5*time.Second),
		SimTags:          splitList(getenvDefault("SIM_TAGS", "")),
		AutosaveInterval: getenvDuration("AUTOSAVE_INTERVAL", 0),
		ReportDir:        getenvDefault("REPORT_DIR", ""),
		AMQPURL:          getenvDefault("AMQP_URL", ""),
		AMQPExchange:     getenvDefault("AMQP_EXCHANGE", amqppub.DefaultExchange),
		JWTSecret:        getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		AutoStart:        getenvBool("AUTO_START", false),
		ShutdownTimeout:  getenvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
	}
	switch cfg.PLCDriver {
	case "modbus":
		if cfg.PLCTagMap == "" {
			log.Fatal("PLC_TAG_MAP is required for the modbus driver")
		}
	case "sim":
	default:
		log.Fatalf("PLC_DRIVER must be modbus or sim, got %q", cfg.PLCDriver)
	}
	if cfg.PLCUnitID < 0 || cfg.PLCUnitID > 255 {
		log.Fatal("PLC_UNIT_ID must be between 0 and 255")
	}
	return cfg
}

func buildDriver(cfg config, logger *log.Logger) (plc.Driver, error) {
	if cfg.PLCDriver == "sim" {
		logger.Printf("plc driver: simulator")
		return simulator.NewDriver(cfg.SimTags), nil
	}
	tags, err := modbus.LoadTagMap(cfg.PLCTagMap)
	if err != nil {
		return nil, err
	}
	logger.Printf("plc driver: modbus tags=%d unit=%d", len(tags.Tags), cfg.PLCUnitID)
	d, err := modbus.NewDriver(modbus.Config{UnitID: byte(cfg.PLCUnitID), Timeout: cfg.PLCTimeout, Tags: tags}, logger)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func storageFactory(target settings.StorageTarget) (persistenceapp.Strategy, error) {
	switch target.Kind {
	case settings.StorageExcel:
		w, err := excel.NewWriter(target.Excel)
		if err != nil {
			return nil, err
		}
		return w, nil
	case settings.StorageSQL:
		s, err := sqlstore.New(target.SQL)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage kind %q", target.Kind)
	}
}

// issueToken prints a signed API token: plc-datalogger token <role> [ttl].
func issueToken(cfg config, args []string) {
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required to issue tokens")
	}
	if len(args) == 0 {
		log.Fatal("usage: plc-datalogger token <viewer|operator|admin> [ttl]")
	}
	ttl := 24 * time.Hour
	if len(args) > 1 {
		parsed, err := time.ParseDuration(args[1])
		if err != nil {
			log.Fatalf("invalid ttl: %v", err)
		}
		ttl = parsed
	}
	token, err := auth.IssueToken([]byte(cfg.JWTSecret), "cli", auth.Role(args[0]), ttl)
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}
	fmt.Println(token)
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Flush and Hijack keep event streams and sockets working behind the wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack unsupported")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
