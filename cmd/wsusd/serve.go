package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wsusd/wsusd/internal/admin"
	"github.com/wsusd/wsusd/internal/audit"
	"github.com/wsusd/wsusd/internal/catalog"
	"github.com/wsusd/wsusd/internal/config"
	"github.com/wsusd/wsusd/internal/content"
	"github.com/wsusd/wsusd/internal/extendedinfo"
	"github.com/wsusd/wsusd/internal/fragment"
	"github.com/wsusd/wsusd/internal/health"
	"github.com/wsusd/wsusd/internal/logging"
	"github.com/wsusd/wsusd/internal/metadatasource"
	"github.com/wsusd/wsusd/internal/mtls"
	"github.com/wsusd/wsusd/internal/offering"
	"github.com/wsusd/wsusd/internal/soap"
	"github.com/wsusd/wsusd/internal/websocket"
	"github.com/wsusd/wsusd/internal/workerpool"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the wsusd server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

const eventFanoutWorkers = 4
const eventFanoutQueue = 256

// reloadable owns everything a catalog reload must replace: the
// MetadataSource, the derived Snapshot in the Guard, and the content
// router's (dir,name) index.
type reloadable struct {
	mu           sync.Mutex
	metadataPath string
	guard        *catalog.Guard
	router       *content.Router
}

// Reload implements admin.Reloader (spec.md §4.1): re-reads the metadata
// source from disk, swaps the catalog under the Guard, and rebuilds the
// content router's file index from the new snapshot.
func (r *reloadable) Reload() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	src, err := metadatasource.Load(r.metadataPath)
	if err != nil {
		return fmt.Errorf("load metadata source: %w", err)
	}

	snap := catalog.NewSnapshot(src)
	r.guard.SetCatalog(snap)

	updates := make([]catalog.Update, 0, len(snap.Updates))
	for _, u := range snap.Updates {
		updates = append(updates, u)
	}
	r.router.Build(updates)

	return nil
}

func runServe() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	result := cfg.ValidateTiered()
	if result.HasFatals() {
		for _, e := range result.Fatals {
			fmt.Fprintln(os.Stderr, "config error:", e)
		}
		os.Exit(1)
	}

	logging.Init(cfg.LogFormat, cfg.LogLevel, os.Stdout)
	log := logging.L("wsusd")

	auditLog, err := audit.NewLogger(cfg)
	if err != nil {
		return fmt.Errorf("init audit logger: %w", err)
	}
	defer auditLog.Close()
	auditLog.Log(audit.EventServerStart, "", map[string]any{"version": version})

	ctx := context.Background()

	store, err := content.NewStoreFromConfig(ctx, cfg.ContentStore)
	if err != nil {
		return fmt.Errorf("init content store: %w", err)
	}
	router := content.NewRouter(store)

	guard := catalog.NewGuard()
	fragmenter := fragment.New()

	r := &reloadable{metadataPath: cfg.MetadataSourcePath, guard: guard, router: router}
	if cfg.MetadataSourcePath != "" {
		if err := r.Reload(); err != nil {
			log.Error("initial catalog load failed, starting with an empty catalog", "error", err)
		}
	}

	approvals := catalog.NewApprovals()
	bus := offering.NewBus()
	engine := offering.New(guard, approvals, fragmenter, bus)
	extended := extendedinfo.New(guard, fragmenter, cfg.ContentHTTPRoot, nil)

	monitor := health.NewMonitor()
	registerHealthChecks(monitor, guard, store)

	fanoutPool := workerpool.New(eventFanoutWorkers, eventFanoutQueue)
	defer fanoutPool.Drain(context.Background())
	eventServer := websocket.NewEventServer(bus, fanoutPool)

	adminHandler := admin.New(cfg.Admin.EnabledAuthToken, approvals, r, eventServer, auditLog)

	mux := http.NewServeMux()
	mux.Handle("/ClientWebService/client.asmx", soap.NewClientHandler(engine, extended))
	mux.Handle("/SimpleAuthWebService/SimpleAuth.asmx", soap.NewStubHandler("SimpleAuthWebService"))
	mux.Handle("/ReportingWebService/ReportingWebService.asmx", soap.NewStubHandler("ReportingWebService"))
	mux.Handle("/Content/", router)
	mux.Handle("/admin/", adminHandler)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		writeHealthz(w, monitor)
	})

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}

	if cfg.TLSCertFile != "" {
		tlsConfig, err := mtls.BuildServerTLSConfig(cfg.TLSCertFile, cfg.TLSKeyFile)
		if err != nil {
			return fmt.Errorf("build TLS config: %w", err)
		}
		server.TLSConfig = tlsConfig
		if leaf, err := mtls.LeafCertificate(&tlsConfig.Certificates[0]); err == nil {
			mtls.CheckExpiry(leaf)
		}
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("wsusd listening", "addr", cfg.ListenAddr, "tls", cfg.TLSCertFile != "")
		var err error
		if cfg.TLSCertFile != "" {
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server failed: %w", err)
	case <-sigChan:
		log.Info("shutting down")
	}

	auditLog.Log(audit.EventServerStop, "", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func registerHealthChecks(monitor *health.Monitor, guard *catalog.Guard, store content.Store) {
	if guard.Published() {
		monitor.Update("catalog", health.Healthy, "")
	} else {
		monitor.Update("catalog", health.Degraded, "no catalog published")
	}
	if store != nil {
		monitor.Update("content-store", health.Healthy, "")
	} else {
		monitor.Update("content-store", health.Unhealthy, "no content store configured")
	}
}

func writeHealthz(w http.ResponseWriter, monitor *health.Monitor) {
	summary := monitor.Summary()
	status := http.StatusOK
	if overall, _ := summary["status"].(string); overall != string(health.Healthy) {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(summary)
}
