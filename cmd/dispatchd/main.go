// Command dispatchd is the MES dispatch server: it loads the station
// graph, process-capability, and product-plan documents, seeds the order
// pool, and serves station-action queries over TCP alongside an HTTP
// health/metrics endpoint.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stationmesh/dispatch/internal/config"
	"github.com/stationmesh/dispatch/internal/dispatch"
	"github.com/stationmesh/dispatch/internal/distribution"
	"github.com/stationmesh/dispatch/internal/order"
	"github.com/stationmesh/dispatch/internal/process"
	"github.com/stationmesh/dispatch/internal/product"
	"github.com/stationmesh/dispatch/internal/routecache"
	"github.com/stationmesh/dispatch/internal/server"
	"github.com/stationmesh/dispatch/internal/stationgraph"
	"github.com/stationmesh/dispatch/internal/tray"
	"github.com/stationmesh/dispatch/internal/visualization"
	"github.com/stationmesh/dispatch/pkg/observability"
	"golang.org/x/sync/errgroup"
)

const seedOrderCount = 100

func main() {
	configPath := flag.String("config", "config/server.json", "path to the server configuration document")
	dotPath := flag.String("dot", "system_graph.dot", "path to write the station graph visualization, empty to skip")
	redisURL := flag.String("redis-url", os.Getenv("DISPATCH_REDIS_URL"), "redis URL for the shortest-path route cache, empty to use an in-memory cache")
	flag.Parse()

	if err := run(*configPath, *dotPath, *redisURL); err != nil {
		fmt.Fprintln(os.Stderr, "dispatchd:", err)
		os.Exit(1)
	}
}

func run(configPath, dotPath, redisURL string) error {
	cfg, err := config.LoadServerConfig(configPath)
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	graph, err := buildGraph(cfg)
	if err != nil {
		return err
	}

	var cache *routecache.RedisCache
	if redisURL != "" {
		cache, err = routecache.NewRedisCache(redisURL, 5*time.Minute, logger)
		if err != nil {
			return err
		}
		defer cache.Close()
		graph.SetCache(cache)
		logger.Info(ctx, "route cache backed by redis", map[string]interface{}{"url": redisURL})
	}

	if dotPath != "" {
		if err := writeDot(graph, dotPath); err != nil {
			return err
		}
		logger.Info(ctx, "wrote station graph visualization", map[string]interface{}{"path": dotPath})
	}

	orders := order.NewManager(logger)
	procs, err := buildProcessManager(cfg, orders)
	if err != nil {
		return err
	}
	trays := tray.NewRegistry()

	for i := 0; i < seedOrderCount; i++ {
		orders.CreateOrder(procs.ProductType())
	}
	logger.Info(ctx, "seeded orders", map[string]interface{}{
		"count":        seedOrderCount,
		"product_type": procs.ProductType(),
	})

	engine := dispatch.New(graph, orders, procs, trays, logger)

	metrics, err := observability.NewMetricsProvider(observability.MetricsConfig{
		ServiceName: cfg.Observability.ServiceName,
		Namespace:   "dispatch",
		Enabled:     true,
	})
	if err != nil {
		return err
	}

	dispatcher := server.New(engine, logger, metrics, cfg.RateLimit)

	perfMonitor := observability.NewPerformanceMonitor(logger)
	defer perfMonitor.Stop()

	healthChecker := observability.NewHealthChecker(logger)
	healthServer := observability.NewHealthServer(healthChecker, observability.ServiceInfo{
		Name:      cfg.Observability.ServiceName,
		Version:   "1.0.0",
		StartTime: time.Now(),
	}, logger)

	mux := http.NewServeMux()
	healthServer.RegisterRoutes(mux)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("GET /health/performance", performanceHandler(perfMonitor))

	observabilityMW := observability.NewObservabilityMiddleware(logger, observability.MiddlewareConfig{
		ServiceName:   cfg.Observability.ServiceName,
		SlowThreshold: 500 * time.Millisecond,
	})

	httpAddr := fmt.Sprintf(":%d", cfg.MESService.BindPort+1)
	httpServer := &http.Server{Addr: httpAddr, Handler: observabilityMW.Wrap(mux)}

	tcpAddr := fmt.Sprintf(":%d", cfg.MESService.BindPort)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return dispatcher.ListenAndServe(gctx, tcpAddr)
	})
	if cache != nil {
		g.Go(func() error {
			reportCacheMetrics(gctx, cache, perfMonitor)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	logger.Info(ctx, "dispatchd started", map[string]interface{}{
		"tcp_addr":  tcpAddr,
		"http_addr": httpAddr,
	})

	return g.Wait()
}

func buildGraph(cfg *config.ServerConfig) (*stationgraph.StationGraph, error) {
	graphCfg, err := config.LoadGraphConfig(cfg.ProductionSystem.GraphFile)
	if err != nil {
		return nil, err
	}

	g := stationgraph.New()
	for _, v := range graphCfg.Vertices {
		g.AddVertex(stationgraph.Station{
			ID:             v.ID,
			Name:           v.Name,
			BufferCapacity: v.BufferCapacity,
			ServiceTime:    distributionFromSpec(v.ServiceTimeDistribution),
		})
	}
	for _, a := range graphCfg.Arcs {
		g.AddArc(stationgraph.Transfer{
			Tail:         a.Tail,
			Head:         a.Head,
			TransferTime: distributionFromSpec(a.TransferTimeDistribution),
		})
	}
	return g, nil
}

func distributionFromSpec(spec config.DistributionSpec) distribution.TimeDistribution {
	return distribution.FromParameters(spec.Type, spec.Parameters)
}

func buildProcessManager(cfg *config.ServerConfig, orders *order.Manager) (*process.Manager, error) {
	capsCfg, err := config.LoadCapabilitiesConfig(cfg.ProductionSystem.CapabilitiesFile)
	if err != nil {
		return nil, err
	}
	productsCfg, err := config.LoadProductsConfig(cfg.ProductInfo.ProductsFile)
	if err != nil {
		return nil, err
	}

	stationCapabilities := make(map[uint32][]uint8, len(capsCfg.Stations))
	var orderAssigning []uint32
	for _, s := range capsCfg.Stations {
		if s.ProcessCapability != nil {
			stationCapabilities[s.ID] = []uint8{uint8(*s.ProcessCapability)}
		}
		if s.IsOrderAssigningStation {
			orderAssigning = append(orderAssigning, s.ID)
		}
	}

	var prod product.Product
	found := false
	for _, p := range productsCfg.Products {
		if p.ProductType == cfg.ProductInfo.ProductType {
			procs := make([]uint8, len(p.Processes))
			for i, step := range p.Processes {
				procs[i] = step.ProcessID
			}
			prod = product.New(p.ProductType, p.ProductName, procs)
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("no product with type %d in %s", cfg.ProductInfo.ProductType, cfg.ProductInfo.ProductsFile)
	}

	lookup := func(orderID uint32) (process.OrderView, bool) {
		o, ok := orders.GetOrder(orderID)
		if !ok {
			return process.OrderView{}, false
		}
		return process.OrderView{ExecutedProcesses: o.ExecutedProcesses}, true
	}

	return process.New(stationCapabilities, orderAssigning, prod, lookup), nil
}

// reportCacheMetrics periodically feeds the route cache's hit rate and
// cumulative set count into the performance monitor until ctx is
// cancelled.
func reportCacheMetrics(ctx context.Context, cache *routecache.RedisCache, pm *observability.PerformanceMonitor) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hitRate, _, _, sets, _ := cache.Metrics().Snapshot()
			pm.RecordCacheMetrics(hitRate, sets, 0)
		}
	}
}

// performanceHandler serves the performance monitor's current health
// snapshot as JSON.
func performanceHandler(pm *observability.PerformanceMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(pm.GetHealthStatus())
	}
}

func writeDot(g *stationgraph.StationGraph, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return visualization.WriteDot(f, g)
}
