// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command rinad runs one RINA node process: the Kernel Flow Allocator, the
// Port-Id Manager it owns internally, the Link-State Routing core, and (when
// a supplicant control socket is configured) the shim-Wi-Fi STA.
package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"rina.dev/core/internal/clock"
	"rina.dev/core/internal/config"
	"rina.dev/core/internal/logging"
	"rina.dev/core/internal/metrics"
	"rina.dev/core/internal/rina/kfa"
	"rina.dev/core/internal/rina/lsr"
	"rina.dev/core/internal/rina/shimwifi"
)

func main() {
	configPath := flag.String("config", "", "path to YAML node configuration")
	metricsAddr := flag.String("metrics-addr", ":9632", "listen address for the Prometheus /metrics endpoint")
	supplicantURL := flag.String("supplicant-url", "", "websocket URL of the shim-Wi-Fi supplicant control socket (disabled if empty)")
	wlanIface := flag.String("wlan-iface", "wlan0", "Wi-Fi interface assigned to the shim DIF")
	flag.Parse()

	logger := logging.New("rinad", logging.DefaultOptions())

	cfg := config.DefaultNodeConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logger.Error("failed to load config", "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, *metricsAddr, *supplicantURL, *wlanIface); err != nil {
		logger.Error("rinad exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.NodeConfig, logger *logging.Logger, metricsAddr, supplicantURL, wlanIface string) error {
	reg := prometheus.NewRegistry()
	kfaMetrics := metrics.NewKFA(reg)
	lsrMetrics := metrics.NewLSR(reg)
	shimMetrics := metrics.NewShimWifi(reg)

	engine := kfa.New(cfg.PIDMWidth, logger, kfaMetrics)

	// The shim-Wi-Fi IPCP reserves its N-1 flow port up front, identified by
	// a freshly minted opaque id the way any IPCP attaching to the KFA would.
	shimIPCPID := uuid.NewString()
	shimPort, err := engine.ReservePort(shimIPCPID)
	if err != nil {
		return err
	}
	logger.Info("reserved shim-Wi-Fi N-1 flow port", "ipcp_id", shimIPCPID, "port", shimPort)

	core := lsr.NewCore(lsr.Options{
		Self:              lsr.Address(cfg.NodeAddress),
		MaxAge:            int(cfg.MaxAge / cfg.AgePeriod),
		AgePeriod:         cfg.AgePeriod,
		PropagationPeriod: cfg.PropagationPeriod,
		RoutingPeriod:     cfg.RoutingPeriod,
		WaitUntilRemove:   cfg.WaitUntilRemove,
		Clock:             clock.System,
		Logger:            logger,
		Metrics:           lsrMetrics,
	})

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return err
	}
	logger.Info("listening for LSR peers", "addr", cfg.ListenAddr)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{Addr: metricsAddr, Handler: mux}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return core.Run(ctx) })

	g.Go(func() error {
		return core.Flooder.ListenAndServe(ln, func(ingressPort int, batch []lsr.WireFSO) {
			core.DB.RemoteUpdate(ingressPort, batch)
			core.Recompute()
		})
	})

	g.Go(func() error {
		go func() {
			<-ctx.Done()
			_ = ln.Close()
			_ = metricsSrv.Close()
		}()
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	if supplicantURL != "" {
		g.Go(func() error { return runShimWifi(ctx, cfg, logger, shimMetrics, supplicantURL, wlanIface) })
	}

	return g.Wait()
}

// runShimWifi assigns the STA to the DIF named by the node's configuration
// and keeps it running until ctx is cancelled. Enrollment into a DAF is
// driven by the control plane, not at startup, so this only brings the
// station up to the Disconnected state and lets its scan loop run.
func runShimWifi(ctx context.Context, cfg config.NodeConfig, logger *logging.Logger, m *metrics.ShimWifi, supplicantURL, iface string) error {
	channel := shimwifi.NewWSChannel(supplicantURL, logger)
	sta := shimwifi.New(shimwifi.Options{
		Channel:           channel,
		ScanInterval:      cfg.ScanInterval,
		EnrollmentTimeout: cfg.EnrollmentTimeout,
		Clock:             clock.System,
		Logger:            logger,
		Metrics:           m,
	})

	if err := sta.AssignToDIF(ctx, iface); err != nil {
		return err
	}

	<-ctx.Done()
	return sta.Close()
}
