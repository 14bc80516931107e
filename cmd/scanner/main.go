// Pingcrafty scanner — enumerates reachable Minecraft server listings
// across a target range and records normalized results.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/LK-Customs/Pingcrafty/internal/blacklist"
	"github.com/LK-Customs/Pingcrafty/internal/dialer"
	"github.com/LK-Customs/Pingcrafty/internal/geo"
	"github.com/LK-Customs/Pingcrafty/internal/persistence"
	"github.com/LK-Customs/Pingcrafty/internal/pipeline"
	"github.com/LK-Customs/Pingcrafty/internal/scanner"
	"github.com/LK-Customs/Pingcrafty/internal/target"
	"github.com/LK-Customs/Pingcrafty/internal/worker"
)

// Exit codes per spec.md §6.
const (
	exitOK             = 0
	exitConfigError    = 1
	exitStartupIOError = 2
	exitInterrupted    = 130
)

func main() {
	os.Exit(run())
}

func run() int {
	cfgFile := flag.String("config", "config.json", "Path to configuration file")
	version := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *version {
		fmt.Println("pingcrafty-scanner v0.1.0")
		return exitOK
	}

	cfg, err := loadConfig(*cfgFile)
	if err != nil {
		log.Printf("config error: %v", err)
		return exitConfigError
	}

	source, total, err := buildSource(cfg)
	if err != nil {
		log.Printf("startup error: building target source: %v", err)
		return exitStartupIOError
	}

	sink, err := persistence.NewSQLiteSink(cfg.sinkConfig())
	if err != nil {
		log.Printf("startup error: opening persistence sink: %v", err)
		return exitStartupIOError
	}

	list, err := blacklist.New(cfg.blacklistConfig())
	if err != nil {
		log.Printf("startup error: loading blacklist: %v", err)
		return exitStartupIOError
	}
	defer list.Stop()

	geoCache, err := buildGeoCache(cfg)
	if err != nil {
		if cfg.Geolocation.Required {
			log.Printf("startup error: geolocation: %v", err)
			return exitStartupIOError
		}
		log.Printf("warning: geolocation disabled: %v", err)
	}
	if geoCache != nil {
		defer geoCache.Stop()
	}

	hooks, deadLetterErr := buildHooks(cfg, list, geoCache, sink)
	if deadLetterErr != nil {
		log.Printf("startup error: wiring pipeline: %v", deadLetterErr)
		return exitStartupIOError
	}

	d, err := dialer.New(cfg.dialerConfig())
	if err != nil {
		log.Printf("startup error: building dialer: %v", err)
		return exitStartupIOError
	}

	sc := scanner.New(scanner.Config{
		BatchSize:   cfg.Discovery.BatchSize,
		GracePeriod: time.Duration(cfg.GracePeriodSeconds) * time.Second,
		RefreshRate: cfg.RefreshRate,
		Concurrency: worker.Config{
			Concurrency:           cfg.Concurrency.MaxConcurrent,
			MaxConnectionsPerHost: cfg.Concurrency.MaxConnectionsPerHost,
			Protocol:              cfg.protocolOptions(),
		},
		RateLimit: cfg.rateLimitConfig(),
		Memory:    cfg.memoryConfig(),
	}, source, total, list, geoEvictable(geoCache), d, hooks, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var interrupted atomic.Bool
	go func() {
		<-sigCh
		log.Printf("shutting down...")
		interrupted.Store(true)
		sc.Shutdown()
	}()

	go printProgress(sc)
	if cfg.HTTP.Listen != "" {
		go sc.HTTPServe(ctx, cfg.HTTP.Listen)
	}

	if err := sc.Run(ctx); err != nil {
		log.Printf("scanner run: %v", err)
	}

	if interrupted.Load() {
		return exitInterrupted
	}
	return exitOK
}

func printProgress(sc *scanner.Scanner) {
	for event := range sc.Progress {
		s := event.Snapshot
		errs := s.Timeout + s.Refused + s.Unreachable + s.ProtocolError
		log.Printf("attempted=%d success=%d timeout=%d refused=%d errors=%d rate=%.1f/s eta=%s",
			s.Attempted, s.Success+s.LegacyDetected, s.Timeout, s.Refused, errs, s.RatePerSecond, event.ETA.Round(time.Second))
	}
}

// geoEvictable adapts a possibly-nil *geo.Cache to scanner's narrow
// evictable interface without scanner importing internal/geo.
func geoEvictable(c *geo.Cache) interface{ EvictOldest(n int) } {
	if c == nil {
		return nil
	}
	return c
}

func buildSource(cfg *Config) (target.Source, uint64, error) {
	ports := cfg.ports()
	switch cfg.Discovery.Method {
	case "range":
		rs, err := target.NewRangeSource(target.RangeConfig{
			Ranges:             cfg.Discovery.Ranges,
			Ports:              ports,
			SkipPrivateRanges:  cfg.Advanced.SkipPrivateRanges,
			SkipReservedRanges: cfg.Advanced.SkipReservedRanges,
			RandomizeScanOrder: cfg.Advanced.RandomizeScanOrder,
			BatchSize:          cfg.Discovery.BatchSize,
		})
		if err != nil {
			return nil, 0, err
		}
		return rs, rs.Count(), nil
	case "file":
		f, err := os.Open(cfg.Discovery.FilePath)
		if err != nil {
			return nil, 0, err
		}
		defaultPort := uint16(0)
		if len(ports) > 0 {
			defaultPort = ports[0]
		}
		return target.NewFileSource(f, defaultPort), 0, nil
	case "external":
		cmd := exec.Command(cfg.Discovery.Command[0], cfg.Discovery.Command[1:]...)
		defaultPort := uint16(0)
		if len(ports) > 0 {
			defaultPort = ports[0]
		}
		es, err := target.NewExternalSource(cmd, defaultPort)
		if err != nil {
			return nil, 0, err
		}
		return es, 0, nil
	default:
		return nil, 0, fmt.Errorf("unknown discovery.method %q", cfg.Discovery.Method)
	}
}

func buildGeoCache(cfg *Config) (*geo.Cache, error) {
	if !cfg.Geolocation.Enabled {
		return nil, nil
	}
	switch cfg.Geolocation.Provider {
	case "remote":
		p := geo.NewRemoteProvider("http://ip-api.com/json", 5*time.Second)
		return geo.NewCache(p, cfg.geoCacheDuration()), nil
	case "local", "":
		// The MaxMind database format is an external collaborator
		// (spec.md §1 non-goal); this build has no parser for it.
		return nil, errors.New("geolocation.provider \"local\" requires an embedder-supplied database reader, none configured")
	default:
		return nil, fmt.Errorf("unknown geolocation.provider %q", cfg.Geolocation.Provider)
	}
}

func buildHooks(cfg *Config, list *blacklist.Blacklist, geoCache *geo.Cache, sink persistence.Sink) ([]pipeline.Hook, error) {
	hooks := []pipeline.Hook{pipeline.NewFilterHook(list)}

	if geoCache != nil {
		hooks = append(hooks, pipeline.NewEnrichHook(geoCache))
	}

	persistHook, err := pipeline.NewPersistHook(sink, deadLetterPath(cfg))
	if err != nil {
		return nil, err
	}
	hooks = append(hooks, persistHook)

	if cfg.Webhook.Enabled {
		notifier := pipeline.NewWebhookNotifier(cfg.Webhook.URL, cfg.Webhook.IncludeStats)
		batchSize := cfg.Webhook.BatchSize
		if batchSize <= 0 {
			batchSize = 50
		}
		hooks = append(hooks, pipeline.NewNotifyHook(notifier, batchSize, 5*time.Second))
	}

	return hooks, nil
}

func deadLetterPath(cfg *Config) string {
	return cfg.Persistence.Path + ".deadletter.jsonl"
}
