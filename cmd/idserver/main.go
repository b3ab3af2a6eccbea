// idserver - TimeID generator speaking the PostgreSQL wire protocol
//
// Any PostgreSQL client can ask it for new identifiers with
// SELECT new_timeid(), and decode existing ones with the timeid_* functions.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/duramec/id"
	"github.com/duramec/id/internal/export"
	"github.com/duramec/id/internal/protocol"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

const version = "idserver 1.0.0 - PostgreSQL compatible TimeID service"

func main() {
	args := os.Args[1:]
	cmd := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "serve":
		err = runServer(args)
	case "new":
		err = runNew(os.Stdout, args)
	case "inspect":
		err = runInspect(os.Stdout, args)
	case "eui48", "eui64":
		err = runAddress(os.Stdout, cmd, args)
	case "leases":
		err = runLeases(os.Stdout, args)
	case "export":
		err = runExport(os.Stdout, args)
	case "help", "--help", "-h":
		printHelp(os.Stdout)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		printHelp(os.Stderr)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "idserver %s: %v\n", cmd, err)
		os.Exit(1)
	}
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w, `idserver - TimeID generator with a PostgreSQL wire interface

Usage:
  idserver [serve] [flags]         Start the server
  idserver new [flags]             Print new TimeIDs
  idserver inspect ID...           Decode TimeIDs
  idserver eui48 ADDR...           Normalize 48-bit addresses
  idserver eui64 ADDR...           Normalize 64-bit addresses
  idserver leases [flags] CMD      Administer Redis node leases
                                   (list, cleanup, release KEY, counter [set N | reset])
  idserver export [flags]          Print PostgreSQL functions decoding TimeIDs

Server flags (defaults from IDSERVER_* environment variables):
  --port int           Port to listen on (default 5433)
  --node string        Node address (static) or interface name (interface)
  --node-source string static, interface, random, stored or redis
  --data string        Directory or bucket for the stored node source
  --payload int        14-bit payload stamped on every id
  --metrics-port int   Serve Prometheus metrics on this port (0 disables)
  --dev                Human-readable logs
  --log-level string   debug, info, warn or error (default info)`)
}

func runServer(args []string) error {
	cfg, err := id.ServerConfigFromEnv()
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	port := fs.Int("port", cfg.Port, "Port to listen on")
	node := fs.String("node", cfg.Node, "Node address or interface name")
	source := fs.String("node-source", cfg.NodeSource, "Node source")
	data := fs.String("data", cfg.Backend.Bucket, "Directory or bucket for the stored node source")
	payload := fs.Uint("payload", uint(cfg.Generator.Payload), "14-bit payload")
	metricsPort := fs.Int("metrics-port", 0, "Prometheus metrics port")
	dev := fs.Bool("dev", false, "Human-readable logs")
	logLevel := fs.String("log-level", envOr("IDSERVER_LOG_LEVEL", "info"), "Minimum log level")
	fs.Parse(args)

	cfg.Port, cfg.Node, cfg.NodeSource, cfg.Backend.Bucket = *port, *node, *source, *data
	if flagSet(fs, "node") && !flagSet(fs, "node-source") && os.Getenv("IDSERVER_NODE_SOURCE") == "" {
		cfg.NodeSource = id.NodeSourceStatic
	}
	if *payload > id.MaxPayload {
		return fmt.Errorf("payload %d does not fit in 14 bits", *payload)
	}
	cfg.Generator.Payload = uint16(*payload)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := id.NewZapLoggerAtLevel(*logLevel, *dev)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := id.NewPrometheusMetrics(prometheus.NewRegistry())
	if *metricsPort > 0 {
		metricsServer := &http.Server{
			Addr:              fmt.Sprintf(":%d", *metricsPort),
			Handler:           metrics.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer metricsServer.Close()
	}

	provider, release, err := id.OpenNodeProvider(ctx, cfg, logger, metrics)
	if err != nil {
		return err
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := release(releaseCtx); err != nil {
			logger.Warn("failed to release node", "error", err)
		}
	}()

	gen, err := id.NewGeneratorFromProvider(ctx, provider, id.NewMonotonicClock(id.NewSystemClock()), cfg.Generator, logger, metrics)
	if err != nil {
		return err
	}
	logger.Info("generator ready",
		"node", gen.Node().String(),
		"node_source", cfg.NodeSource,
		"payload", gen.Payload(),
	)

	// a lost redis lease means another process may now own this node
	if alloc, ok := provider.(*id.RedisNodeAllocator); ok {
		leaseCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := alloc.KeepAlive(leaseCtx); err != nil {
				logger.Error("node lease lost, shutting down", "error", err)
				stop()
			}
		}()
	}

	server := protocol.NewServer(cfg.Port, gen, version, logger, metrics)
	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		return server.Close()
	}
}

func flagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func runNew(w io.Writer, args []string) error {
	fs := flag.NewFlagSet("new", flag.ContinueOnError)
	fs.SetOutput(w)
	count := fs.Int("n", 1, "Number of ids")
	node := fs.String("node", "", "Node address (default: random multicast node)")
	payload := fs.Uint("payload", 0, "14-bit payload")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *payload > id.MaxPayload {
		return fmt.Errorf("payload %d does not fit in 14 bits", *payload)
	}
	if *count < 0 {
		return fmt.Errorf("count must not be negative: %d", *count)
	}

	var provider id.NodeProvider = id.NewRandomNode()
	if *node != "" {
		addr, err := id.ParseEUI48(*node)
		if err != nil {
			return err
		}
		provider = id.NewStaticNode(addr)
	}

	ctx := context.Background()
	gen, err := id.NewGeneratorFromProvider(ctx, provider, nil, id.GeneratorConfig{Payload: uint16(*payload)}, nil, nil)
	if err != nil {
		return err
	}
	ids, err := gen.NextN(ctx, *count)
	if err != nil {
		return err
	}
	for _, t := range ids {
		fmt.Fprintln(w, t)
	}
	return nil
}

func runInspect(w io.Writer, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: idserver inspect ID...")
	}
	for i, s := range args {
		t, err := id.ParseAnyTimeID(s)
		if err != nil {
			return err
		}
		scheme, _ := id.SchemeOf(t)
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "id:       %s\n", t)
		fmt.Fprintf(w, "scheme:   %s\n", scheme)
		fmt.Fprintf(w, "variant:  %d\n", t.Variant())
		fmt.Fprintf(w, "tick:     %d\n", t.Tick())
		fmt.Fprintf(w, "time:     %s\n", t.Time().Format(time.RFC3339Nano))
		fmt.Fprintf(w, "node:     %s\n", t.NodeEUI48())
		fmt.Fprintf(w, "payload:  %d\n", t.Payload())
		fmt.Fprintf(w, "hash:     %08x\n", t.Hash())
	}
	return nil
}

func runAddress(w io.Writer, kind string, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: idserver %s ADDR...", kind)
	}
	for _, s := range args {
		var canonical, bare string
		switch kind {
		case "eui48":
			a, err := id.ParseEUI48(s)
			if err != nil {
				return err
			}
			canonical, bare = a.String(), a.StringNoPunctuation()
		default:
			a, err := id.ParseEUI64(s)
			if err != nil {
				return err
			}
			canonical, bare = a.String(), a.StringNoPunctuation()
		}
		fmt.Fprintf(w, "%s\t%s\n", canonical, bare)
	}
	return nil
}

func runLeases(w io.Writer, args []string) error {
	fs := flag.NewFlagSet("leases", flag.ContinueOnError)
	fs.SetOutput(w)
	prefix := fs.String("prefix", id.DefaultAllocatorConfig().KeyPrefix, "Redis key prefix")
	minAge := fs.Duration("min-age", time.Hour, "Minimum lease age removed by cleanup")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client := redis.NewClient(id.RedisOptions())
	defer client.Close()
	return leasesCommand(context.Background(), w, id.NewLeaseManager(client, *prefix, nil, nil), *minAge, fs.Args())
}

func leasesCommand(ctx context.Context, w io.Writer, manager *id.LeaseManager, minAge time.Duration, args []string) error {
	cmd := "list"
	if len(args) > 0 {
		cmd = args[0]
	}

	switch cmd {
	case "list":
		value, err := manager.NodeCounter().Get(ctx)
		if err != nil {
			return err
		}
		leases, err := manager.ListLeases(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "counter=%d\tleases=%d\n", value, len(leases))
		for _, l := range leases {
			age := "-"
			if !l.AcquiredAt.IsZero() {
				age = time.Since(l.AcquiredAt).Round(time.Second).String()
			}
			fmt.Fprintf(w, "%s\tnode=%s\tttl=%s\tage=%s\n", l.Key, l.Node, l.TTL.Round(time.Millisecond), age)
		}
		return nil
	case "cleanup":
		removed, err := manager.CleanupOrphaned(ctx, minAge)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "removed %d leases\n", removed)
		return nil
	case "release":
		if len(args) != 2 {
			return errors.New("usage: idserver leases release KEY")
		}
		return manager.ForceRelease(ctx, args[1])
	case "counter":
		return counterCommand(ctx, w, manager.NodeCounter(), args[1:])
	default:
		return fmt.Errorf("unknown leases command %q", cmd)
	}
}

// counterCommand shows or repairs the node suffix counter. Setting it back
// is safe only because live leases are skipped during allocation.
func counterCommand(ctx context.Context, w io.Writer, counter *id.Counter, args []string) error {
	switch {
	case len(args) == 0:
	case args[0] == "reset" && len(args) == 1:
		if err := counter.Reset(ctx); err != nil {
			return err
		}
	case args[0] == "set" && len(args) == 2:
		value, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil || value < 0 {
			return fmt.Errorf("counter value must be a non-negative integer: %q", args[1])
		}
		if err := counter.Set(ctx, value); err != nil {
			return err
		}
	default:
		return errors.New("usage: idserver leases counter [set N | reset]")
	}

	value, err := counter.Get(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s=%d\n", counter.Key(), value)
	return nil
}

func runExport(w io.Writer, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(w)
	table := fs.String("table", "", "Also create this table and fill it with new ids")
	count := fs.Int("n", 0, "Number of ids to insert with --table")
	node := fs.String("node", "", "Node address for inserted ids (default: random)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *table == "" {
		fmt.Fprint(w, export.ExportDDL())
		return nil
	}

	var provider id.NodeProvider = id.NewRandomNode()
	if *node != "" {
		addr, err := id.ParseEUI48(*node)
		if err != nil {
			return err
		}
		provider = id.NewStaticNode(addr)
	}
	if *count < 0 {
		return fmt.Errorf("count must not be negative: %d", *count)
	}
	ctx := context.Background()
	gen, err := id.NewGeneratorFromProvider(ctx, provider, nil, id.GeneratorConfig{}, nil, nil)
	if err != nil {
		return err
	}
	ids, err := gen.NextN(ctx, *count)
	if err != nil {
		return err
	}
	fmt.Fprint(w, export.Export(*table, ids))
	return nil
}
