// Command lavactl connects a cluster to the configured nodes, serves its
// metrics and optionally forwards node events to NATS. Arguments are
// loaded as track identifiers on the least loaded node.
//
//	LAVA_NODES=eu=localhost:2333,us=ws://10.0.0.2:2333 LAVA_USER_ID=123 lavactl ytsearch:lofi
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codewandler/lava-go/adapters/nats"
	prom "github.com/codewandler/lava-go/adapters/prometheus"
	"github.com/codewandler/lava-go/core/cluster"
	"github.com/codewandler/lava-go/core/conn"
	"github.com/codewandler/lava-go/core/node"
	"github.com/codewandler/lava-go/ports/kv"
)

// === Config ===

// NOTE: run a node: docker run --net=host ghcr.io/lavalink-devs/lavalink:3

var (
	nodesSpec   = getEnv("LAVA_NODES", "localhost:2333")
	password    = getEnv("LAVA_PASSWORD", "youshallnotpass")
	userID      = getEnv("LAVA_USER_ID", "")
	numShards   = getEnvInt("LAVA_SHARDS", 1)
	resumeKey   = getEnv("LAVA_RESUME_KEY", "")
	metricsAddr = getEnv("METRICS_ADDR", ":9090")
	useNats     = getEnvBool("NATS", false)
	watch       = getEnvBool("WATCH", true)
	debug       = getEnvBool("DEBUG", false)
)

func getEnvBool(key string, fallback bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	if v == "1" || strings.ToLower(v) == "true" {
		return true
	}
	return false
}

func getEnv(key, fallback string) string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, fmt.Sprintf("%d", fallback)))
	if err != nil {
		return fallback
	}
	return v
}

// parseNodes reads "id=address" pairs separated by commas. The id is
// optional; addresses without a scheme are host:port. The REST endpoint of a
// websocket URL is the same address over http.
func parseNodes(spec string) []node.Options {
	var out []node.Options
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		var o node.Options
		if id, addr, ok := strings.Cut(part, "="); ok {
			o.ID, part = id, addr
		}
		if strings.Contains(part, "://") {
			o.URL = part
			o.RESTURL = strings.Replace(strings.Replace(part, "wss://", "https://", 1), "ws://", "http://", 1)
		} else {
			o.Host = part
		}
		out = append(out, o)
	}
	return out
}

func main() {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(log)

	if err := run(log, os.Args[1:]); err != nil {
		log.Error("lavactl failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(log *slog.Logger, identifiers []string) error {
	if userID == "" {
		return errors.New("LAVA_USER_ID is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := prom.NewAllMetrics(reg)

	var store kv.Store
	var publisher *nats.Publisher
	if useNats {
		connect := nats.ReuseConnection(nats.ConnectDefault())

		kvStore, err := nats.NewKvStore(nats.KvConfig{Connect: connect, Log: log})
		if err != nil {
			return fmt.Errorf("resume store: %w", err)
		}
		defer kvStore.Close()
		store = kvStore

		publisher, err = nats.NewPublisher(nats.PublisherConfig{Connect: connect, Log: log})
		if err != nil {
			return fmt.Errorf("event publisher: %w", err)
		}
		defer func() { _ = publisher.Close() }()
	}

	nodes := parseNodes(nodesSpec)
	for i := range nodes {
		nodes[i].Password = password
		nodes[i].UserID = userID
		nodes[i].NumShards = numShards
		nodes[i].Conn = conn.Options{
			ResumeKey:   resumeKey,
			ResumeStore: store,
			Metrics:     metrics.Conn,
		}
	}

	c, err := cluster.New(cluster.Options{
		Log:         log,
		Nodes:       nodes,
		Metrics:     metrics.Cluster,
		NodeMetrics: metrics.Node,
	})
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.Destroy(ctx, 1000, "shutdown"); err != nil {
			log.Warn("shutdown incomplete", slog.Any("error", err))
		}
	}()

	if publisher != nil {
		if err := publisher.Attach(c); err != nil {
			return err
		}
	}

	c.Subscribe(func(e node.Event) {
		switch e.Type {
		case node.EventOpen:
			log.Info("node connected", slog.String("node", e.Node.ID()))
		case node.EventClose:
			log.Info("node disconnected", slog.String("node", e.Node.ID()), slog.Int("code", e.Code), slog.String("reason", e.Reason))
		}
	})

	if metricsAddr != "" {
		srv := &http.Server{
			Addr:              metricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		defer func() { _ = srv.Close() }()
		log.Info("serving metrics", slog.String("addr", metricsAddr))
	}

	if err := c.Connect(ctx); err != nil {
		log.Warn("some nodes failed to connect", slog.Any("error", err))
	}
	log.Info("cluster ready", slog.Any("connected", c.ConnectedIDs()), slog.Any("nodes", c.NodeIDs()))

	for _, identifier := range identifiers {
		if err := load(ctx, c, identifier); err != nil {
			log.Error("load failed", slog.String("identifier", identifier), slog.Any("error", err))
		}
	}

	if !watch {
		return nil
	}
	<-ctx.Done()
	return nil
}

func load(ctx context.Context, c *cluster.Cluster, identifier string) error {
	nodes := c.Sort()
	if len(nodes) == 0 {
		return cluster.ErrNoNode
	}

	res, err := nodes[0].Load(ctx, identifier)
	if err != nil {
		return err
	}

	fmt.Printf("%s (%s on %s)\n", identifier, res.LoadType, nodes[0].ID())
	if res.PlaylistInfo.Name != "" {
		fmt.Printf("  playlist: %s\n", res.PlaylistInfo.Name)
	}
	for i, t := range res.Tracks {
		length := time.Duration(t.Info.Length) * time.Millisecond
		fmt.Printf("  %3d | %-40.40s | %-20.20s | %8s\n", i+1, t.Info.Title, t.Info.Author, length)
	}
	return nil
}
