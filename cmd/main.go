package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"reflect"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aukilabs/flocktree/featureflag"
	ftHTTP "github.com/aukilabs/flocktree/http"
	"github.com/aukilabs/flocktree/models"
	"github.com/aukilabs/flocktree/render"
	"github.com/aukilabs/flocktree/simulation"
	"github.com/aukilabs/flocktree/smoketest"
	"github.com/aukilabs/flocktree/spatial"
	ftwebsocket "github.com/aukilabs/flocktree/websocket"
	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/events"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/gdamore/tcell/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

var (
	// The flocktree version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "flocktree_info",
		Help:        "Flocktree information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	AdminAddr          string        `cli:""        env:"FLOCKTREE_ADMIN_ADDR"             help:"Admin listening address."`
	LogLevel           string        `cli:""        env:"FLOCKTREE_LOG_LEVEL"              help:"Log level (debug|info|warning|error)."`
	LogIndent          bool          `cli:""        env:"FLOCKTREE_LOG_INDENT"             help:"Indent logs."`
	TreeType           string        `cli:""        env:"FLOCKTREE_TREE_TYPE"              help:"The spatial index used to find neighbors (none|quadtree|octree)."`
	MaxDepth           int           `cli:""        env:"FLOCKTREE_MAX_DEPTH"              help:"The maximum depth of the tree."`
	MaxEntitiesPerLeaf int           `cli:""        env:"FLOCKTREE_MAX_ENTITIES_PER_LEAF"  help:"The number of agents a leaf holds before subdividing."`
	HeightTolerance    float64       `cli:""        env:"FLOCKTREE_HEIGHT_TOLERANCE"       help:"The quadtree vertical neighbor filter. 0 disables it."`
	WorldSize          int           `cli:""        env:"FLOCKTREE_WORLD_SIZE"             help:"The world size along X and Y."`
	WorldHeight        int           `cli:""        env:"FLOCKTREE_WORLD_HEIGHT"           help:"The world height along Z."`
	Agents             int           `cli:""        env:"FLOCKTREE_AGENTS"                 help:"The number of simulated agents."`
	Speed              float64       `cli:""        env:"FLOCKTREE_SPEED"                  help:"The agent speed in units per second."`
	SeparationRange    float64       `cli:",hidden" env:"FLOCKTREE_SEPARATION_RANGE"       help:"The distance under which separating agents push each other."`
	Steering           string        `cli:""        env:"FLOCKTREE_STEERING"               help:"The agent steering (separation|alignment|cohesion|random)."`
	Seed               int64         `cli:",hidden" env:"FLOCKTREE_SEED"                   help:"The random seed of the world."`
	FrameDuration      time.Duration `cli:",hidden" env:"FLOCKTREE_FRAME_DURATION"         help:"The duration of a simulation frame."`
	RunDuration        time.Duration `cli:""        env:"FLOCKTREE_RUN_DURATION"           help:"Stops the simulation after the given duration. 0 runs until interrupted."`
	LogSummaryInterval time.Duration `cli:",hidden" env:"FLOCKTREE_LOG_SUMMARY_INTERVAL"   help:"The duration between each log summary by debug stream connection."`
	View               bool          `cli:""        env:"FLOCKTREE_VIEW"                   help:"Draws the world in the terminal."`
	Events             eventsConfig  `cli:",hidden" env:"-"                                help:"Event pusher configuration."`
	FeatureFlags       []string      `cli:",hidden" env:"FLOCKTREE_FEATURE_FLAGS"          help:"Comma separated feature flags"`
	Version            bool          `cli:""        env:"-"                                help:"Show version."`
	Help               bool          `cli:""        env:"-"                                help:"Show help."`
}

type eventsConfig struct {
	Endpoint      string        `cli:",hidden" env:"FLOCKTREE_EVENTS_ENDPOINT"       help:"Endpoint to where events are pushed."`
	FlushInterval time.Duration `cli:",hidden" env:"FLOCKTREE_EVENTS_FLUSH_INTERVAL" help:"The duration between each event flush."`
	BatchSize     int           `cli:",hidden" env:"FLOCKTREE_EVENTS_BATCH_SIZE"     help:"The maximum number of events sent at once."`
	QueueSize     int           `cli:",hidden" env:"FLOCKTREE_EVENTS_QUEUE_SIZE"     help:"The size of the queue where events are stored."`
}

func main() {
	defaults := simulation.DefaultConfig()

	conf := config{
		AdminAddr:          ":18190",
		LogLevel:           logs.InfoLevel.String(),
		TreeType:           string(defaults.TreeType),
		MaxDepth:           defaults.MaxDepth,
		MaxEntitiesPerLeaf: defaults.MaxEntitiesPerLeaf,
		HeightTolerance:    defaults.HeightTolerance,
		WorldSize:          int(defaults.WorldSize),
		WorldHeight:        int(defaults.WorldHeight),
		Agents:             defaults.AgentCount,
		Speed:              defaults.Speed,
		SeparationRange:    defaults.SeparationRange,
		Steering:           defaults.Steering,
		Seed:               defaults.Seed,
		FrameDuration:      time.Second / 60,
		LogSummaryInterval: time.Minute,
		Events: eventsConfig{
			FlushInterval: events.DefaultFlushInterval,
			BatchSize:     events.DefaultBatchSize,
			QueueSize:     events.DefaultQueueSize,
		},
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Starts a flocking simulation indexed by a quadtree or an octree.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := validateConfig(conf); err != nil {
		logs.Fatal(err)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	if conf.View {
		// Logs written to stdout would corrupt the terminal view.
		logs.SetLogger(func(logs.Entry) {})
	}

	if conf.Events.Endpoint != "" {
		eventsPusher := events.Pusher{
			Endpoint:      conf.Events.Endpoint,
			FlushInterval: conf.Events.FlushInterval,
			BatchSize:     conf.Events.BatchSize,
			QueueSize:     conf.Events.QueueSize,
			Transport:     metrics.HTTPTransport(http.DefaultTransport),
		}
		go eventsPusher.Start()
		defer eventsPusher.Close()

		eventsLogger := events.Logger{
			Pusher:           &eventsPusher,
			SDKType:          "flocktree",
			SDKVersionFamily: version,
		}
		logs.SetLogger(eventsLogger.Log)
	}

	if conf.RunDuration > 0 {
		ctx, cancel = context.WithTimeout(ctx, conf.RunDuration)
		defer cancel()
	}

	flags := conf.FeatureFlags
	if conf.View {
		flags = append(flags, string(featureflag.FlagVisualize))
	}

	session := models.NewSession(1, conf.FrameDuration)

	world, err := simulation.NewWorld(session, worldConfig(conf, flags))
	if err != nil {
		logs.Fatal(errors.New("creating world failed").Wrap(err))
	}

	cancelFrames := session.HandleFrame(world.HandleFrame)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		session.StartDispatchFrames()
	}()

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", ftHTTP.HandleHealthCheck)
	admin.HandleFunc("/ready", ftHTTP.HandleReadyCheck(func() bool {
		return session.FrameCount() != 0
	}))
	admin.HandleFunc("/version", ftHTTP.HandleVersion(version))
	admin.HandleFunc("/debug/tree", ftHTTP.HandleDebugTree(world))
	admin.Handle("/debug/stream", websocket.Server{
		Handler: func(conn *websocket.Conn) {
			var h ftwebsocket.Handler = &ftwebsocket.StreamHandler{
				Source:   world,
				Interval: conf.FrameDuration,
			}
			h = ftwebsocket.HandlerWithLogs(h, conf.LogSummaryInterval)
			h = ftwebsocket.HandlerWithMetrics(h)
			defer h.Close()

			ftwebsocket.Handle(ctx, conn, h)
		},
	})
	admin.HandleFunc("/smoke-test", smoketest.HandleSmokeTest(ctx, smoketest.Options{
		Endpoint: debugStreamEndpoint(conf.AdminAddr),
		Timeout:  smoketest.DefaultTimeout,
		SendResult: func(ctx context.Context, res smoketest.Results) error {
			entry := logs.WithTag("smoke_test", res)
			if res.Success {
				entry.Info("smoke test succeeded")
			} else {
				entry.Warn(errors.New("smoke test failed"))
			}
			return nil
		},
	}))
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))

	if conf.View {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer cancel()

			if err := runViewer(ctx, world, conf.FrameDuration); err != nil {
				logs.Error(errors.New("terminal view failed").Wrap(err))
			}
		}()
	}

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("tree_type", conf.TreeType).
		WithTag("agents", conf.Agents).
		WithTag("steering", conf.Steering).
		WithTag("feature_flags", featureflag.New(flags).Flags()).
		Info("starting flocktree")

	err = ftHTTP.ListenAndServe(ctx, 5*time.Second,
		&http.Server{
			Addr: conf.AdminAddr,
			Handler: ftHTTP.HandleWithCORS(metrics.HTTPHandler(&admin,
				ftHTTP.MetricsPathFormatter)),
		},
	)
	if err != nil {
		logs.Error(errors.New("admin server failed").Wrap(err))
	}
	cancel()

	cancelFrames()
	session.Close()
	wg.Wait()
	world.Close()
}

func worldConfig(conf config, flags []string) simulation.Config {
	return simulation.Config{
		TreeType:           simulation.TreeType(conf.TreeType),
		MaxDepth:           conf.MaxDepth,
		MaxEntitiesPerLeaf: conf.MaxEntitiesPerLeaf,
		HeightTolerance:    conf.HeightTolerance,
		WorldSize:          float64(conf.WorldSize),
		WorldHeight:        float64(conf.WorldHeight),
		AgentCount:         conf.Agents,
		Speed:              conf.Speed,
		SeparationRange:    conf.SeparationRange,
		Steering:           conf.Steering,
		Seed:               conf.Seed,
		FeatureFlags:       featureflag.New(flags),
		Metrics:            spatial.PrometheusMetrics{Tree: conf.TreeType},
	}
}

func runViewer(ctx context.Context, source render.FrameSource, refreshInterval time.Duration) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return errors.New("creating screen failed").Wrap(err)
	}
	if err := screen.Init(); err != nil {
		return errors.New("initializing screen failed").Wrap(err)
	}
	defer screen.Fini()

	return render.NewViewer(screen, source, refreshInterval).Run(ctx)
}

func debugStreamEndpoint(adminAddr string) string {
	if strings.HasPrefix(adminAddr, ":") {
		adminAddr = "localhost" + adminAddr
	}
	return "ws://" + adminAddr + "/debug/stream"
}

func validateConfig(conf config) error {
	switch simulation.TreeType(conf.TreeType) {
	case simulation.TreeTypeNone, simulation.TreeTypeQuadtree, simulation.TreeTypeOctree:
	default:
		return errors.New("invalid tree type").WithTag("tree_type", conf.TreeType)
	}

	if conf.FrameDuration <= 0 {
		return errors.New("frame duration must be positive").
			WithTag("frame_duration", conf.FrameDuration)
	}

	if conf.RunDuration < 0 {
		return errors.New("run duration can't be negative").
			WithTag("run_duration", conf.RunDuration)
	}

	return nil
}
