// Command elocute analyzes a spoken audio stream and reports word confidence,
// prosody, and fluency metrics for the session.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/rafizsust/elocute/internal/analysis/confidence"
	"github.com/rafizsust/elocute/internal/analysis/fluency"
	"github.com/rafizsust/elocute/internal/config"
	"github.com/rafizsust/elocute/internal/grading"
	"github.com/rafizsust/elocute/internal/health"
	"github.com/rafizsust/elocute/internal/observe"
	"github.com/rafizsust/elocute/internal/session"
	"github.com/rafizsust/elocute/pkg/capture"
	"github.com/rafizsust/elocute/pkg/capture/pcm"
	"github.com/rafizsust/elocute/pkg/capture/vad"
	"github.com/rafizsust/elocute/pkg/capture/vad/webrtc"
	"github.com/rafizsust/elocute/pkg/recognizer/gateway"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── Environment & CLI flags ────────────────────────────────────────────────
	// .env is optional; real environment variables win over file entries.
	_ = godotenv.Load()

	configPath := flag.String("config", "config.yml", "path to the YAML configuration file")
	inputPath := flag.String("input", "", "PCM16LE audio source (overrides input.path; \"-\" = stdin)")
	listenAddr := flag.String("listen", "", "health/metrics listen address (overrides listen_addr)")
	logLevel := flag.String("log-level", "", "log verbosity (overrides log_level)")
	gatewayURL := flag.String("gateway", "", "recognition gateway WebSocket URL (overrides recognizer.gateway_url)")
	gradeEndpoint := flag.String("grade-endpoint", "", "grading service URL (overrides grading.endpoint)")
	flag.Parse()

	explicitConfig := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			explicitConfig = true
		}
	})

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	fromFile := err == nil
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) || explicitConfig {
			fmt.Fprintf(os.Stderr, "elocute: %v\n", err)
			return 1
		}
		// No config file is fine when everything comes from flags.
		cfg = config.Default()
	}

	if *inputPath != "" {
		cfg.Input.Path = *inputPath
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *logLevel != "" {
		cfg.LogLevel = config.LogLevel(*logLevel)
	}
	if *gatewayURL != "" {
		cfg.Recognizer.GatewayURL = *gatewayURL
		cfg.Recognizer.Engine = config.RecognizerGateway
	}
	if *gradeEndpoint != "" {
		cfg.Grading.Endpoint = *gradeEndpoint
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "elocute: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	levelVar := new(slog.LevelVar)
	levelVar.Set(cfg.LogLevel.SlogLevel())
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar}))
	slog.SetDefault(logger)

	slog.Info("elocute starting",
		"config", *configPath,
		"listen_addr", cfg.ListenAddr,
		"log_level", cfg.LogLevel,
	)

	if cfg.Recognizer.Engine != config.RecognizerGateway {
		fmt.Fprintln(os.Stderr, "elocute: no recognition gateway configured; pass -gateway or set recognizer.gateway_url")
		return 1
	}

	// ── Signal context ────────────────────────────────────────────────────────
	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	obsShutdown, err := observe.InitProvider(sigCtx, observe.ProviderConfig{ServiceName: "elocute"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := obsShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Config watcher ────────────────────────────────────────────────────────
	// Hot-reload only makes sense when the config actually came from a file.
	if fromFile {
		watcher, err := config.NewWatcher(*configPath, func(oldCfg, newCfg *config.Config) {
			diff := config.Diff(oldCfg, newCfg)
			if diff.LogLevelChanged {
				levelVar.Set(diff.NewLogLevel.SlogLevel())
				slog.Info("log level updated", "log_level", diff.NewLogLevel)
			}
			if diff.AnalysisChanged || diff.GradingChanged {
				slog.Info("analysis/grading settings changed, applied to the next session")
			}
			if diff.RequiresRestart {
				slog.Warn("configuration change requires a restart to take effect")
			}
		})
		if err != nil {
			slog.Error("failed to start config watcher", "err", err)
			return 1
		}
		defer watcher.Stop()
	}

	// ── Silence detector ──────────────────────────────────────────────────────
	detector, err := buildDetector(cfg.Capture.VAD)
	if err != nil {
		slog.Error("failed to create silence detector", "err", err)
		return 1
	}
	defer detector.Close()

	// ── Recognition engine ────────────────────────────────────────────────────
	engine, err := buildGateway(cfg.Recognizer, cfg.Capture.SampleRate)
	if err != nil {
		slog.Error("failed to create recognition engine", "err", err)
		return 1
	}
	defer engine.Close()

	// ── Audio source ──────────────────────────────────────────────────────────
	src, closeSrc, err := openInput(cfg.Input.Path)
	if err != nil {
		slog.Error("failed to open audio source", "err", err)
		return 1
	}
	defer closeSrc()

	device := pcm.New(src)
	// Every captured window is mirrored to the engine; the analysis pipeline
	// stays the primary consumer.
	teed := capture.Tee(device, engine)

	// ── Grading submitter ─────────────────────────────────────────────────────
	var submitter grading.Submitter
	if cfg.Grading.Endpoint != "" {
		submitter = grading.NewHTTPSubmitter(cfg.Grading.Endpoint, grading.WithTimeout(cfg.Grading.Timeout()))
	}

	manager := session.NewManager()

	printStartupSummary(cfg)

	// ── Serve ─────────────────────────────────────────────────────────────────
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if cfg.ListenAddr != "" {
		mux := http.NewServeMux()
		health.New(
			health.Checker{Name: "input", Check: func(context.Context) error {
				select {
				case <-device.Exhausted():
					return errors.New("audio source exhausted")
				default:
					return nil
				}
			}},
			health.Checker{Name: "session", Check: func(context.Context) error {
				if !manager.IsActive() {
					return errors.New("no active session")
				}
				return nil
			}},
		).Register(mux)
		mux.Handle("GET /metrics", promhttp.Handler())

		srv := &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           observe.Middleware(observe.DefaultMetrics())(mux),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			slog.Info("http endpoint listening", "addr", cfg.ListenAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		// The session drives the process lifetime: once it finishes, the
		// HTTP surface has nothing left to report on.
		defer cancel()
		return runSession(gctx, cfg, manager, session.Config{
			Device:     teed,
			Recognizer: engine,
			Capture:    capture.Config{SampleRate: cfg.Capture.SampleRate, Window: cfg.Capture.Window()},
			Detector:   detector,
			Tracker:    buildTracker(cfg.Analysis),
			OnInterim:  func(text string) { slog.Debug("interim transcript", "text", text) },
			OnError:    func(code string, err error) { slog.Warn("recognition error", "code", code, "err", err) },
			Restart: session.RestartPolicy{
				MaxAttempts: cfg.Recognizer.Restart.MaxAttempts,
				Backoff:     cfg.Recognizer.Restart.Backoff(),
				MaxBackoff:  cfg.Recognizer.Restart.MaxBackoff(),
			},
		}, device, submitter)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// runSession captures and analyzes one session, prints the report to stdout,
// and optionally submits it for grading. It returns when the audio source is
// exhausted or ctx is canceled.
func runSession(ctx context.Context, cfg *config.Config, manager *session.Manager, sessCfg session.Config, device *pcm.Device, submitter grading.Submitter) error {
	sess, err := manager.Begin(ctx, sessCfg)
	if err != nil {
		return fmt.Errorf("begin session: %w", err)
	}
	slog.Info("session started, press Ctrl+C to stop early", "session_id", sess.ID())

	select {
	case <-device.Exhausted():
		slog.Info("audio source exhausted, finishing session")
	case <-ctx.Done():
		slog.Info("shutdown requested, finishing session")
	}

	result, err := manager.Stop()
	if err != nil {
		return fmt.Errorf("stop session: %w", err)
	}
	if result == nil {
		slog.Info("no speech recognized, nothing to report", "session_id", sess.ID())
		return nil
	}

	assessment := fluency.Assess(result.Fluency)
	payload := grading.BuildPayload(sess.ID(), result, assessment)

	out, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	fmt.Println(string(out))

	slog.Info("session analyzed",
		"session_id", sess.ID(),
		"duration", result.Duration,
		"words", len(result.Words),
		"clarity_score", result.ClarityScore,
		"fluency_band", assessment.Band,
	)

	if submitter != nil {
		submitCtx, cancel := context.WithTimeout(context.Background(), cfg.Grading.Timeout())
		defer cancel()
		if err := submitter.Submit(submitCtx, payload); err != nil {
			// The report already went to stdout; a grading outage must not
			// turn the run into a failure.
			slog.Error("grading submission failed", "endpoint", cfg.Grading.Endpoint, "err", err)
		} else {
			slog.Info("report submitted for grading", "endpoint", cfg.Grading.Endpoint)
		}
	}
	return nil
}

// ── Component wiring ──────────────────────────────────────────────────────────

// buildDetector selects the silence detector named in cfg.
func buildDetector(cfg config.VADConfig) (vad.Detector, error) {
	switch cfg.Engine {
	case config.VADWebRTC:
		det, err := webrtc.New(cfg.Aggressiveness, cfg.NoiseFloor)
		if err != nil {
			return nil, err
		}
		slog.Info("using webrtc silence detector", "aggressiveness", cfg.Aggressiveness)
		return det, nil
	default:
		return vad.NewRMS(cfg.NoiseFloor), nil
	}
}

// buildGateway constructs the WebSocket recognition engine. The auth token
// comes from the environment, never from the config file.
func buildGateway(cfg config.RecognizerConfig, sampleRate int) (*gateway.Engine, error) {
	opts := []gateway.Option{
		gateway.WithLanguage(cfg.Language),
		gateway.WithSampleRate(sampleRate),
	}
	if token := os.Getenv("ELOCUTE_GATEWAY_TOKEN"); token != "" {
		opts = append(opts, gateway.WithHeader("Authorization", "Bearer "+token))
	}
	return gateway.New(cfg.GatewayURL, opts...)
}

// buildTracker configures the word confidence tracker. An empty filler list
// keeps the built-in vocabulary.
func buildTracker(cfg config.AnalysisConfig) *confidence.Tracker {
	opts := []confidence.Option{confidence.WithNeutralConfidence(cfg.NeutralConfidence)}
	if len(cfg.FillerWords) > 0 {
		opts = append(opts, confidence.WithFillerWords(cfg.FillerWords))
	}
	return confidence.New(opts...)
}

// openInput opens the PCM16LE audio source. An empty path or "-" selects stdin.
func openInput(path string) (io.Reader, func() error, error) {
	if path == "" || path == "-" {
		return os.Stdin, func() error { return nil }, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	return f, f.Close, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Fprintln(os.Stderr, "╔════════════════════════════════════════╗")
	fmt.Fprintln(os.Stderr, "║        elocute startup summary         ║")
	fmt.Fprintln(os.Stderr, "╠════════════════════════════════════════╣")
	input := cfg.Input.Path
	if input == "" || input == "-" {
		input = "stdin"
	}
	printRow("Input", input)
	printRow("Capture", fmt.Sprintf("%d Hz / %d ms", cfg.Capture.SampleRate, cfg.Capture.WindowMs))
	printRow("VAD", vadLabel(cfg.Capture.VAD))
	printRow("Gateway", cfg.Recognizer.GatewayURL)
	printRow("Language", cfg.Recognizer.Language)
	if cfg.Grading.Endpoint != "" {
		printRow("Grading", cfg.Grading.Endpoint)
	} else {
		printRow("Grading", "(disabled)")
	}
	if cfg.ListenAddr != "" {
		printRow("Listen addr", cfg.ListenAddr)
	}
	fmt.Fprintln(os.Stderr, "╚════════════════════════════════════════╝")
}

func vadLabel(cfg config.VADConfig) string {
	if cfg.Engine == config.VADWebRTC {
		return fmt.Sprintf("webrtc (mode %d)", cfg.Aggressiveness)
	}
	return fmt.Sprintf("rms (floor %.0f)", cfg.NoiseFloor)
}

func printRow(label, value string) {
	if value == "" {
		value = "(not configured)"
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Fprintf(os.Stderr, "║  %-15s : %-19s ║\n", label, value)
}
