// Command voxcrew runs the voice-driven multi-agent discussion backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/term"

	"voxcrew/pkg/agent"
	"voxcrew/pkg/config"
	"voxcrew/pkg/discuss"
	"voxcrew/pkg/logx"
	"voxcrew/pkg/metrics"
	"voxcrew/pkg/persistence"
	"voxcrew/pkg/research"
	"voxcrew/pkg/speech"
	"voxcrew/pkg/tokens"
	"voxcrew/pkg/webapi"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "voxcrew: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var debug bool
	flag.StringVar(&configPath, "config", "", "path to YAML config file (optional)")
	flag.BoolVar(&debug, "debug", false, "enable debug logging")
	flag.Parse()

	if debug {
		logx.SetDebug(true)
	}
	logger := logx.NewLogger("main")

	// .env is optional; environment wins either way.
	if err := godotenv.Load(); err == nil {
		logger.Debug("Loaded environment from .env")
	}

	if err := config.LoadConfig(configPath); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg, err := config.GetConfig()
	if err != nil {
		return err
	}

	if err := unlockSecrets(logger); err != nil {
		return err
	}

	if err := persistence.Initialize(cfg.DBPath); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() { _ = persistence.Close() }()
	store := persistence.Ops()

	llmClient, err := agent.NewClient(&cfg)
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}

	orchestrator := discuss.New(discuss.Deps{
		LLM:           llmClient,
		Searcher:      buildSearcher(logger),
		Speech:        buildSynthesizer(&cfg, logger),
		History:       store,
		Recorder:      metrics.NewRecorder(),
		Counter:       buildCounter(logger),
		Voices:        cfg.Voices,
		SpeechEnabled: cfg.SpeechEnabled,
	})

	var queries *metrics.QueryService
	if cfg.PrometheusURL != "" {
		queries, err = metrics.NewQueryService(cfg.PrometheusURL)
		if err != nil {
			logger.Warn("Metrics queries disabled: %v", err)
		}
	}

	server := webapi.NewServer(orchestrator, store, queries, cfg.Server.Password, true)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := server.StartServer(ctx, cfg.Server.Addr); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	logger.Info("voxcrew listening on %s (provider: %s)", cfg.Server.Addr, cfg.Provider)

	<-ctx.Done()
	logger.Info("Shutting down")
	return nil
}

// unlockSecrets decrypts the secrets file when one exists in the working
// directory. API keys then resolve from the decrypted map first, environment
// second.
func unlockSecrets(logger *logx.Logger) error {
	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to resolve working directory: %w", err)
	}
	if !config.SecretsFileExists(workDir) {
		return nil
	}

	if !term.IsTerminal(int(syscall.Stdin)) {
		logger.Warn("Secrets file present but stdin is not a terminal; using environment keys only")
		return nil
	}

	fmt.Print("Secrets password: ")
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	secrets, err := config.DecryptSecretsFile(workDir, string(password))
	if err != nil {
		return fmt.Errorf("failed to decrypt secrets: %w", err)
	}
	config.SetDecryptedSecrets(secrets)
	logger.Info("Secrets unlocked (%d entries)", len(secrets))
	return nil
}

// buildSearcher wires the web-search collaborator when a key is configured.
// Research is optional; without a key the research gate never fires.
func buildSearcher(logger *logx.Logger) research.Searcher {
	key, err := config.GetSecret("BRAVE_API_KEY")
	if err != nil || strings.TrimSpace(key) == "" {
		logger.Warn("BRAVE_API_KEY not set; research is disabled")
		return nil
	}
	return research.NewClient(key, "")
}

// buildSynthesizer wires the TTS collaborator. Speech is best-effort, so a
// missing key only disables audio.
func buildSynthesizer(cfg *config.Config, logger *logx.Logger) speech.Synthesizer {
	if !cfg.SpeechEnabled {
		return nil
	}
	key, err := config.GetSecret("GEMINI_API_KEY")
	if err != nil || strings.TrimSpace(key) == "" {
		logger.Warn("GEMINI_API_KEY not set; speech synthesis is disabled")
		return nil
	}
	return speech.NewClient(key, config.ModelGeminiTTS)
}

// buildCounter creates the tokenizer-backed counter used for diagnostic
// prompt token counts. A nil counter falls back to the character estimate.
func buildCounter(logger *logx.Logger) *tokens.Counter {
	counter, err := tokens.NewCounter()
	if err != nil {
		logger.Warn("Tokenizer unavailable, using character estimates: %v", err)
		return nil
	}
	return counter
}
