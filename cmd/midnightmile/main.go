// MidnightMile — a hands-free voice companion for walking home at night.
//
// Usage:
//
//	midnightmile [-verbose] [-quiet] [-voice]
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/AkshatG130501/MidnightMile2.0/internal/assistant"
	"github.com/AkshatG130501/MidnightMile2.0/internal/command"
	"github.com/AkshatG130501/MidnightMile2.0/internal/contacts"
	"github.com/AkshatG130501/MidnightMile2.0/internal/domain"
	"github.com/AkshatG130501/MidnightMile2.0/internal/gpt"
	"github.com/AkshatG130501/MidnightMile2.0/internal/logger"
	"github.com/AkshatG130501/MidnightMile2.0/internal/recognition"
	"github.com/AkshatG130501/MidnightMile2.0/internal/safety"
	"github.com/AkshatG130501/MidnightMile2.0/internal/speech"
	"github.com/AkshatG130501/MidnightMile2.0/internal/voice"
)

func main() {
	_ = godotenv.Load()

	verbose := flag.Bool("verbose", false, "enable verbose/debug logging")
	quiet := flag.Bool("quiet", false, "disable all logging")
	logFile := flag.String("log-file", ".mile-logs/mile.log", "file to write logs to (use \"stderr\" to log to console)")
	noSpeech := flag.Bool("no-speech", false, "disable text-to-speech even if Azure keys are set")
	cacheDir := flag.String("cache-dir", ".mile-cache", "directory for persistent TTS audio cache")
	noAI := flag.Bool("no-ai", false, "disable the AI agent even if GPT keys are set")
	voiceIn := flag.Bool("voice", false, "enable voice input via local Whisper STT")
	whisperBin := flag.String("whisper-bin", "whisper-cli", "path to the whisper-cpp CLI binary")
	whisperModel := flag.String("whisper-model", "bin/ggml-small.bin", "path to the Whisper GGML model file")
	recordSecs := flag.Int("record-secs", 3, "seconds per voice recording chunk")
	checkInSecs := flag.Int("checkin-secs", 90, "quiet seconds before a safety check-in")
	espeakBin := flag.String("espeak-bin", "espeak", "path to the espeak binary for offline fallback speech")
	contactList := flag.String("contacts", "", "trusted contacts as \"Name=phone,Name=phone\"; the first is primary")
	location := flag.String("location", "", "starting location description")
	destination := flag.String("destination", "", "walk destination description")
	route := flag.String("route", "", "route summary")
	safetyScore := flag.Int("safety-score", 0, "area safety score 1-100 (0 = unknown)")
	dangerZones := flag.String("danger-zones", "", "comma-separated names of flagged areas on the route")
	flag.Parse()

	// Configure logger.
	logLevel := logger.LevelNormal
	if *verbose {
		logLevel = logger.LevelVerbose
	}
	if *quiet {
		logLevel = logger.LevelOff
	}

	// Direct logs to a file by default so the terminal stays clean.
	var logOut io.Writer = os.Stderr
	if *logFile != "" && *logFile != "stderr" {
		dir := filepath.Dir(*logFile)
		if dir != "" && dir != "." {
			os.MkdirAll(dir, 0o755)
		}
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not open log file %s: %v (falling back to stderr)\n", *logFile, err)
		} else {
			logOut = f
			defer f.Close()
		}
	}

	// Redirect Go's default log package (used by third-party libs like
	// the whisper transcriber) to the same output so it doesn't spam
	// the terminal.
	stdlog.SetOutput(logOut)
	stdlog.SetFlags(stdlog.Ltime)

	log := logger.New(logLevel, logOut)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Trusted contacts.
	store := contacts.NewStore(log)
	seedContacts(ctx, store, *contactList, log)

	// ── Voice output pipeline ────────────────────────────────────
	var tts domain.TTSClient
	var player domain.AudioPlayer
	var offline domain.OfflineSpeaker
	ttsVoice := "noop"

	azureKey := os.Getenv(speech.EnvAzureSpeechKey)
	azureRegion := os.Getenv(speech.EnvAzureSpeechRegion)

	if azureKey != "" && azureRegion != "" && !*noSpeech {
		azure := speech.NewAzureClient(azureKey, azureRegion, log)
		p, err := speech.NewPlayer(log)
		if err != nil {
			log.Error("audio player init failed, speech disabled: %v", err)
		} else {
			tts = azure
			player = p
			offline = speech.NewESpeak(log, speech.WithESpeakBin(*espeakBin))
			ttsVoice = azure.Voice()
			log.Info("TTS enabled (voice=%s, region=%s)", ttsVoice, azureRegion)
		}
	} else if !*noSpeech {
		log.Info("TTS disabled: set %s and %s env vars to enable", speech.EnvAzureSpeechKey, speech.EnvAzureSpeechRegion)
	}
	if tts == nil {
		noop := speech.NewNoOp(log)
		tts, player, offline = noop, noop, noop
	}

	cache := voice.NewAudioCache(ttsVoice, *cacheDir, log)
	synth := voice.NewSynthesizer(tts, player, log,
		voice.WithOffline(offline),
		voice.WithCache(cache),
	)
	queue := voice.NewQueue(synth, log)

	// Warm the cache with every canned phrase so check-ins and command
	// acknowledgements never wait on the network.
	synth.Prefetch(ctx, voice.CannedLines()...)

	// ── Voice input pipeline ─────────────────────────────────────
	var recognizer domain.Recognizer
	if *voiceIn {
		if _, err := os.Stat(*whisperModel); err != nil {
			fmt.Fprintf(os.Stderr, "error: whisper model not found at %s\n", *whisperModel)
			os.Exit(1)
		}
		recognizer = speech.NewWhisperListener(*whisperBin, *whisperModel, log,
			speech.WithChunkDuration(time.Duration(*recordSecs)*time.Second),
		)
		log.Info("voice input enabled (bin=%s, model=%s, chunk=%ds)", *whisperBin, *whisperModel, *recordSecs)
	} else {
		recognizer = speech.NewNullRecognizer()
		log.Info("voice input disabled, type transcripts on stdin")
	}

	controller := recognition.New(recognizer, synth.IsSpeaking, log)

	// ── Brain ────────────────────────────────────────────────────
	// The orchestrator doesn't exist yet when the scheduler and agent
	// need its context accessor, so bind it through a variable.
	var orch *assistant.Orchestrator
	walkContext := func() domain.Context {
		if orch == nil {
			return domain.Context{}
		}
		return orch.Context()
	}

	var llm domain.LLM = offlineLLM{}
	gptKey := os.Getenv(speech.EnvGPTKey)
	gptEndpoint := os.Getenv(speech.EnvGPTEndpoint)
	if gptKey != "" && gptEndpoint != "" && !*noAI {
		llm = gpt.NewAgent(gpt.NewClient(gptEndpoint, gptKey, log), walkContext, log)
		log.Info("AI agent enabled")
	} else if !*noAI {
		log.Info("AI agent disabled: set %s and %s env vars to enable", speech.EnvGPTKey, speech.EnvGPTEndpoint)
	}

	interceptor := command.New(queue, log)
	scheduler := safety.New(queue,
		safety.Gates{
			Listening:  controller.IsListening,
			Processing: func() bool { return orch != nil && orch.Status().IsProcessing },
			Speaking:   synth.IsSpeaking,
		},
		walkContext, log,
		safety.WithInterval(time.Duration(*checkInSecs)*time.Second),
	)

	orch = assistant.New(queue, controller, scheduler, interceptor, llm, synth.IsSpeaking, log)
	orch.UpdateContext(domain.ContextPatch{
		Location:     location,
		Destination:  destination,
		RouteSummary: route,
		SafetyScore:  safetyScore,
	})
	if *dangerZones != "" {
		zones := strings.Split(*dangerZones, ",")
		for i := range zones {
			zones[i] = strings.TrimSpace(zones[i])
		}
		orch.UpdateContext(domain.ContextPatch{DangerZones: &zones})
	}
	if list, err := store.List(ctx); err == nil && len(list) > 0 {
		orch.UpdateContext(domain.ContextPatch{Contacts: &list})
	}

	registerCommands(ctx, interceptor, orch, store, log)

	orch.Run(ctx)
	defer orch.Dispose()

	fmt.Println("MidnightMile is walking with you. Say \"help me\" for an emergency alert.")
	if !*voiceIn {
		fmt.Println("Voice input is off: type what you would say, or /status, /quit.")
	}

	// Stdin doubles as a transcript injection path for development and
	// as the control channel for /status and /quit.
	go stdinLoop(orch, log)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")
}

// offlineLLM answers when no model backend is configured. The companion
// stays useful for check-ins and commands; conversation degrades to a
// fixed acknowledgement.
type offlineLLM struct{}

func (offlineLLM) Complete(ctx context.Context, prompt string) (string, error) {
	return "I heard you, but I'm offline right now. I'm still tracking your walk, and emergency commands still work.", nil
}

// seedContacts parses the -contacts flag ("Ava=+15551234,Ben=+15555678")
// into the store. The first contact becomes primary.
func seedContacts(ctx context.Context, store *contacts.Store, list string, log *logger.Logger) {
	if list == "" {
		return
	}
	for i, entry := range strings.Split(list, ",") {
		parts := strings.SplitN(strings.TrimSpace(entry), "=", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			log.Warn("contacts: skipping malformed entry %q", entry)
			continue
		}
		_, err := store.Add(ctx, domain.TrustedContact{
			Name:    parts[0],
			Phone:   parts[1],
			Primary: i == 0,
		})
		if err != nil {
			log.Error("contacts: adding %q: %v", parts[0], err)
		}
	}
}

// registerCommands wires the emergency and safe-spot handlers. The
// emergency alert posts to EMERGENCY_WEBHOOK_URL; without it the
// interceptor tells the user alerts are unavailable.
func registerCommands(ctx context.Context, interceptor *command.Interceptor, orch *assistant.Orchestrator, store *contacts.Store, log *logger.Logger) {
	webhook := os.Getenv("EMERGENCY_WEBHOOK_URL")
	if webhook != "" {
		interceptor.OnEmergency(func(cmdCtx context.Context) error {
			return sendEmergencyAlert(cmdCtx, webhook, orch.Context(), store)
		})
		log.Info("emergency alerts enabled")
	} else {
		log.Warn("emergency alerts disabled: set EMERGENCY_WEBHOOK_URL to enable")
	}

	spots := os.Getenv("SAFE_SPOTS")
	if spots != "" {
		options := strings.Split(spots, ";")
		interceptor.OnSafeSpot(func(cmdCtx context.Context) error {
			// A real deployment queries a places API here; the static
			// list keeps the reroute path working without one.
			spot := strings.TrimSpace(options[0])
			orch.UpdateContext(domain.ContextPatch{
				Destination:  &spot,
				RouteSummary: strPtr("rerouted to nearest safe spot: " + spot),
			})
			log.Info("safe spot: rerouted to %s", spot)
			return nil
		})
		log.Info("safe spot reroute enabled (%d options)", len(options))
	} else {
		log.Warn("safe spot reroute disabled: set SAFE_SPOTS to enable")
	}
}

// sendEmergencyAlert posts the walk context and contact list to the
// configured webhook, which fans out to SMS or push on the backend.
func sendEmergencyAlert(ctx context.Context, webhook string, wc domain.Context, store *contacts.Store) error {
	list, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("loading contacts: %w", err)
	}

	body, err := json.Marshal(map[string]any{
		"type":        "emergency",
		"location":    wc.Location,
		"destination": wc.Destination,
		"contacts":    list,
		"sent_at":     time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("building alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := (&http.Client{Timeout: 10 * time.Second}).Do(req)
	if err != nil {
		return fmt.Errorf("sending alert: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("alert webhook returned %s", resp.Status)
	}
	return nil
}

// stdinLoop feeds typed lines into the transcript pipeline.
func stdinLoop(orch *assistant.Orchestrator, log *logger.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit" || line == "/exit":
			syscall.Kill(syscall.Getpid(), syscall.SIGTERM)
			return
		case line == "/status":
			printStatus(orch.Status())
		case strings.HasPrefix(line, "/score "):
			if n, err := strconv.Atoi(strings.TrimPrefix(line, "/score ")); err == nil {
				orch.UpdateContext(domain.ContextPatch{SafetyScore: &n})
				fmt.Printf("safety score set to %d\n", n)
			}
		default:
			orch.HandleTranscript(line)
		}
	}
	if err := scanner.Err(); err != nil {
		log.Error("stdin: %v", err)
	}
}

func printStatus(st domain.Status) {
	fmt.Printf("listening=%v engine=%v processing=%v safespot=%v speaking=%v\n",
		st.IsListening, st.IsRecognitionActive, st.IsProcessing, st.IsHandlingSafeSpot, st.IsSpeaking)
	fmt.Printf("queue depth=%d next=%q restart attempts=%d\n",
		st.QueueDepth, st.NextJob, st.RestartAttempts)
}

func strPtr(s string) *string { return &s }
