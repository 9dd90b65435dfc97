// Voice — утилита для проверки голосовых сервисов без TUI.
//
// Использование:
//
//	./voice stt recording.wav
//	./voice tts -voice nova "Hello there"
//	arecord -f S16_LE -r 16000 -c 1 -t raw | ./voice live
//	./voice archive [prefix]
//
// live читает сырой 16-bit mono PCM (16 kHz) из stdin и печатает
// частичные результаты распознавания в одной строке.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ilkoid/pi-llama/pkg/app"
	"github.com/ilkoid/pi-llama/pkg/config"
	"github.com/ilkoid/pi-llama/pkg/s3storage"
	"github.com/ilkoid/pi-llama/pkg/utils"
	"github.com/ilkoid/pi-llama/pkg/voice"
)

// Version — версия утилиты (заполняется при сборке)
var Version = "dev"

const usage = `Usage: voice [flags] <command> [args]

Commands:
  stt <file>             Transcribe an audio file
  tts [-voice v] <text>  Synthesize speech and save mp3
  live                   Stream 16 kHz mono PCM from stdin to Vosk
  archive [prefix]       List archived audio in S3

Flags:
`

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  = flag.String("config", "", "Path to config.yaml (default: ./config.yaml)")
		debugFlag   = flag.Bool("debug", false, "Enable debug logging")
		showVersion = flag.Bool("version", false, "Show version")
	)
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("voice version %s\n", Version)
		return nil
	}
	if flag.NArg() == 0 {
		flag.Usage()
		return errors.New("command is required")
	}

	cfg, _, err := app.InitializeConfig(&app.DefaultConfigPathFinder{ConfigFlag: *configPath})
	if err != nil {
		return err
	}

	if err := utils.InitLogger(cfg.App.LogDir); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	utils.SetDebug(*debugFlag || cfg.App.Debug)
	defer utils.Close()

	ctx, shutdown := utils.SetupGracefulShutdownWithContext()
	defer shutdown()

	cmd, args := flag.Arg(0), flag.Args()[1:]
	switch cmd {
	case "stt":
		return runSTT(ctx, cfg, args)
	case "tts":
		return runTTS(ctx, cfg, args)
	case "live":
		return runLive(ctx, cfg)
	case "archive":
		return runArchive(ctx, cfg, args)
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func runSTT(ctx context.Context, cfg *config.AppConfig, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: voice stt <file>")
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	text, err := voice.NewClient(cfg.Voice).Transcribe(ctx, f, filepath.Base(args[0]))
	if err != nil {
		return err
	}
	fmt.Println(text)
	return nil
}

func runTTS(ctx context.Context, cfg *config.AppConfig, args []string) error {
	fs := flag.NewFlagSet("tts", flag.ContinueOnError)
	voiceName := fs.String("voice", cfg.Voice.Voice, "Voice: "+joinVoices())
	if err := fs.Parse(args); err != nil {
		return err
	}

	text := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if text == "" {
		return errors.New("usage: voice tts [-voice v] <text>")
	}
	v, err := voice.ParseVoice(*voiceName)
	if err != nil {
		return err
	}

	speaker := voice.NewSpeaker(voice.NewClient(cfg.Voice), cfg.Voice.OutputDir, cfg.Voice.Player)
	if archive, err := s3storage.New(cfg.S3); err == nil {
		speaker.SetArchive(archive)
	} else if !errors.Is(err, s3storage.ErrDisabled) {
		utils.Warn("S3 archive unavailable", "error", err)
	}

	path, err := speaker.Speak(ctx, text, v)
	if path != "" {
		fmt.Println(path)
	}
	return err
}

func runLive(ctx context.Context, cfg *config.AppConfig) error {
	session, err := voice.DialLive(ctx, cfg.Voice.VoskURL, func(u voice.LiveUpdate) {
		line := strings.TrimSpace(u.Final + " " + u.Partial)
		fmt.Fprintf(os.Stderr, "\r\033[K%s", line)
	})
	if err != nil {
		return err
	}
	defer session.Close()

	streamErr := session.StreamPCM(ctx, os.Stdin)
	text, stopErr := session.Stop()
	fmt.Fprint(os.Stderr, "\r\033[K")
	fmt.Println(text)

	if streamErr != nil && !errors.Is(streamErr, context.Canceled) {
		return streamErr
	}
	return stopErr
}

func runArchive(ctx context.Context, cfg *config.AppConfig, args []string) error {
	archive, err := s3storage.New(cfg.S3)
	if err != nil {
		return err
	}

	prefix := "tts/"
	if len(args) > 0 {
		prefix = args[0]
	}

	objects, err := archive.List(ctx, prefix)
	if err != nil {
		return err
	}
	for _, obj := range objects {
		fmt.Printf("%s\t%d\t%s\n", obj.LastModified.Format("2006-01-02 15:04:05"), obj.Size, obj.Key)
	}
	fmt.Fprintf(os.Stderr, "%d object(s) in %s\n", len(objects), archive.Bucket())
	return nil
}

func joinVoices() string {
	names := make([]string, 0, len(voice.Voices()))
	for _, v := range voice.Voices() {
		names = append(names, string(v))
	}
	return strings.Join(names, ", ")
}
