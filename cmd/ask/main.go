// Ask — одноразовый вопрос модели с потоковым выводом в stdout.
//
// Использование:
//
//	./ask "Explain goroutines in one paragraph"
//	./ask -tools "What's the weather in Tokyo?"
//	./ask -think "Is 221 prime?"
//	echo "2+2?" | ./ask -
//
// Рассуждения (-think) и вызовы инструментов печатаются в stderr,
// ответ — в stdout.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/ilkoid/pi-llama/pkg/app"
	"github.com/ilkoid/pi-llama/pkg/chain"
	"github.com/ilkoid/pi-llama/pkg/config"
	"github.com/ilkoid/pi-llama/pkg/events"
	"github.com/ilkoid/pi-llama/pkg/utils"
)

// Version — версия утилиты (заполняется при сборке)
var Version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  = flag.String("config", "", "Path to config.yaml (default: ./config.yaml)")
		withTools   = flag.Bool("tools", false, "Allow the model to call tools (weather, calculator, time, memory)")
		showThink   = flag.Bool("think", false, "Print the model's reasoning to stderr")
		speak       = flag.Bool("speak", false, "Read the answer aloud using saved voice settings")
		debugFlag   = flag.Bool("debug", false, "Enable debug logging")
		traceFlag   = flag.Bool("trace", false, "Write a JSON trace of every message to <log_dir>/traces")
		showVersion = flag.Bool("version", false, "Show version")
	)
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: ask [flags] \"question\" (use - to read stdin)")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("ask version %s\n", Version)
		return nil
	}

	question, err := readQuestion(flag.Args(), os.Stdin)
	if err != nil {
		flag.Usage()
		return err
	}

	cfg, _, err := app.InitializeConfig(&app.DefaultConfigPathFinder{ConfigFlag: *configPath})
	if err != nil {
		return err
	}
	if *debugFlag {
		cfg.App.Debug = true
	}
	if *traceFlag {
		cfg.App.Trace = true
	}
	cfg.Chat.Mode = config.ModePlain
	if *withTools {
		cfg.Chat.Mode = config.ModeTools
	}

	if err := utils.InitLogger(cfg.App.LogDir); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	utils.SetDebug(cfg.App.Debug)
	defer utils.Close()

	ctx, shutdown := utils.SetupGracefulShutdownWithContext()
	defer shutdown()

	var opts []app.Option
	if !*speak {
		opts = append(opts, app.WithoutAutoPlay())
	}
	comps, err := app.Initialize(ctx, cfg, opts...)
	if err != nil {
		return err
	}
	defer comps.Close()

	res, err := ask(ctx, comps, question, newStreamPrinter(os.Stdout, os.Stderr, *showThink))
	if err != nil {
		return err
	}
	if comps.Tracer != nil {
		fmt.Fprintf(os.Stderr, "trace: %s\n", comps.Tracer.LastPath())
	}

	switch res.Outcome {
	case chain.OutcomeFinalAnswer:
		return nil
	case chain.OutcomeCanceled:
		return context.Canceled
	default:
		if res.Err != nil {
			return res.Err
		}
		return fmt.Errorf("answer finished with %s", res.Outcome)
	}
}

// ask отправляет вопрос и печатает ответ по мере генерации.
func ask(ctx context.Context, comps *app.Components, question string, printer *streamPrinter) (chain.Result, error) {
	emitter := events.NewChanEmitter(256, events.DropWhenFull())
	comps.Controller.SetEmitter(emitter)
	sub := emitter.Subscribe()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range sub.Events() {
			printer.Flush(comps.Controller.Transcript().Snapshot())
		}
	}()

	res, err := comps.Controller.Send(ctx, question)

	emitter.Close()
	wg.Wait()
	printer.Flush(comps.Controller.Transcript().Snapshot())
	fmt.Fprintln(printer.out)

	return res, err
}

// readQuestion берёт вопрос из аргументов; "-" читает stdin целиком.
func readQuestion(args []string, stdin io.Reader) (string, error) {
	if len(args) == 0 {
		return "", errors.New("question argument is required")
	}

	q := strings.Join(args, " ")
	if q == "-" {
		raw, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		q = string(raw)
	}

	q = strings.TrimSpace(q)
	if q == "" {
		return "", errors.New("question is empty")
	}
	return q, nil
}
