package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ergochat/readline"
	"github.com/prometheus/client_golang/prometheus"

	syncedstore "github.com/synthlabs/tauri-svelte-synced-store"
	"github.com/synthlabs/tauri-svelte-synced-store/bus"
	"github.com/synthlabs/tauri-svelte-synced-store/utils"
)

// REPL per se.
type REPL struct {
	syncer   *syncedstore.Syncer
	dispatch *syncedstore.Dispatch
	bus      *bus.Bus
	rl       *readline.Instance
	watches  map[string]string
}

var completer = readline.NewPrefixCompleter(
	readline.PcItem("help"),

	readline.PcItem("set"),
	readline.PcItem("get"),
	readline.PcItem("update"),
	readline.PcItem("text"),
	readline.PcItem("emit"),

	readline.PcItem("save"),
	readline.PcItem("load"),

	readline.PcItem("watch"),
	readline.PcItem("unwatch"),

	readline.PcItem("call"),
	readline.PcItem("bind"),
	readline.PcItem("ls"),

	readline.PcItem("exit"),
	readline.PcItem("quit"),
)

func filterInput(r rune) (rune, bool) {
	switch r {
	// block CtrlZ feature
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}

func (repl *REPL) Open() (err error) {
	repl.rl, err = readline.NewEx(&readline.Config{
		Prompt:          "◌ ",
		HistoryFile:     ".syncedstore_cmd_log.txt",
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",

		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		return
	}
	repl.rl.CaptureExitSignal()
	return
}

func (repl *REPL) Close() error {
	if repl.rl != nil {
		_ = repl.rl.Close()
		repl.rl = nil
	}
	return repl.syncer.Close()
}

func splitArg(line string) (head, rest string) {
	line = strings.TrimSpace(line)
	ws := strings.IndexAny(line, " \t\r\n")
	if ws < 0 {
		return line, ""
	}
	return line[:ws], strings.TrimSpace(line[ws:])
}

func (repl *REPL) REPL() error {
	line, err := repl.rl.Readline()
	if err == readline.ErrInterrupt && len(line) != 0 {
		return nil
	}
	if err != nil {
		return err
	}

	cmd, rest := splitArg(line)
	if cmd == "" {
		return nil
	}
	key, arg := splitArg(rest)

	switch cmd {
	case "help":
		fmt.Println("set|get|update|text|emit|save|load|watch|unwatch|call|bind|ls|exit")
	case "set":
		err = syncedstore.Set[json.RawMessage](repl.syncer, key, json.RawMessage(arg))
		if err == nil {
			syncedstore.RegisterKey[json.RawMessage](repl.dispatch, key, key)
		}
	case "get":
		var v json.RawMessage
		v, err = syncedstore.SnapshotOf[json.RawMessage](repl.syncer, key)
		if err == nil {
			fmt.Printf("%s\n", v)
		}
	case "update":
		err = syncedstore.UpdateValue[json.RawMessage](repl.syncer, key, json.RawMessage(arg), true)
	case "text":
		err = repl.syncer.UpdateFromText(key, arg, true)
	case "emit":
		if !repl.syncer.Emit(key) {
			fmt.Println("nothing emitted")
		}
	case "save":
		err = repl.syncer.Save(key)
	case "load":
		var v json.RawMessage
		v, err = syncedstore.Load[json.RawMessage](repl.syncer, key)
		if err == nil {
			fmt.Printf("%s\n", v)
		}
	case "watch":
		if _, ok := repl.watches[key]; ok {
			break
		}
		repl.watches[key] = repl.bus.Subscribe(syncedstore.EventName(key),
			func(event string, upd syncedstore.Update) {
				fmt.Printf("%s (v%s): %s\n", event, upd.Version, upd.Value)
			})
	case "unwatch":
		if id, ok := repl.watches[key]; ok {
			repl.bus.Unsubscribe(id)
			delete(repl.watches, key)
		}
	case "call":
		err = repl.dispatch.Route(key, arg, true)
	case "bind":
		syncedstore.RegisterKey[json.RawMessage](repl.dispatch, key, arg)
	case "ls":
		for _, name := range repl.dispatch.Names() {
			fmt.Println(name)
		}
	case "exit", "quit":
		return io.EOF
	default:
		_, _ = fmt.Fprintf(os.Stderr, "command unknown: %s\n", cmd)
	}
	return err
}

func main() {
	dir := flag.String("dir", "", "durable backend directory, empty for in-memory only")
	debug := flag.Bool("debug", false, "verbose logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	log := utils.NewDefaultLogger(level)

	metrics := syncedstore.NewMetrics()
	prometheus.MustRegister(metrics)

	var backend syncedstore.Backend
	if *dir != "" {
		pb, err := syncedstore.OpenPebble(*dir)
		if err != nil {
			_, _ = fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
		prometheus.MustRegister(syncedstore.NewPebbleCollector(pb.DB()))
		backend = pb
	}

	b := bus.New(log)
	syncer, err := syncedstore.New(syncedstore.Options{
		Logger:     log,
		Emitter:    b,
		Backend:    backend,
		Metrics:    metrics,
		DedupEmits: true,
	})
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	repl := REPL{
		syncer:   syncer,
		dispatch: syncedstore.NewDispatch(syncer),
		bus:      b,
		watches:  make(map[string]string),
	}
	if err = repl.Open(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	for err != io.EOF {
		if err != nil {
			_, _ = fmt.Fprintf(os.Stdout, "%s\n", err.Error())
		}
		err = repl.REPL()
	}
	b.WaitAsync()
	_ = repl.Close()
}
