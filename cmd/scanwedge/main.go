package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/scanwedge/internal/api"
	"github.com/banshee-data/scanwedge/internal/config"
	"github.com/banshee-data/scanwedge/internal/db"
	"github.com/banshee-data/scanwedge/internal/events"
	"github.com/banshee-data/scanwedge/internal/monitoring"
	"github.com/banshee-data/scanwedge/internal/serialmux"
	"github.com/banshee-data/scanwedge/internal/session"
	"github.com/banshee-data/scanwedge/internal/timeutil"
	"github.com/banshee-data/scanwedge/internal/version"
)

var (
	configPath     = flag.String("config", "", "Config file (.toml, .json, .yaml); defaults to "+config.DefaultConfigPath+" when present")
	port           = flag.String("port", "/dev/ttyS0", "Serial port of the scanner module; empty disables the link (ignored in dev mode)")
	listen         = flag.String("listen", "localhost:8090", "Listen address for the API and debug pages")
	keyboard       = flag.String("keyboard", config.KeyboardHIDGadget, "Keyboard backend: hidg, uinput or log")
	keyboardDevice = flag.String("keyboard-device", "", "Keyboard device path (default depends on -keyboard)")
	historyDB      = flag.String("history-db", "", "SQLite scan history path; empty disables history")
	natsURL        = flag.String("nats-url", "", "NATS server URL for scan events; empty disables publishing")
	devMode        = flag.Bool("dev", false, "Run against a simulated scanner module")
	showVersion    = flag.Bool("version", false, "Print version and exit")
)

// resolveConfigPath picks the file to load. An empty result means built-in
// defaults only.
func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if _, err := os.Stat(config.DefaultConfigPath); err == nil {
		return config.DefaultConfigPath
	}
	return ""
}

// applyFlagOverrides copies every flag set on the command line onto cfg.
// Flags left at their defaults do not mask the file.
func applyFlagOverrides(cfg *config.Config, fs *flag.FlagSet) {
	fs.Visit(func(f *flag.Flag) {
		v := f.Value.String()
		switch f.Name {
		case "port":
			cfg.Port = &v
		case "listen":
			cfg.Listen = &v
		case "keyboard":
			cfg.Keyboard = &v
		case "keyboard-device":
			cfg.KeyboardDevice = &v
		case "history-db":
			cfg.HistoryDB = &v
		case "nats-url":
			cfg.NATSURL = &v
		}
	})
}

// openLink opens the scanner link, or a simulated module in dev mode. An
// empty port runs without a module so the keyboard and API can be exercised.
func openLink(cfg *config.Config, dev bool) (serialmux.SerialMuxInterface, error) {
	baud := cfg.SessionConfig().BaudRate()
	if dev {
		sim := serialmux.NewSimulatedScanner(timeutil.RealClock{})
		return serialmux.NewSerialMux[serialmux.SerialPorter](sim, baud), nil
	}
	if cfg.GetPort() == "" {
		log.Print("no serial port configured, scanner link disabled")
		return serialmux.NewDisabledSerialMux(), nil
	}
	return serialmux.NewRealSerialMux(cfg.GetPort(), serialmux.PortOptions{BaudRate: baud})
}

// Main
func main() {
	if len(os.Args) > 1 && os.Args[1] == "ctl" {
		if err := runCtl(context.Background(), os.Args[2:], os.Stdout); err != nil {
			if !errors.Is(err, flag.ErrHelp) {
				fmt.Fprintln(os.Stderr, err)
			}
			os.Exit(2)
		}
		return
	}

	flag.Parse()
	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg := &config.Config{}
	var watcher *config.Watcher
	if path := resolveConfigPath(*configPath); path != "" {
		var err error
		watcher, err = config.NewWatcher(path)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		defer watcher.Close()
		c := *watcher.Config()
		cfg = &c
		log.Printf("loaded config %s", path)
	}
	applyFlagOverrides(cfg, flag.CommandLine)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	if cfg.GetListen() == "" {
		log.Fatal("Listen address is required")
	}

	link, err := openLink(cfg, *devMode)
	if err != nil {
		log.Fatalf("failed to open scanner link: %v", err)
	}
	defer link.Close()

	kbd, err := openKeyboard(cfg.GetKeyboard(), cfg.GetKeyboardDevice())
	if err != nil {
		log.Fatalf("failed to open keyboard: %v", err)
	}
	defer kbd.Close()

	observers := session.Observers{
		session.LogObserver{Logf: monitoring.Tagged("scan")},
		tailObserver{pub: link},
	}

	// history must stay a nil interface when disabled
	var history api.ScanHistory
	var historyStore *db.DB
	if path := cfg.GetHistoryDB(); path != "" {
		historyStore, err = db.NewDB(path)
		if err != nil {
			log.Fatalf("failed to open scan history: %v", err)
		}
		defer historyStore.Close()
		history = historyStore
		observers = append(observers, historyStore.Observer())
	}

	if url := cfg.GetNATSURL(); url != "" {
		nc, err := events.Connect(url)
		if err != nil {
			log.Fatalf("failed to connect to NATS: %v", err)
		}
		defer nc.Drain()
		pub := events.NewNATSPublisher(nc, cfg.GetNATSSubject())
		observers = append(observers, pub.Observer())
	}

	modes := session.NewModes(cfg.SessionConfig())
	if watcher != nil {
		watcher.OnChange(config.ApplyTiming(modes))
		if err := watcher.Start(); err != nil {
			log.Printf("config hot reload disabled: %v", err)
		}
	}

	sess := session.New(session.Options{
		Link:     link,
		Keyboard: kbd,
		Observer: observers,
	})
	if err := sess.Initialize(modes.Snapshot()); err != nil {
		log.Fatalf("failed to initialize scanner module: %v", err)
	}
	log.Printf("initialized scanner module at %d baud", link.BaudRate())

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// scan loop
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := sess.Run(ctx, modes, session.DefaultPollInterval); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("scan loop failed: %v", err)
			stop()
		}
		log.Print("scan loop terminated")
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		apiServer := api.NewServer(modes, sess, history)
		mux := apiServer.ServeMux()
		link.AttachAdminRoutes(mux)
		if historyStore != nil {
			historyStore.AttachAdminRoutes(mux)
		}

		server := &http.Server{
			Addr:    cfg.GetListen(),
			Handler: api.LoggingMiddleware(mux),
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()
		log.Printf("listening on %s", cfg.GetListen())

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			// Force close the server if graceful shutdown fails
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("graceful shutdown complete")
}
