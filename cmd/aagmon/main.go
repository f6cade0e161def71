package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joshwalawender/AAGonRPi/pkg/alert"
	"github.com/joshwalawender/AAGonRPi/pkg/bus"
	"github.com/joshwalawender/AAGonRPi/pkg/config"
	"github.com/joshwalawender/AAGonRPi/pkg/device"
	"github.com/joshwalawender/AAGonRPi/pkg/heater"
	"github.com/joshwalawender/AAGonRPi/pkg/httpapi"
	"github.com/joshwalawender/AAGonRPi/pkg/monitor"
	"github.com/joshwalawender/AAGonRPi/pkg/store"
	"github.com/joshwalawender/AAGonRPi/pkg/transport"
)

func main() {
	var (
		portFlag   = flag.String("p", "", "Serial port override (e.g., /dev/ttyUSB0)")
		configFlag = flag.String("config", "config.yaml", "Configuration file path")
		mockFlag   = flag.Bool("mock", false, "Use a simulated device instead of a serial port")
		onceFlag   = flag.Bool("once", false, "Run a single measurement cycle and exit")
	)
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Override serial port if provided via command line
	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}

	var ch transport.Channel
	if *mockFlag {
		m := transport.NewMock()
		installSimulator(m)
		ch = m
	} else {
		s := transport.New(cfg.Serial.Port, cfg.Serial.BaudRate)
		if err := s.Connect(); err != nil {
			log.Fatalf("Failed to open serial port %s: %v", cfg.Serial.Port, err)
		}
		ch = s
	}
	defer ch.Close()

	dev, err := device.Open(ch)
	if err != nil {
		log.Fatalf("Failed to identify device: %v", err)
	}

	st := store.NewMemory(cfg.Retention())
	htr := heater.New(cfg.HeaterSettings(), cfg.NewPID())

	var pub *bus.Publisher
	if cfg.Kafka.Enabled {
		pub = bus.New(cfg.KafkaSettings())
		defer pub.Close()
	}

	var notifier *alert.Notifier
	if cfg.Mail.Enabled {
		notifier = alert.New(cfg.MailSettings())
	}

	var api *httpapi.Server
	if cfg.HTTP.Enabled {
		api = httpapi.New(cfg.HTTPSettings(), st)
		go func() {
			if err := api.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatalf("HTTP server failed: %v", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mon := monitor.New(*configFlag, cfg, dev, st, htr, pub, notifier, api)
	if *onceFlag {
		mon.Cycle(ctx, time.Now())
	} else if err := mon.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("monitor stopped: %v", err)
	}

	if api != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := api.Stop(shutdownCtx); err != nil {
			log.Printf("HTTP shutdown: %v", err)
		}
		cancel()
	}
}
