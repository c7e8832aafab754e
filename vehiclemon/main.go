package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/itohio/vehiclemon/pkg/adc"
	"github.com/itohio/vehiclemon/pkg/alarm"
	"github.com/itohio/vehiclemon/pkg/buzzer"
	"github.com/itohio/vehiclemon/pkg/calfile"
	"github.com/itohio/vehiclemon/pkg/channel"
	"github.com/itohio/vehiclemon/pkg/config"
	"github.com/itohio/vehiclemon/pkg/display"
	"github.com/itohio/vehiclemon/pkg/genie"
	"github.com/itohio/vehiclemon/pkg/host"
	"github.com/itohio/vehiclemon/pkg/journal"
	"github.com/itohio/vehiclemon/pkg/logger"
	"github.com/itohio/vehiclemon/pkg/nav"
	"github.com/itohio/vehiclemon/pkg/sampler"
)

type options struct {
	configPath string
	port       string
	level      string
	mock       bool
	sim        bool
	history    int
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "config.yaml", "Configuration file path")
	flag.StringVar(&opts.port, "p", "", "Display serial port override (e.g., /dev/ttyUSB0)")
	flag.StringVar(&opts.level, "level", "", "Log level override (debug, info, warn, error)")
	flag.BoolVar(&opts.mock, "mock", false, "Use simulated voltages instead of the ADC board")
	flag.BoolVar(&opts.sim, "sim", false, "Show the touchscreen in a desktop window instead of the serial display")
	flag.IntVar(&opts.history, "history", 0, "Print the last N alarm journal entries and exit")
	flag.Parse()

	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "vehiclemon: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if opts.port != "" {
		cfg.Display.Port = opts.port
	}
	if opts.level != "" {
		cfg.Log.Level = opts.level
	}

	log, err := logger.New(cfg.Log.File, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	if opts.history > 0 {
		return printHistory(cfg, opts.history, log)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.sim {
		return runSimulator(ctx, cfg, opts, log)
	}

	sink, err := genie.Open(cfg.Display, log)
	if err != nil {
		return err
	}
	m, err := newMonitor(cfg, opts, sink, log)
	if err != nil {
		return multierr.Append(err, sink.Close())
	}
	return m.run(ctx)
}

// monitor holds the assembled chain: source -> sampler -> controller -> display.
type monitor struct {
	log        *zap.Logger
	source     adc.Source
	sampler    *sampler.Sampler
	sink       display.Sink
	journal    *journal.Journal
	buzzer     *buzzer.Buzzer
	controller *nav.Controller
}

// newMonitor wires every component around sink. On error, components opened so far are
// closed; sink stays with the caller.
func newMonitor(cfg *config.Config, opts options, sink display.Sink, log *zap.Logger) (_ *monitor, err error) {
	m := &monitor{log: log, sink: sink}
	defer func() {
		if err != nil {
			m.sink = nil
			err = multierr.Append(err, m.close())
		}
	}()

	store := channel.NewStore(calfile.New(cfg.Calibration.File, cfg.Calibration.Input), cfg.Calibration.Input, log.Named("store"))
	if err := store.Load(); err != nil {
		log.Warn("calibration not loaded, using defaults", zap.String("file", cfg.Calibration.File), zap.Error(err))
	}

	if opts.mock {
		log.Info("using simulated voltage source")
		m.source = adc.NewMock(&cfg.Mock)
	} else {
		src, err := adc.Open(cfg.ADC.Bus, cfg.ADC.Addresses[0], cfg.ADC.Addresses[1], cfg.ADC.InputScale, cfg.ADC.PollPeriod)
		if err != nil {
			return nil, err
		}
		log.Info("ADC board opened", zap.String("bus", cfg.ADC.Bus),
			zap.Uint16("addr1", cfg.ADC.Addresses[0]), zap.Uint16("addr2", cfg.ADC.Addresses[1]))
		m.source = src
	}
	m.sampler = sampler.New(m.source, cfg.Sampling, cfg.ADC.ReadTimeout, log.Named("sampler"))

	indicators := nav.Indicators{nav.DisplaySound{Sink: sink}}
	if cfg.Alarm.BuzzerPin > 0 {
		b, err := buzzer.Open(cfg.Alarm.BuzzerPin, cfg.Alarm.BeepDuration, log)
		if err != nil {
			log.Warn("buzzer unavailable", zap.Int("pin", cfg.Alarm.BuzzerPin), zap.Error(err))
		} else {
			m.buzzer = b
			indicators = append(indicators, b)
		}
	}

	var recorder nav.Recorder
	if cfg.Alarm.Journal != "" {
		j, err := journal.Open(cfg.Alarm.Journal, journal.DefaultBufferSize, log.Named("journal"))
		if err != nil {
			log.Warn("alarm journal unavailable", zap.Error(err))
		} else {
			m.journal = j
			recorder = j
		}
	}

	var hostCtl nav.Host = host.Nop{Log: log}
	if !opts.mock && !opts.sim {
		hostCtl = host.NewLogind(log)
	}

	alarms := alarm.New(alarm.Policy{
		RestoreOnAnyClear: cfg.Alarm.RestoreOnAnyClear,
		StaleAfter:        cfg.Sampling.StaleAfter,
	})
	m.controller = nav.New(store, alarms, sink, nav.Options{
		Indicator: indicators,
		Recorder:  recorder,
		Host:      hostCtl,
		Log:       log.Named("nav"),
	})
	return m, nil
}

// run samples and serves the display until ctx is cancelled, then shuts everything down.
func (m *monitor) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.sampler.Run(ctx)
	}()

	m.log.Info("vehicle monitor running")
	err := m.controller.Run(ctx, m.sampler.Ticks())
	cancel()
	wg.Wait()

	m.log.Info("vehicle monitor stopped",
		zap.Uint64("dropped_ticks", m.sampler.Dropped()),
		zap.Uint64("failed_reads", m.sampler.Failures()))
	return multierr.Append(err, m.close())
}

func (m *monitor) close() error {
	var err error
	if m.sink != nil {
		err = multierr.Append(err, m.sink.Close())
	}
	if m.source != nil {
		err = multierr.Append(err, m.source.Close())
	}
	if m.buzzer != nil {
		err = multierr.Append(err, m.buzzer.Close())
	}
	if m.journal != nil {
		err = multierr.Append(err, m.journal.Close())
	}
	return err
}

// printHistory writes the newest n journal entries to stdout.
func printHistory(cfg *config.Config, n int, log *zap.Logger) error {
	if cfg.Alarm.Journal == "" {
		return errors.New("alarm journal is disabled in the configuration")
	}
	j, err := journal.Open(cfg.Alarm.Journal, 1, log.Named("journal"))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	events, err := j.Recent(ctx, n)
	if err != nil {
		return multierr.Append(err, j.Close())
	}
	for _, ev := range events {
		fmt.Printf("%s  CH%d  %-12s  %8.3f  [%g, %g]\n", ev.Timestamp.Format("2006-01-02 15:04:05.000"),
			ev.Channel+1, ev.Kind, ev.Value, ev.AlarmMin, ev.AlarmMax)
	}
	return j.Close()
}
