package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"netinspect/internal/analysis"
	"netinspect/internal/capture"
	"netinspect/internal/discovery"
	"netinspect/internal/dispatch"
	"netinspect/internal/log"
	"netinspect/internal/metrics"
	"netinspect/internal/reporting"
	"netinspect/internal/signature"
	"netinspect/internal/tui"
)

// runOptions is what capture and replay hand to run.
type runOptions struct {
	iface      string
	filter     string
	sigPath    string
	exportPath string
	export     bool // export when a headless run ends
	report     bool // write an HTML report when a headless run ends
	headless   bool
	alertsOnly bool
	out        io.Writer
}

// environment holds the process-wide pieces shared by every session of a run.
type environment struct {
	store   *signature.Store
	watcher *signature.Watcher
	metrics *metrics.Server
}

func newEnvironment(sigPath string) *environment {
	logger := log.L().WithField("path", sigPath)
	store, err := signature.NewStore(sigPath)
	if err != nil {
		logger.WithError(err).Warn("failed to load signatures, using built-in defaults")
	}
	logger.WithField("signatures", len(store.Snapshot())).Info("signatures loaded")

	env := &environment{store: store}
	if cfg.Metrics.Enabled {
		env.metrics = metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path)
		env.metrics.Start()
	}
	return env
}

// watch reloads the signature file on change when configured, announcing
// each reload through pub.
func (e *environment) watch(ctx context.Context, pub capture.Publisher) {
	if !cfg.Signatures.Watch || e.store.Path() == "" {
		return
	}
	w := signature.NewWatcher(e.store, func(n int, err error) {
		if err != nil {
			pub.Post("signature reload failed, using built-in defaults: %v", err)
			return
		}
		pub.Post("%d signatures reloaded, effective from the next start", n)
	})
	if err := w.Start(ctx); err != nil {
		log.L().WithError(err).Warn("signature watcher not started")
		return
	}
	e.watcher = w
}

func (e *environment) close() {
	if e.watcher != nil {
		e.watcher.Stop()
	}
	if e.metrics != nil {
		if err := e.metrics.Stop(context.Background()); err != nil {
			log.L().WithError(err).Warn("metrics server stop failed")
		}
	}
}

// resolveInterface picks the flag value, then the configured interface,
// then the first usable device.
func resolveInterface(name string) (string, error) {
	if name != "" {
		return name, nil
	}
	if cfg.Capture.Interface != "" {
		return cfg.Capture.Interface, nil
	}
	dev, err := discovery.Default()
	if err != nil {
		return "", fmt.Errorf("no interface given and none detected: %w", err)
	}
	log.L().WithField("iface", dev.Name).Info("using default interface")
	return dev.Name, nil
}

func run(ctx context.Context, opener capture.Opener, o runOptions) error {
	env := newEnvironment(o.sigPath)
	defer env.close()

	stats := analysis.NewTrafficStats()
	if o.headless {
		return runHeadless(ctx, env, opener, stats, o)
	}
	return runTUI(ctx, env, opener, stats, o)
}

// runHeadless prints events until the source ends or ctx is cancelled.
func runHeadless(ctx context.Context, env *environment, opener capture.Opener, stats *analysis.TrafficStats, o runOptions) error {
	d := dispatch.New(dispatch.MultiSink{dispatch.NewConsoleSink(o.out, o.alertsOnly), stats})
	defer d.Close()
	env.watch(ctx, d)

	sess := capture.NewSession(opener, env.store, d)
	if err := sess.Start(o.iface, o.filter); err != nil {
		d.Drain()
		return err
	}

	ended := make(chan error, 1)
	go func() { ended <- sess.Wait() }()

	var runErr error
	select {
	case <-ctx.Done():
		sess.Stop()
		runErr = sess.Wait()
	case runErr = <-ended:
	}

	if o.export {
		if _, err := sess.Export(o.exportPath); err != nil && runErr == nil {
			runErr = err
		}
	}
	d.Drain()

	if o.report {
		path, err := writeReport(sess, stats)
		if err != nil {
			d.Post("report failed: %v", err)
			if runErr == nil {
				runErr = err
			}
		} else {
			d.Post("report written to %s", path)
		}
		d.Drain()
	}
	return runErr
}

// runTUI hands the terminal to the interactive front end. Log output to
// stderr is suppressed while it runs.
func runTUI(ctx context.Context, env *environment, opener capture.Opener, stats *analysis.TrafficStats, o runOptions) error {
	quiet := cfg.Log
	quiet.Quiet = true
	if err := log.Init(quiet); err != nil {
		return err
	}
	defer func() {
		if err := log.Init(cfg.Log); err != nil {
			fmt.Fprintf(o.out, "failed to restore logging: %v\n", err)
		}
	}()

	sink := &tui.ProgramSink{}
	d := dispatch.New(sink)
	sess := capture.NewSession(opener, env.store, d)

	model := tui.New(sess, stats, tui.Options{
		Interface:  o.iface,
		Filter:     o.filter,
		ExportPath: o.exportPath,
		Report:     func() (string, error) { return writeReport(sess, stats) },
		AutoStart:  true,
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	sink.P = p
	env.watch(ctx, d)

	_, err := p.Run()

	sess.Stop()
	d.Close()
	if werr := waitTimeout(sess, 2*time.Second); werr != nil {
		log.L().WithError(werr).Warn("capture loop did not exit cleanly")
	}
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

func waitTimeout(sess *capture.Session, d time.Duration) error {
	done := make(chan error, 1)
	go func() { done <- sess.Wait() }()
	select {
	case err := <-done:
		return err
	case <-time.After(d):
		return fmt.Errorf("capture loop still running after %s", d)
	}
}

func writeReport(sess *capture.Session, stats *analysis.TrafficStats) (string, error) {
	return reporting.GenerateSessionReport(cfg.Report.Dir, reporting.Session{
		Interface: sess.Interface(),
		Filter:    sess.Filter(),
		Archived:  sess.Archive().Len(),
	}, stats, "html")
}
