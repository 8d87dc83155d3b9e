package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"netinspect/internal/capture/live"
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture and inspect live traffic",
	Long: `Capture frames from a network interface and inspect them.

By default an interactive packet list is shown; the capture starts at once
and can be paused, resumed, stopped and restarted from the keyboard.
With --headless every packet is printed as one line on stdout until the
process receives SIGINT or SIGTERM (or --duration elapses).

Examples:
  netinspect capture -i eth0
  netinspect capture -i eth0 -f "tcp port 80" --signatures rules.txt
  netinspect capture -i eth0 --headless --alerts-only --export alerts.pcap`,
	RunE: runCapture,
}

var (
	captureIface      string
	captureFilter     string
	captureSignatures string
	captureExport     string
	captureHeadless   bool
	captureAlertsOnly bool
	captureDuration   time.Duration
	captureReport     bool
)

func init() {
	captureCmd.Flags().StringVarP(&captureIface, "interface", "i", "",
		"network interface (default: capture.interface, else the first usable device)")
	captureCmd.Flags().StringVarP(&captureFilter, "filter", "f", "",
		"BPF capture filter (default: capture.filter)")
	captureCmd.Flags().StringVar(&captureSignatures, "signatures", "",
		"signature file (default: signatures.path, else built-in defaults)")
	captureCmd.Flags().StringVar(&captureExport, "export", "",
		"pcap export path; in headless mode the session is exported on exit")
	captureCmd.Flags().BoolVar(&captureHeadless, "headless", false,
		"print packets to stdout instead of running the interactive UI")
	captureCmd.Flags().BoolVar(&captureAlertsOnly, "alerts-only", false,
		"headless: print only packets that matched a signature")
	captureCmd.Flags().DurationVar(&captureDuration, "duration", 0,
		"headless: stop after this long (0 = until interrupted)")
	captureCmd.Flags().BoolVar(&captureReport, "report", false,
		"headless: write an HTML session report to report.dir on exit")
}

func runCapture(cmd *cobra.Command, args []string) error {
	iface, err := resolveInterface(captureIface)
	if err != nil {
		return err
	}

	o := runOptions{
		iface:      iface,
		filter:     cfg.Capture.Filter,
		sigPath:    cfg.Signatures.Path,
		exportPath: cfg.Export.Path,
		export:     cmd.Flags().Changed("export"),
		report:     captureReport,
		headless:   captureHeadless,
		alertsOnly: captureAlertsOnly,
		out:        cmd.OutOrStdout(),
	}
	if cmd.Flags().Changed("filter") {
		o.filter = captureFilter
	}
	if cmd.Flags().Changed("signatures") {
		o.sigPath = captureSignatures
	}
	if o.export {
		o.exportPath = captureExport
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if captureHeadless && captureDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, captureDuration)
		defer cancel()
	}

	opener := live.NewOpener(live.Config{
		Snaplen:      cfg.Capture.Snaplen,
		PollInterval: cfg.Capture.PollInterval,
	})
	return run(ctx, opener, o)
}
