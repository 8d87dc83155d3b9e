package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"netinspect/internal/capture"
)

var replayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "Inspect a pcap or pcapng capture file",
	Long: `Run a capture file through the same decode, match and archive pipeline
as a live capture. Packets are printed to stdout; the session ends at the
end of the file.

Examples:
  netinspect replay trace.pcap
  netinspect replay trace.pcapng --signatures rules.txt --alerts-only --export hits.pcap
  netinspect replay trace.pcap --tui`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

var (
	replaySignatures string
	replayExport     string
	replayAlertsOnly bool
	replayReport     bool
	replayTUI        bool
)

func init() {
	replayCmd.Flags().StringVar(&replaySignatures, "signatures", "",
		"signature file (default: signatures.path, else built-in defaults)")
	replayCmd.Flags().StringVar(&replayExport, "export", "",
		"re-export the replayed packets to this pcap file")
	replayCmd.Flags().BoolVar(&replayAlertsOnly, "alerts-only", false,
		"print only packets that matched a signature")
	replayCmd.Flags().BoolVar(&replayReport, "report", false,
		"write an HTML session report to report.dir at the end")
	replayCmd.Flags().BoolVar(&replayTUI, "tui", false,
		"browse the file in the interactive UI")
}

func runReplay(cmd *cobra.Command, args []string) error {
	o := runOptions{
		iface:      args[0],
		sigPath:    cfg.Signatures.Path,
		exportPath: cfg.Export.Path,
		export:     replayExport != "",
		report:     replayReport,
		headless:   !replayTUI,
		alertsOnly: replayAlertsOnly,
		out:        cmd.OutOrStdout(),
	}
	if cmd.Flags().Changed("signatures") {
		o.sigPath = replaySignatures
	}
	if o.export {
		o.exportPath = replayExport
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return run(ctx, capture.OpenerFunc(capture.FileOpener), o)
}
