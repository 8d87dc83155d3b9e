package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/net/bpf"

	"netinspect/internal/capture/live"
	"netinspect/internal/signature"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a signature file and a capture filter",
	Long: `Parse a signature file without capturing and report how many rules of each
kind and severity it holds, plus every rule that can never match (empty
pattern or a regex that does not compile).

With -f the capture filter is compiled for an Ethernet link and the
resulting BPF program is printed.

Examples:
  netinspect validate --signatures rules.txt
  netinspect validate -f "tcp port 443 and not host 10.0.0.1"`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

var (
	validateSignatures string
	validateFilter     string
)

// errInvalidRules is returned when the signature file holds unusable rules.
var errInvalidRules = errors.New("signature file contains rules that never match")

func init() {
	validateCmd.Flags().StringVar(&validateSignatures, "signatures", "",
		"signature file (default: signatures.path)")
	validateCmd.Flags().StringVarP(&validateFilter, "filter", "f", "",
		"BPF capture filter to compile")
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	path := cfg.Signatures.Path
	if cmd.Flags().Changed("signatures") {
		path = validateSignatures
	}

	var sigErr error
	if path != "" {
		sigs, err := signature.LoadFile(path)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: ", path)
		sigErr = reportSignatures(out, sigs)
	} else if validateFilter == "" {
		fmt.Fprint(out, "built-in defaults: ")
		sigErr = reportSignatures(out, signature.Defaults())
	}

	if validateFilter != "" {
		raw, err := live.CompileFilter(validateFilter, cfg.Capture.Snaplen)
		if err != nil {
			fmt.Fprintf(out, "INVALID filter %q: %v\n", validateFilter, err)
			return err
		}
		printProgram(out, validateFilter, raw)
	}
	return sigErr
}

func reportSignatures(w io.Writer, sigs []signature.Signature) error {
	kinds := map[signature.Kind]int{}
	severities := map[signature.Severity]int{}
	var broken []signature.Signature
	for _, s := range sigs {
		kinds[s.Kind]++
		severities[s.Severity]++
		if !s.Valid() {
			broken = append(broken, s)
		}
	}

	fmt.Fprintf(w, "%d signature(s)\n", len(sigs))
	fmt.Fprintf(w, "  kind:     ascii=%d hex=%d regex=%d\n",
		kinds[signature.KindASCII], kinds[signature.KindHex], kinds[signature.KindRegex])
	fmt.Fprintf(w, "  severity: low=%d medium=%d critical=%d\n",
		severities[signature.SeverityLow], severities[signature.SeverityMedium], severities[signature.SeverityCritical])

	if len(broken) == 0 {
		fmt.Fprintln(w, "VALID")
		return nil
	}
	for _, s := range broken {
		if err := s.Err(); err != nil {
			fmt.Fprintf(w, "  never matches: %s %q: %v\n", s.Kind, s.Pattern, err)
		} else {
			fmt.Fprintf(w, "  never matches: %s rule with empty pattern\n", s.Kind)
		}
	}
	fmt.Fprintf(w, "INVALID: %d rule(s) never match\n", len(broken))
	return errInvalidRules
}

func printProgram(w io.Writer, filter string, raw []bpf.RawInstruction) {
	insts, ok := bpf.Disassemble(raw)
	fmt.Fprintf(w, "filter %q: %d instruction(s)\n", filter, len(raw))
	for i, ins := range insts {
		fmt.Fprintf(w, "  %03d  %v\n", i, ins)
	}
	if !ok {
		fmt.Fprintln(w, "  (some instructions could not be decoded and are shown raw)")
	}
}
