package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"netinspect/internal/discovery"
)

var interfacesCmd = &cobra.Command{
	Use:   "interfaces",
	Short: "List capture interfaces",
	Long: `List the devices libpcap can capture on, with their addresses and link state.
The device marked with * is used when no interface is configured.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ifaces, err := discovery.Interfaces()
		if err != nil {
			return err
		}
		def, _ := discovery.Default()
		printInterfaces(cmd.OutOrStdout(), ifaces, def.Name)
		return nil
	},
}

func printInterfaces(w io.Writer, ifaces []discovery.Interface, def string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  NAME\tSTATE\tMAC\tADDRESSES\tDESCRIPTION")
	for _, iface := range ifaces {
		mark := " "
		if iface.Name == def {
			mark = "*"
		}
		state := "down"
		if iface.Up {
			state = "up"
		}
		if iface.Loopback {
			state += ",loopback"
		}
		mac := iface.MAC.String()
		if mac == "" {
			mac = "-"
		}
		addrs := make([]string, 0, len(iface.Addresses))
		for _, a := range iface.Addresses {
			addrs = append(addrs, a.String())
		}
		fmt.Fprintf(tw, "%s %s\t%s\t%s\t%s\t%s\n", mark, iface.Name, state, mac, strings.Join(addrs, ","), iface.Description)
	}
	tw.Flush()
}
