package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/metal-stack/fielddhcp/netconf"
)

var interfacesCmd = &cobra.Command{
	Use:   "interfaces",
	Short: "List the network interfaces fielddhcp can serve",
	Run: func(cmd *cobra.Command, args []string) {
		adapters, err := netconf.Adapters()
		if err != nil {
			fatalf("Error listing interfaces: %s", err)
		}
		printAdapters(os.Stdout, adapters)
	},
}

func init() {
	rootCmd.AddCommand(interfacesCmd)
}

func printAdapters(out io.Writer, adapters []netconf.Adapter) {
	if len(adapters) == 0 {
		fmt.Fprintln(out, "No usable network interfaces found.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tMAC\tIPV4")
	for _, a := range adapters {
		addrs := make([]string, 0, len(a.Addrs))
		for _, n := range a.Addrs {
			addrs = append(addrs, n.String())
		}
		mac := a.HardwareAddr.String()
		if mac == "" {
			mac = "-"
		}
		ips := strings.Join(addrs, ", ")
		if ips == "" {
			ips = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", a.Name, mac, ips)
	}
	w.Flush()
}
