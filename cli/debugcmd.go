// Copyright 2016 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/insomniacslk/dhcp/dhcpv4"
	"github.com/spf13/cobra"

	"github.com/metal-stack/fielddhcp/dhcp4"
	"github.com/metal-stack/fielddhcp/pcap"
)

var (
	debugCmd = &cobra.Command{
		Use:    "debug",
		Short:  "Internal debugging commands",
		Hidden: true,
	}
	decodeCmd = &cobra.Command{
		Use:   "decode trace.pcap",
		Short: "Decode the DHCP packets of a pcap trace",
		Long: `Decode every UDP datagram of a capture, such as one written by
"serve --trace-file", the way the responder sees it. With --verbose,
an independent DHCPv4 decoder also prints all options.`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			verbose, err := cmd.Flags().GetBool("verbose")
			if err != nil {
				fatalf("Error reading flag: %s", err)
			}
			f, err := os.Open(args[0])
			if err != nil {
				fatalf("Error opening trace: %s", err)
			}
			defer f.Close()
			if err = decodeTrace(f, os.Stdout, verbose); err != nil {
				fatalf("Error decoding %s: %s", args[0], err)
			}
		},
	}
)

func init() {
	decodeCmd.Flags().BoolP("verbose", "v", false, "print the full option set of every packet")
	debugCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(debugCmd)
}

func decodeTrace(r io.Reader, out io.Writer, verbose bool) error {
	rd, err := pcap.NewReader(r)
	if err != nil {
		return err
	}
	n := 0
	for rd.Next() {
		n++
		pkt := rd.Packet()
		src, dst, payload, err := pcap.UDPPayload(rd.LinkType, pkt)
		if err != nil {
			fmt.Fprintf(out, "#%d %s: not a UDP datagram: %s\n", n, pkt.Timestamp.Format("15:04:05.000"), err)
			continue
		}
		fmt.Fprintf(out, "#%d %s %s -> %s: %s\n", n, pkt.Timestamp.Format("15:04:05.000"), src, dst, describe(payload))
		if !verbose {
			continue
		}
		d, err := dhcpv4.FromBytes(payload)
		if err != nil {
			fmt.Fprintf(out, "  undecodable: %s\n", err)
			continue
		}
		fmt.Fprintln(out, d.Summary())
	}
	return rd.Err()
}

func describe(b []byte) string {
	req, err := dhcp4.Decode(b)
	switch {
	case errors.Is(err, dhcp4.ErrNotRequest):
		resp, err := dhcp4.DecodeReply(b)
		if err != nil {
			return fmt.Sprintf("reply, ignored: %s", err)
		}
		return fmt.Sprintf("%s of %s to %s xid 0x%08x", resp.Type, resp.YourAddr, resp.HardwareAddr, resp.XID())
	case err != nil:
		return fmt.Sprintf("ignored: %s", err)
	case !req.Actionable():
		return fmt.Sprintf("%s from %s xid 0x%08x, ignored", req.Type, req.HardwareAddr, req.XID())
	default:
		return fmt.Sprintf("%s from %s xid 0x%08x", req.Type, req.HardwareAddr, req.XID())
	}
}

