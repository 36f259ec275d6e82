/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/allbin/sergw/serial"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// portsCmd represents the ports command
var portsCmd = &cobra.Command{
	Use:   "ports [port]",
	Short: "List serial ports that listen can bridge",
	Long: `List the serial ports present on the system.

By default only USB-backed ports (ttyUSB*, ttyACM*) are listed, which are
the ports listen picks from when --serial is not given. --all adds platform
UARTs such as ttyS*, ttyAMA* and ttymxc*.

Given a port path, show everything known about that one port.

Example usage:
  sergw ports
  sergw ports --all --verbose
  sergw ports --format json
  sergw ports /dev/ttyUSB0`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		verbose, _ := cmd.Flags().GetBool("verbose")
		format, _ := cmd.Flags().GetString("format")

		if len(args) == 1 {
			return showPort(os.Stdout, args[0])
		}

		infos, err := serial.ListPortDetails(all)
		if err != nil {
			return fmt.Errorf("listing ports: %w", err)
		}
		return renderPorts(os.Stdout, infos, format, verbose)
	},
}

func init() {
	rootCmd.AddCommand(portsCmd)

	portsCmd.Flags().BoolP("all", "a", false, "Include non-USB serial ports")
	portsCmd.Flags().BoolP("verbose", "v", false, "Show USB vendor/product IDs, serial number and product")
	portsCmd.Flags().StringP("format", "f", "text", "Output format: text, json, yaml")
}

func renderPorts(w io.Writer, infos []serial.PortInfo, format string, verbose bool) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(infos)
	case "text", "":
	default:
		return fmt.Errorf("invalid --format %q (valid: text, json, yaml)", format)
	}

	if len(infos) == 0 {
		fmt.Fprintln(w, "No serial ports found")
		return nil
	}
	if !verbose {
		for _, info := range infos {
			fmt.Fprintln(w, info.Path)
		}
		return nil
	}
	renderPortTable(w, infos)
	return nil
}

// renderPortTable renders the port list in a styled static table format
func renderPortTable(w io.Writer, infos []serial.PortInfo) {
	fmt.Fprintf(w, "Found %d serial port(s):\n\n", len(infos))

	pathWidth := 16
	descWidth := 22
	idWidth := 10
	serialWidth := 18

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("99")).
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("240")).
		PaddingBottom(1)

	cellStyle := lipgloss.NewStyle().
		PaddingRight(2)

	header := fmt.Sprintf("%-*s %-*s %-*s %-*s %s",
		pathWidth, "Port",
		descWidth, "Type",
		idWidth, "VID:PID",
		serialWidth, "Serial",
		"Product")
	fmt.Fprintln(w, headerStyle.Render(header))

	for _, info := range infos {
		ids := "-"
		if info.VendorID != "" || info.ProductID != "" {
			ids = info.VendorID + ":" + info.ProductID
		}
		row := fmt.Sprintf("%-*s %-*s %-*s %-*s %s",
			pathWidth, info.Path,
			descWidth, info.Description,
			idWidth, ids,
			serialWidth, orDash(info.SerialNumber),
			orDash(info.Product))
		fmt.Fprintln(w, cellStyle.Render(row))
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// showPort prints the details of a single port
func showPort(w io.Writer, path string) error {
	info, err := serial.GetPortInfo(path)
	if err != nil {
		return &serial.OpenError{Kind: serial.OpenErrNotFound, Path: path, Err: err}
	}
	if details, err := serial.ListPortDetails(true); err == nil {
		for _, d := range details {
			if d.Path == path {
				info = &d
				break
			}
		}
	}

	fmt.Fprintf(w, "Port Information: %s\n\n", info.Path)
	fmt.Fprintf(w, "  Name:        %s\n", info.Name)
	fmt.Fprintf(w, "  Description: %s\n", info.Description)
	fmt.Fprintf(w, "  USB:         %t\n", info.IsUSB)

	if info.VendorID != "" || info.ProductID != "" {
		fmt.Fprintln(w, "\nUSB Device Information:")
		fmt.Fprintf(w, "  Vendor ID:    %s\n", info.VendorID)
		fmt.Fprintf(w, "  Product ID:   %s\n", info.ProductID)
		if info.SerialNumber != "" {
			fmt.Fprintf(w, "  Serial:       %s\n", info.SerialNumber)
		}
		if info.Product != "" {
			fmt.Fprintf(w, "  Product:      %s\n", info.Product)
		}
	}
	return nil
}
