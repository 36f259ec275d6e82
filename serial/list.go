package serial

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"go.bug.st/serial/enumerator"
)

// Regular expressions for different types of serial devices
var serialPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^ttyUSB\d+$`), // USB serial adapters
	regexp.MustCompile(`^ttyACM\d+$`), // USB CDC/ACM devices
	regexp.MustCompile(`^ttyS\d+$`),   // Standard serial ports
	regexp.MustCompile(`^ttyAMA\d+$`), // ARM/Raspberry Pi serial
	regexp.MustCompile(`^ttymxc\d+$`), // i.MX serial ports
	regexp.MustCompile(`^ttyO\d+$`),   // OMAP serial ports
	regexp.MustCompile(`^ttySAC\d+$`), // Samsung serial ports
	regexp.MustCompile(`^ttyTHS\d+$`), // Tegra serial ports
}

// Exclude patterns for virtual terminals and other non-serial devices
var excludePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^tty\d+$`),
	regexp.MustCompile(`^console$`),
	regexp.MustCompile(`^ptmx$`),
	regexp.MustCompile(`^pty.*$`),
	regexp.MustCompile(`^pts/.*$`),
}

func matchesSerialPattern(name string) bool {
	for _, p := range excludePatterns {
		if p.MatchString(name) {
			return false
		}
	}
	for _, p := range serialPatterns {
		if p.MatchString(name) {
			return true
		}
	}
	return false
}

// isUSBName reports whether a device name belongs to a USB-backed driver
func isUSBName(name string) bool {
	return strings.HasPrefix(name, "ttyUSB") || strings.HasPrefix(name, "ttyACM")
}

// devDir is a variable so tests can point discovery at a fixture tree
var devDir = "/dev"

// ListPorts returns a list of available serial ports on the system
// Filters for communication-capable devices and excludes virtual terminals
func ListPorts() ([]string, error) {
	entries, err := os.ReadDir(devDir)
	if err != nil {
		return nil, err
	}

	var ports []string
	for _, entry := range entries {
		name := entry.Name()
		if !matchesSerialPattern(name) {
			continue
		}
		fullPath := filepath.Join(devDir, name)
		if isCharacterDevice(fullPath) {
			ports = append(ports, fullPath)
		}
	}

	sort.Strings(ports)
	return ports, nil
}

// isCharacterDevice checks if the given path is a character device
func isCharacterDevice(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// PortInfo describes one serial device
type PortInfo struct {
	Name         string `json:"name" yaml:"name"`
	Path         string `json:"path" yaml:"path"`
	Description  string `json:"description" yaml:"description"`
	IsUSB        bool   `json:"usb" yaml:"usb"`
	VendorID     string `json:"vid,omitempty" yaml:"vid,omitempty"`
	ProductID    string `json:"pid,omitempty" yaml:"pid,omitempty"`
	SerialNumber string `json:"serial_number,omitempty" yaml:"serial_number,omitempty"`
	Product      string `json:"product,omitempty" yaml:"product,omitempty"`
}

// GetPortInfo returns detailed information about a specific port
func GetPortInfo(portPath string) (*PortInfo, error) {
	if !isCharacterDevice(portPath) {
		return nil, ErrDeviceNotFound
	}

	name := filepath.Base(portPath)
	return &PortInfo{
		Name:        name,
		Path:        portPath,
		Description: getPortDescription(name),
		IsUSB:       isUSBName(name),
	}, nil
}

// getPortDescription provides human-readable descriptions for different port types
func getPortDescription(name string) string {
	switch {
	case strings.HasPrefix(name, "ttyUSB"):
		return "USB Serial Port"
	case strings.HasPrefix(name, "ttyACM"):
		return "USB CDC/ACM Device"
	case strings.HasPrefix(name, "ttyAMA"):
		return "ARM Serial Port"
	case strings.HasPrefix(name, "ttymxc"):
		return "i.MX Serial Port"
	case strings.HasPrefix(name, "ttySAC"):
		return "Samsung Serial Port"
	case strings.HasPrefix(name, "ttyTHS"):
		return "Tegra Serial Port"
	case strings.HasPrefix(name, "ttyO"):
		return "OMAP Serial Port"
	case strings.HasPrefix(name, "ttyS"):
		return "Standard Serial Port"
	default:
		return "Serial Port"
	}
}

// detailedPorts is swapped out in tests; the enumerator reads sysfs
var detailedPorts = enumerator.GetDetailedPortsList

// ListPortDetails returns PortInfo for every port. Unless all is set only
// USB-backed ports are returned, which is what auto-selection considers.
func ListPortDetails(all bool) ([]PortInfo, error) {
	paths, err := ListPorts()
	if err != nil {
		return nil, err
	}

	usb := map[string]*enumerator.PortDetails{}
	if details, err := detailedPorts(); err == nil {
		for _, d := range details {
			usb[d.Name] = d
		}
	}

	infos := make([]PortInfo, 0, len(paths))
	for _, path := range paths {
		name := filepath.Base(path)
		info := PortInfo{
			Name:        name,
			Path:        path,
			Description: getPortDescription(name),
			IsUSB:       isUSBName(name),
		}
		if d, ok := usb[path]; ok && d.IsUSB {
			info.IsUSB = true
			info.VendorID = d.VID
			info.ProductID = d.PID
			info.SerialNumber = d.SerialNumber
			info.Product = d.Product
		}
		if !all && !info.IsUSB {
			continue
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// SelectPort resolves the device to bridge. An explicit path always wins;
// otherwise exactly one candidate must exist.
func SelectPort(explicit string, candidates []string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	switch len(candidates) {
	case 0:
		return "", &OpenError{Kind: OpenErrNotFound}
	case 1:
		return candidates[0], nil
	default:
		return "", &OpenError{Kind: OpenErrMultipleCandidates, Candidates: candidates}
	}
}

// AutoSelectPort is SelectPort over the USB-backed ports currently present.
func AutoSelectPort(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	infos, err := ListPortDetails(false)
	if err != nil {
		return "", err
	}
	candidates := make([]string, len(infos))
	for i, info := range infos {
		candidates[i] = info.Path
	}
	return SelectPort("", candidates)
}
