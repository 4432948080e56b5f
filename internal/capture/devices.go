package capture

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// Device is an input device as reported by `arecord -l`.
type Device struct {
	ID    string // value for the -D flag
	Card  string
	Label string
}

// card 1: Generic_1 [HD-Audio Generic], device 0: ALC257 Analog [ALC257 Analog]
var deviceLineRe = regexp.MustCompile(`^card (\d+): (\S+) \[([^\]]*)\], device (\d+): [^\[]*\[([^\]]*)\]`)

// ListDevices asks the capture command for its hardware list.
func ListDevices(ctx context.Context, command string) ([]Device, error) {
	out, err := exec.CommandContext(ctx, command, "-l").Output() //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("%s -l: %w", command, err)
	}
	return ParseDeviceList(string(out)), nil
}

// ParseDeviceList extracts capture devices from `arecord -l` output. Lines
// that are not device headers are ignored.
func ParseDeviceList(out string) []Device {
	var devices []Device
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		m := deviceLineRe.FindStringSubmatch(strings.TrimSpace(sc.Text()))
		if m == nil {
			continue
		}
		devices = append(devices, Device{
			ID:    fmt.Sprintf("plughw:%s,%s", m[1], m[4]),
			Card:  m[2],
			Label: fmt.Sprintf("%s: %s", m[3], m[5]),
		})
	}
	return devices
}
