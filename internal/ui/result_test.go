package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestResult_Render(t *testing.T) {
	tests := []struct {
		name   string
		result *Result
		want   []string
	}{
		{
			name:   "success",
			result: NewSuccessResult("Gateway online", map[string]string{"Version": "167"}),
			want:   []string{SuccessMarker, "SUCCESS", "Gateway online", "Version:", "167"},
		},
		{
			name:   "failure",
			result: NewFailureResult("Handshake failed", errors.New("no answer"), []string{"Check the port"}),
			want:   []string{FailureMarker, "FAILED", "Handshake failed", "Error: no answer", "Troubleshooting:", "Check the port"},
		},
		{
			name:   "warning",
			result: NewWarningResult("No ports", nil).AddDetail("Hint", "plug in the stick"),
			want:   []string{"WARNING", "No ports", "Hint:", "plug in the stick"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.result.SetWidth(80).String()
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("Render() missing %q:\n%s", want, out)
				}
			}
		})
	}
}

func TestResult_DetailsSorted(t *testing.T) {
	out := NewSuccessResult("x", map[string]string{"Zeta": "1", "Alpha": "2", "Mid": "3"}).SetWidth(80).Render()
	a, m, z := strings.Index(out, "Alpha"), strings.Index(out, "Mid"), strings.Index(out, "Zeta")
	if a < 0 || !(a < m && m < z) {
		t.Errorf("details not sorted:\n%s", out)
	}
}

func TestHeader_Render(t *testing.T) {
	out := NewHeader("Gateway Monitor", "maxcul monitor", map[string]string{
		"Port":    "/dev/ttyACM0",
		"Gateway": "123456",
	}).SetWidth(80).Render()

	for _, want := range []string{"GATEWAY MONITOR", "maxcul monitor", "Port:", "/dev/ttyACM0", "─"} {
		if !strings.Contains(out, want) {
			t.Errorf("Render() missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "Gateway:") > strings.Index(out, "Port:") {
		t.Error("params not sorted")
	}

	bare := NewHeader("Version", "maxcul version", nil).SetWidth(80).Render()
	if strings.Contains(bare, "Port:") {
		t.Errorf("header without params renders params:\n%s", bare)
	}
	if !hasDivider(out) {
		t.Errorf("header with params has no divider:\n%s", out)
	}
	if hasDivider(bare) {
		t.Errorf("header without params has a divider:\n%s", bare)
	}
}

// hasDivider reports a rule inside the box, between its border lines.
func hasDivider(box string) bool {
	lines := strings.Split(strings.TrimRight(box, "\n"), "\n")
	if len(lines) < 3 {
		return false
	}
	for _, line := range lines[1 : len(lines)-1] {
		if strings.Contains(line, "─") {
			return true
		}
	}
	return false
}

func TestPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf).SetWidth(70)
	if p.Width() != 70 {
		t.Errorf("Width() = %d", p.Width())
	}

	p.PrintHeader("Serial Ports", "maxcul ports", nil)
	p.Printf("%s\n", "/dev/ttyACM0")
	p.PrintError("Open failed", errors.New("busy"), nil)

	out := buf.String()
	for _, want := range []string{"SERIAL PORTS", "/dev/ttyACM0", "Open failed", "busy"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
