package progress

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"xnatflow/internal/services"
)

// Prefix marks a progress line on a pipeline command's stdout.
const Prefix = "@@xnatflow progress"

// Report is one parsed progress line.
type Report struct {
	StepID      string
	Percent     float64
	Description string
}

// Parse reads a progress line. ok is false when the line does not carry the
// prefix at all; err is set when it does but the fields are unusable.
func Parse(line string) (report Report, ok bool, err error) {
	line = strings.TrimSpace(line)
	rest, found := strings.CutPrefix(line, Prefix)
	if !found {
		return Report{}, false, nil
	}
	if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
		return Report{}, false, nil
	}
	rest = strings.TrimSpace(rest)

	var haveStep, havePercent bool
	for rest != "" {
		var field string
		if strings.HasPrefix(rest, "desc=") {
			report.Description = strings.TrimSpace(strings.TrimPrefix(rest, "desc="))
			break
		}
		field, rest, _ = strings.Cut(rest, " ")
		rest = strings.TrimLeft(rest, " \t")

		key, value, hasValue := strings.Cut(field, "=")
		if !hasValue {
			return Report{}, true, malformed(line, fmt.Sprintf("field %q has no value", field))
		}
		switch key {
		case "step":
			if value == "" {
				return Report{}, true, malformed(line, "empty step")
			}
			report.StepID = value
			haveStep = true
		case "percent":
			pct, perr := strconv.ParseFloat(value, 64)
			if perr != nil || math.IsNaN(pct) || math.IsInf(pct, 0) {
				return Report{}, true, malformed(line, fmt.Sprintf("percent %q is not a number", value))
			}
			if pct < 0 || pct > 100 {
				return Report{}, true, malformed(line, fmt.Sprintf("percent %s out of range", value))
			}
			report.Percent = pct
			havePercent = true
		default:
			return Report{}, true, malformed(line, fmt.Sprintf("unknown field %q", key))
		}
	}

	if !haveStep || !havePercent {
		return Report{}, true, malformed(line, "step and percent are required")
	}
	return report, true, nil
}

func malformed(line, reason string) error {
	return services.Wrap(services.ErrValidation, "progress", "parse", fmt.Sprintf("%s: %q", reason, line), nil)
}

// StepCount is the number of progress steps a per-scan pipeline reports: one
// setup step plus four per scan.
func StepCount(scans int) int {
	if scans < 0 {
		scans = 0
	}
	return 1 + 4*scans
}

// StepPercent returns the completion percentage at sub-step sub (0-3) of scan
// n (zero based) in a pipeline over the given number of scans.
func StepPercent(n, sub, scans int) float64 {
	return 100 * float64(1+4*n+sub) / float64(StepCount(scans))
}

// Format renders a report as a progress line for pipelines written in Go.
func Format(r Report) string {
	line := fmt.Sprintf("%s step=%s percent=%.1f", Prefix, r.StepID, r.Percent)
	if desc := strings.TrimSpace(r.Description); desc != "" {
		line += " desc=" + desc
	}
	return line
}
