package scan

import (
	"fmt"
	"sort"
	"strings"
)

// FormatDuration renders a scan duration as "N min M sec".
func FormatDuration(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("%d min %d sec", total/60, total%60)
}

// RenderReport formats a site result as the human-readable report printed
// to standard output after a scan. Errored devices render the same way as
// devices with telemetry issues: the message takes the place of telemetry.
func RenderReport(result *SiteResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Site scan report: %s\n", result.SiteID)
	fmt.Fprintf(&b, "Scanned at %s, duration %s\n", result.Timestamp, FormatDuration(result.DurationSeconds))

	for _, sub := range result.Subsections {
		fmt.Fprintf(&b, "\n=== %s ===\n", sub.Name)
		fmt.Fprintf(&b, "Ranges: %s | expected %d miners | %d active IPs\n",
			strings.Join(sub.IPRanges, ", "), sub.ExpectedMiners, len(sub.ActiveIPs))

		renderWorking(&b, sub.Summary)
		renderIssues(&b, sub.Summary)
		renderComparison(&b, sub.Summary)
	}

	renderErrorGroups(&b, result.ErrorGroups)
	return b.String()
}

// renderErrorGroups prints the site-wide deduplicated failure view: one
// line per normalized message with every device reporting it, so a fan
// error hitting thirty units shows up once with thirty IPs.
func renderErrorGroups(b *strings.Builder, groups map[string]map[string][]string) {
	if len(groups) == 0 {
		return
	}

	b.WriteString("\nError groups:\n")
	for _, deviceType := range sortedKeys(groups) {
		fmt.Fprintf(b, "  %s:\n", deviceType)
		byMessage := groups[deviceType]
		for _, message := range sortedKeys(byMessage) {
			ips := byMessage[message]
			fmt.Fprintf(b, "    %s (%d): %s\n", message, len(ips), strings.Join(ips, ", "))
		}
	}
}

func renderWorking(b *strings.Builder, summary SubsectionSummary) {
	b.WriteString("\nWorking:\n")
	if len(summary.Working) == 0 {
		b.WriteString("  (none)\n")
		return
	}
	for _, deviceType := range sortedKeys(summary.Working) {
		fmt.Fprintf(b, "  %s: %d\n", deviceType, len(summary.Working[deviceType]))
	}
}

func renderIssues(b *strings.Builder, summary SubsectionSummary) {
	b.WriteString("\nIssues:\n")
	if len(summary.Issues) == 0 {
		b.WriteString("  (none)\n")
		return
	}
	for _, deviceType := range sortedKeys(summary.Issues) {
		byIP := summary.Issues[deviceType]
		fmt.Fprintf(b, "  %s:\n", deviceType)
		for _, ip := range sortedKeys(byIP) {
			descriptions := make([]string, len(byIP[ip]))
			for i, issue := range byIP[ip] {
				descriptions[i] = issue.Description
			}
			fmt.Fprintf(b, "    %s: %s\n", ip, strings.Join(descriptions, "; "))
		}
	}
}

func renderComparison(b *strings.Builder, summary SubsectionSummary) {
	b.WriteString("\nTheoretical Online vs Real:\n")
	for _, deviceType := range sortedKeys(summary.Comparison) {
		c := summary.Comparison[deviceType]
		fmt.Fprintf(b, "  %s: expected %d, actual %d, working %d, with issues %d\n",
			deviceType, c.Expected, c.Actual, c.Working, c.WithIssues)
		if c.Offline > 0 {
			fmt.Fprintf(b, "  WARNING: %d %s miner(s) offline\n", c.Offline, deviceType)
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
