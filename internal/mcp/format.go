package mcp

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/gateway-fm/matchstats/internal/fee"
	"github.com/gateway-fm/matchstats/internal/statcodec"
	"github.com/gateway-fm/matchstats/internal/storage"
)

// formatNumber adds comma separators to integers.
func formatNumber(n any) string {
	var s string
	switch v := n.(type) {
	case int64:
		s = fmt.Sprintf("%d", v)
	case uint64:
		s = fmt.Sprintf("%d", v)
	case int:
		s = fmt.Sprintf("%d", v)
	case string:
		s = v
	default:
		return fmt.Sprintf("%v", n)
	}

	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	if len(s) <= 3 {
		if neg {
			return "-" + s
		}
		return s
	}

	var result strings.Builder
	if neg {
		result.WriteByte('-')
	}
	start := len(s) % 3
	if start > 0 {
		result.WriteString(s[:start])
	}
	for i := start; i < len(s); i += 3 {
		if i > 0 {
			result.WriteByte(',')
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}

// kv formats a key-value pair with aligned values (20 char key width).
func kv(key string, value any) string {
	return fmt.Sprintf("%-20s %v", key+":", value)
}

// section returns a markdown section header.
func section(title string) string {
	return "## " + title
}

// joinLines joins lines with newlines. Empty strings become blank lines.
func joinLines(lines ...string) string {
	return strings.Join(lines, "\n")
}

func formatWei(v *big.Int) string {
	return fmt.Sprintf("%s wei (%.3f gwei)", formatNumber(v.String()), fee.GweiFloat(v))
}

func formatFields(f statcodec.Fields) string {
	return joinLines(
		kv("Goles", f.Goles),
		kv("Asistencias", f.Asistencias),
		kv("Paradas", f.Paradas),
		kv("Penaltis Parados", f.PenaltisParados),
		kv("Despejes", f.Despejes),
		kv("Minutos (x3)", fmt.Sprintf("%d (%d min)", f.MinutosQuantized, f.MinutosQuantized*statcodec.MinutesPerStep)),
		kv("Tarjetas Amarillas", f.TarjetasAmarillas),
		kv("Tarjetas Rojas", f.TarjetasRojas),
		kv("Porteria Cero", f.PorteriaCero),
		kv("Gano Partido", f.GanoPartido),
	)
}

func formatRun(r *storage.Run) string {
	lines := []string{
		section("Run " + r.ID),
		kv("Status", r.Status),
		kv("Started", r.StartedAt.Format("2006-01-02 15:04:05")),
	}
	if r.CompletedAt != nil {
		lines = append(lines, kv("Finished", r.CompletedAt.Format("2006-01-02 15:04:05")))
	}
	lines = append(lines,
		kv("Input", r.InputPath),
		kv("Sender", r.Sender),
		kv("Starting Nonce", r.StartingNonce),
		kv("Processed", formatNumber(r.Processed)),
		kv("Submitted", formatNumber(r.Submitted)),
		kv("Total Gas", formatNumber(r.TotalGas)),
		kv("Avg Gas/Record", formatNumber(r.AvgGas)),
		kv("Avg Latency", fmt.Sprintf("%dms", r.AvgLatencyMs)),
	)
	if r.ErrorMessage != "" {
		lines = append(lines, kv("Error", r.ErrorMessage))
	}
	return joinLines(lines...)
}

func formatSubmissions(subs []storage.Submission, limit int) string {
	if len(subs) == 0 {
		return "No submissions recorded for this run."
	}
	lines := []string{
		section(fmt.Sprintf("Submissions (%d)", len(subs))),
		"| Nonce | Player | Stats | Gas | Latency | Attempts | Tx |",
		"|---|---|---|---|---|---|---|",
	}
	for i, s := range subs {
		if limit > 0 && i >= limit {
			lines = append(lines, fmt.Sprintf("... %d more", len(subs)-limit))
			break
		}
		lines = append(lines, fmt.Sprintf("| %d | %d | %s | %s | %dms | %d | %s |",
			s.Nonce, s.RecordID, s.Stats, formatNumber(s.GasUsed), s.LatencyMs, s.Attempts, s.TxHash))
	}
	return joinLines(lines...)
}
