package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/wonny/aegis-longterm/internal/contracts"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

var stockColumns = []string{"#", "SYMBOL", "SCORE", "PRICE", "VOLUME", "N", "CATEGORIES"}
var stockWidths = []int{4, 10, 7, 12, 12, 2, 40}

// PrintHeader prints a formatted section header
func PrintHeader(title string, c contracts.Combination) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  %s\n", title)
	PrintSeparator()
	for _, key := range c.Keys() {
		PrintKeyValue(string(key.Category), key.Version, 12)
	}
	PrintSeparator()
}

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Println("───────────────────────────────────────────────────────────")
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Println("═══════════════════════════════════════════════════════════")
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Printf("⚠️  %s\n", message)
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("✅ %s\n", message)
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Printf("❌ %s\n", message)
}

// PrintTableHeader prints a table header
func PrintTableHeader(columns []string, widths []int) {
	fmt.Println(formatRow(columns, widths))

	// Separator line
	totalWidth := 0
	for i, width := range widths {
		totalWidth += width
		if i < len(widths)-1 {
			totalWidth += 2 // spacing
		}
	}
	fmt.Println(strings.Repeat("─", totalWidth))
}

// PrintTableRow prints a table row
func PrintTableRow(values []string, widths []int) {
	fmt.Println(formatRow(values, widths))
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Printf("   %-*s : %s\n", keyWidth, key, value)
}

// PrintMetrics prints pool metrics
func PrintMetrics(m contracts.Metrics) {
	PrintKeyValue("unique", strconv.Itoa(m.UniqueStocks), 12)
	PrintKeyValue("rows", strconv.Itoa(m.TotalStocksFound), 12)
	PrintKeyValue("multi", strconv.Itoa(m.MultiCategoryStocks), 12)
	PrintKeyValue("diversity", fmt.Sprintf("%.2f", m.DiversityScore), 12)
	PrintKeyValue("performance", fmt.Sprintf("%.2f", m.PerformanceScore), 12)
}

// PrintStocks prints ranked stocks as a table
func PrintStocks(stocks []contracts.RankedStock) {
	if len(stocks) == 0 {
		fmt.Println("   (no stocks above min score)")
		return
	}
	PrintTableHeader(stockColumns, stockWidths)
	for _, s := range stocks {
		PrintTableRow(stockRow(s), stockWidths)
	}
}

// PrintJSON prints v as indented JSON
func PrintJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatRow(values []string, widths []int) string {
	var b strings.Builder
	for i, val := range values {
		fmt.Fprintf(&b, "%-*s", widths[i], val)
		if i < len(values)-1 {
			b.WriteString("  ")
		}
	}
	return strings.TrimRight(b.String(), " ")
}

func stockRow(s contracts.RankedStock) []string {
	return []string{
		strconv.Itoa(s.Rank),
		s.Symbol,
		fmt.Sprintf("%.4f", s.CombinedScore),
		s.Price.StringFixed(2),
		s.Volume.String(),
		strconv.Itoa(s.Appearances),
		formatCategories(s.Categories),
	}
}

func formatCategories(cats []contracts.Category) string {
	parts := make([]string, 0, len(cats))
	for _, c := range cats {
		parts = append(parts, string(c))
	}
	return strings.Join(parts, ",")
}
