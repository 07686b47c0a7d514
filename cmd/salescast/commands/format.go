package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wonny/salescast/internal/contracts"
	"github.com/wonny/salescast/internal/pipeline"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

// PrintHeader prints a formatted command header
func PrintHeader(title string, fields [][2]string) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  %s\n", title)
	PrintSeparator()
	for _, f := range fields {
		fmt.Printf("  %-12s: %s\n", f[0], f[1])
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
	PrintTableRow(columns, widths)

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
	for i, val := range values {
		fmt.Printf("%-*s", widths[i], val)
		if i < len(values)-1 {
			fmt.Print("  ")
		}
	}
	fmt.Println()
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Printf("   %-*s : %s\n", keyWidth, key, value)
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// PrintRunResult prints the stage outcome, evaluation and forecast table of a run
func PrintRunResult(result *pipeline.RunResult) {
	PrintKeyValue("Run ID", result.RunID, 12)
	PrintKeyValue("Config", result.ConfigHash[:12], 12)
	PrintKeyValue("Stages", strings.Join(result.CompletedStages, " → "), 12)
	PrintKeyValue("Duration", result.Duration.String(), 12)

	for _, f := range result.Failures {
		if f.Fatal() {
			PrintError(f.Error())
		} else {
			PrintWarning(f.Error())
		}
	}

	if result.Training != nil {
		fmt.Println()
		PrintKeyValue("Train rows", strconv.Itoa(result.Training.TrainRows), 12)
		PrintKeyValue("Valid rows", strconv.Itoa(result.Training.ValidationRows), 12)
		PrintKeyValue("Valid RMSE", money(result.Training.ValidationRMSE), 12)
		PrintKeyValue("Best iter", strconv.Itoa(result.Training.BestIteration), 12)
	}

	if ev := result.Evaluation; ev != nil && !ev.Insufficient {
		mape := "undefined (all actuals zero)"
		if ev.MAPEDefined {
			mape = fmt.Sprintf("%.2f%%", ev.MAPE)
		}
		fmt.Println()
		PrintKeyValue("Test MAE", money(ev.MAE), 12)
		PrintKeyValue("Test RMSE", money(ev.RMSE), 12)
		PrintKeyValue("Test MAPE", mape, 12)
	}

	if len(result.Forecast) > 0 {
		fmt.Println()
		widths := []int{12, 14, 14, 14}
		PrintTableHeader([]string{"Week", "Predicted", "Lower", "Upper"}, widths)
		for _, p := range result.Forecast {
			PrintTableRow([]string{
				p.Date.Format(contracts.DateLayout),
				money(p.PredictedValue),
				money(p.LowerBound),
				money(p.UpperBound),
			}, widths)
		}
	}
}
