package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/glucogate/backend/memory"
	"github.com/glucogate/core"
	"github.com/glucogate/glucose"
	"github.com/glucogate/metrics"
	"github.com/glucogate/strategy/fixedwindow"
)

func main() {
	fmt.Println("🩸 Glucose Screening Console")
	fmt.Println("============================")
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)
	config := getConfigFromUser(reader)

	limiter, err := core.NewLimiter(memory.NewBackend(), fixedwindow.NewStrategy(config), config, metrics.NewNoOpReporter())
	if err != nil {
		fmt.Printf("❌ Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\n✅ Quota configured: %d requests per %v\n", config.Limit, config.Window)
	fmt.Println()

	runInteractiveMode(reader, os.Stdout, limiter)
}

func getConfigFromUser(reader *bufio.Reader) core.Config {
	fmt.Println("Configure the quota used by 'check':")

	fmt.Print("Requests per window: ")
	limitStr, _ := reader.ReadString('\n')
	limit, _ := strconv.ParseInt(strings.TrimSpace(limitStr), 10, 64)
	if limit <= 0 {
		limit = 5
		fmt.Printf("Using default limit: %d\n", limit)
	}

	fmt.Print("Window (e.g., 1m, 30s): ")
	windowStr, _ := reader.ReadString('\n')
	window, err := time.ParseDuration(strings.TrimSpace(windowStr))
	if err != nil || window <= 0 {
		window = time.Minute
		fmt.Printf("Using default window: %v\n", window)
	}

	return core.Config{Limit: limit, Window: window, KeyPrefix: "console"}
}

func runInteractiveMode(reader *bufio.Reader, out io.Writer, limiter core.RateLimiter) {
	fmt.Fprintln(out, "Interactive Commands:")
	fmt.Fprintln(out, "  'read <text>'                  - Extract a reading from meter text")
	fmt.Fprintln(out, "  'eval <value> <unit> <type>'   - Validate and classify a reading")
	fmt.Fprintln(out, "  'check <key>'                  - Consume one unit of quota")
	fmt.Fprintln(out, "  'status <key>'                 - Show quota without consuming it")
	fmt.Fprintln(out, "  'clear <key>'                  - Reset quota for a key")
	fmt.Fprintln(out, "  'quit'                         - Exit")
	fmt.Fprintln(out)

	for {
		fmt.Fprint(out, "> ")
		input, err := reader.ReadString('\n')
		input = strings.TrimSpace(input)
		if input == "quit" || (err != nil && input == "") {
			fmt.Fprintln(out, "Goodbye!")
			return
		}

		command, rest, _ := strings.Cut(input, " ")
		rest = strings.TrimSpace(rest)
		if command == "" {
			continue
		}

		switch command {
		case "read":
			if rest == "" {
				fmt.Fprintln(out, "Usage: read <text>")
				continue
			}
			readText(out, rest)

		case "eval":
			args := strings.Fields(rest)
			if len(args) != 3 {
				fmt.Fprintln(out, "Usage: eval <value> <mg/dL|mmol/L> <fasting|random>")
				continue
			}
			evaluate(out, args[0], args[1], args[2])

		case "check", "status", "clear":
			if rest == "" {
				fmt.Fprintf(out, "Usage: %s <key>\n", command)
				continue
			}
			quota(out, limiter, command, rest)

		default:
			fmt.Fprintf(out, "Unknown command: %s\n", command)
		}
	}
}

func readText(out io.Writer, text string) {
	result := glucose.Extract(text)
	if !result.Found() {
		fmt.Fprintln(out, "🔍 No plausible reading found")
		return
	}

	validation := glucose.Validate(*result.Value, *result.Unit)
	if !validation.IsValid {
		fmt.Fprintf(out, "⚠️  Read %g %s but it failed validation: %s\n", *result.Value, *result.Unit, validation.Error)
		return
	}

	fmt.Fprintf(out, "🔍 Reading: %g %s\n", *validation.Value, *result.Unit)
	if validation.Warning != "" {
		fmt.Fprintf(out, "⚠️  %s\n", validation.Warning)
	}
}

func evaluate(out io.Writer, value, unitStr, testTypeStr string) {
	unit, err := glucose.ParseUnit(unitStr)
	if err != nil {
		fmt.Fprintf(out, "❌ %v\n", err)
		return
	}
	testType, err := glucose.ParseTestType(testTypeStr)
	if err != nil {
		fmt.Fprintf(out, "❌ %v\n", err)
		return
	}

	evaluation := glucose.Evaluate(value, unit, testType)
	if !evaluation.Validation.IsValid {
		fmt.Fprintf(out, "❌ %s\n", evaluation.Validation.Error)
		return
	}

	c := evaluation.Classification
	fmt.Fprintf(out, "📊 %g %s (%s): %s\n", evaluation.Reading.Value, unit, testType, c.Title)
	fmt.Fprintf(out, "   %s\n", c.Description)
	if evaluation.Validation.Warning != "" {
		fmt.Fprintf(out, "⚠️  %s\n", evaluation.Validation.Warning)
	}
}

func quota(out io.Writer, limiter core.RateLimiter, command, key string) {
	ctx := context.Background()

	if command == "clear" {
		if err := limiter.Reset(ctx, key); err != nil {
			fmt.Fprintf(out, "❌ Error clearing key '%s': %v\n", key, err)
			return
		}
		fmt.Fprintf(out, "🧹 Cleared quota for key: %s\n", key)
		return
	}

	var (
		decision core.Decision
		err      error
	)
	if command == "check" {
		decision, err = limiter.Check(ctx, key)
	} else {
		decision, err = limiter.Peek(ctx, key)
	}
	if err != nil {
		fmt.Fprintf(out, "❌ Error: %v\n", err)
		return
	}

	if decision.Limited {
		fmt.Fprintf(out, "🚫 LIMITED - Key: %s. %s\n", key, core.FormatRetryMessage(decision))
		return
	}
	fmt.Fprintf(out, "✅ %s - Key: %s, Remaining: %d/%d, Resets: %s\n",
		strings.ToUpper(command), key, decision.Remaining, decision.Limit, decision.ResetAt.Format(time.TimeOnly))
}
