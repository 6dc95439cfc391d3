package bot

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"oispurts/pkg/contracts/domain"
)

// maxErrorDetail bounds the error text shown to users
const maxErrorDetail = 200

var codeReplacer = strings.NewReplacer(`\`, `\\`, "`", "\\`")

// Escape makes s safe for MarkdownV2 outside of code spans
func Escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, strings.ReplaceAll(s, `\`, `\\`))
}

func bold(s string) string {
	return "*" + Escape(s) + "*"
}

func italic(s string) string {
	return "_" + Escape(s) + "_"
}

// code renders s as an inline code span. Only backticks and backslashes
// are special inside one.
func code(s string) string {
	return "`" + codeReplacer.Replace(s) + "`"
}

// changeIndicator describes a rank delta. A positive delta means the
// serial number went up since the previous poll.
func changeIndicator(delta int) (emoji, text string) {
	switch {
	case delta > 0:
		return "⬆️", fmt.Sprintf("(↗️ +%d)", delta)
	case delta < 0:
		return "⬇️", fmt.Sprintf("(↘️ %d)", delta)
	default:
		return "➡️", "(no change)"
	}
}

func listIndicator(delta int) string {
	switch {
	case delta > 0:
		return " ⬆️"
	case delta < 0:
		return " ⬇️"
	}
	return ""
}

// RenderObservation renders the stock card for one observation
func RenderObservation(obs domain.Observation, loc *time.Location) string {
	ts := obs.Timestamp.In(loc)
	emoji, change := changeIndicator(obs.RankDelta)

	var b strings.Builder
	fmt.Fprintf(&b, "📊 %s\n\n", bold("Stock Data for "+obs.InstrumentKey))
	fmt.Fprintf(&b, "🏷️ %s %s %s\n", bold("Serial Number:"), code(strconv.Itoa(obs.Rank)), emoji)
	fmt.Fprintf(&b, "📈 %s %s\n", bold("Position Change:"), Escape(change))
	fmt.Fprintf(&b, "⏰ %s %s\n", bold("Last Updated:"), code(ts.Format("15:04:05")))
	fmt.Fprintf(&b, "📅 %s %s\n\n", bold("Date:"), code(ts.Format(domain.DateLayout)))
	b.WriteString("💡 " + italic("Serial number indicates the stock's position in OI spurts ranking"))

	if len(obs.Auxiliary) > 0 {
		names := make([]string, 0, len(obs.Auxiliary))
		for name := range obs.Auxiliary {
			names = append(names, name)
		}
		sort.Strings(names)

		b.WriteString("\n\n" + bold("📊 Additional Data:"))
		for _, name := range names {
			fmt.Fprintf(&b, "\n📋 %s %s", bold(fieldTitle(name)+":"), code(obs.Auxiliary[name]))
		}
	}
	return b.String()
}

// fieldTitle turns a lowercased column name into a label
func fieldTitle(name string) string {
	words := strings.Fields(strings.ReplaceAll(name, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// RenderHistory renders today's observations of one instrument, oldest first
func RenderHistory(key string, hist []domain.Observation, loc *time.Location) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📈 %s\n\n", bold("Serial Number History for "+key))

	for i, obs := range hist {
		line := fmt.Sprintf("%s %s Serial: %s", code(fmt.Sprintf("%2d.", i+1)), code(obs.Timestamp.In(loc).Format("15:04")), code(strconv.Itoa(obs.Rank)))
		if i > 0 {
			_, change := changeIndicator(obs.RankDelta)
			line += " " + Escape(change)
		}
		b.WriteString(line + "\n")
	}

	if first, ok := firstLast(hist); ok {
		net := hist[len(hist)-1].Rank - first.Rank
		emoji, _ := changeIndicator(net)
		fmt.Fprintf(&b, "\n📊 %s %s %s\n", bold("Net Change:"), Escape(fmt.Sprintf("%+d", net)), emoji)
	}
	fmt.Fprintf(&b, "🔢 %s %s", bold("Data Points:"), Escape(strconv.Itoa(len(hist))))
	return b.String()
}

func firstLast(hist []domain.Observation) (domain.Observation, bool) {
	if len(hist) < 2 {
		return domain.Observation{}, false
	}
	return hist[0], true
}

// RenderList renders one page of the alphabetical instrument list. page is
// 1-based and clamped to the available pages. It returns the text and the
// page count.
func RenderList(entries []domain.ListEntry, page, pageSize int, now time.Time) (string, int) {
	if len(entries) == 0 {
		return "📭 " + bold("No stocks available") + "\n\n" + Escape("No data has been collected today yet."), 0
	}
	if pageSize < 1 {
		pageSize = 20
	}

	sorted := make([]domain.ListEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })

	pages := (len(sorted) + pageSize - 1) / pageSize
	if page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}

	start := (page - 1) * pageSize
	end := start + pageSize
	if end > len(sorted) {
		end = len(sorted)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📋 %s %s\n\n", bold("Available Stocks"), Escape(fmt.Sprintf("(Page %d/%d)", page, pages)))
	for i, e := range sorted[start:end] {
		fmt.Fprintf(&b, "%s %s \\- Serial: %s%s\n",
			code(fmt.Sprintf("%2d.", start+i+1)), bold(e.Key), code(strconv.Itoa(e.Rank)), listIndicator(e.RankDelta))
	}
	fmt.Fprintf(&b, "\n📊 %s %s\n", bold("Total Stocks:"), Escape(strconv.Itoa(len(sorted))))
	fmt.Fprintf(&b, "⏰ %s %s", bold("Last Updated:"), Escape(now.Format("15:04:05")))
	if page < pages {
		fmt.Fprintf(&b, "\n\n%s", Escape(fmt.Sprintf("Use /list %d for the next page", page+1)))
	}
	return b.String(), pages
}

// RenderStatus renders the collection status card
func RenderStatus(st domain.Status, loc *time.Location) string {
	market := "🔴 Closed"
	if st.InWindow {
		market = "🟢 Open"
	}
	last := "No data yet"
	if st.LatestTimestamp != nil {
		last = st.LatestTimestamp.In(loc).Format("15:04:05")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🤖 %s\n\n", bold("Bot Status"))
	fmt.Fprintf(&b, "📅 %s %s\n", bold("Date:"), code(st.CurrentDate))
	fmt.Fprintf(&b, "🏛️ %s %s\n", bold("Market:"), Escape(market))
	fmt.Fprintf(&b, "📊 %s %s\n", bold("Stocks Tracked:"), code(strconv.Itoa(st.TotalInstruments)))
	fmt.Fprintf(&b, "✅ %s %s\n", bold("Successful Updates:"), code(strconv.Itoa(st.SuccessfulUpdates)))
	fmt.Fprintf(&b, "❌ %s %s\n", bold("Failed Updates:"), code(strconv.Itoa(st.FailedUpdates)))
	fmt.Fprintf(&b, "📁 %s %s\n", bold("Files Today:"), code(strconv.Itoa(st.FilesToday)))
	fmt.Fprintf(&b, "⏰ %s %s\n", bold("Last Update:"), code(last))
	fmt.Fprintf(&b, "⏭️ %s %s\n", bold("Next Update:"), code(st.NextUpdate))
	fmt.Fprintf(&b, "⌛ %s %s", bold("Uptime:"), code(st.Uptime))
	return b.String()
}

// RenderNotFound renders a lookup miss with the closest keys
func RenderNotFound(query string, suggestions []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔍 %s\n", bold("No data found for "+strings.ToUpper(strings.TrimSpace(query))))
	if len(suggestions) == 0 {
		b.WriteString("\n" + Escape("Use /list to see all available stocks."))
		return b.String()
	}
	b.WriteString("\n" + bold("Did you mean:"))
	for _, s := range suggestions {
		b.WriteString("\n• " + code(s))
	}
	return b.String()
}

// RenderCollection summarizes a forced collection cycle
func RenderCollection(result domain.CollectionResult) string {
	switch result.Outcome {
	case domain.OutcomeSuccess:
		return fmt.Sprintf("✅ %s\n\n📊 %s %s\n📄 %s %s",
			bold("Data refreshed"),
			bold("Stocks Processed:"), code(strconv.Itoa(result.StocksProcessed)),
			bold("Source:"), code(result.SourceID))
	case domain.OutcomeSkipped:
		return "⏸️ " + bold("Outside market hours") + "\n\n" + Escape("Collection runs between the configured market hours only.")
	default:
		return RenderError("Data refresh failed", string(result.Outcome)+": "+result.Error, result.Timestamp)
	}
}

// RenderError renders the error card. detail is truncated for display.
func RenderError(title, detail string, now time.Time) string {
	if len(detail) > maxErrorDetail {
		detail = detail[:maxErrorDetail] + "..."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "❌ %s\n\n", bold(title))
	fmt.Fprintf(&b, "🔍 %s\n%s\n\n", bold("Error Details:"), code(detail))
	b.WriteString("💡 " + bold("Possible Solutions:") + "\n")
	for _, s := range []string{
		"Try again in a few moments",
		"Check if the market is open",
		"Use /status to check bot health",
	} {
		b.WriteString("• " + Escape(s) + "\n")
	}
	fmt.Fprintf(&b, "\n⏰ %s %s", bold("Timestamp:"), code(now.Format("15:04:05")))
	return b.String()
}

// welcomeText and helpText are the static replies of /start and /help
func welcomeText() string {
	lines := []string{
		"🚀 " + bold("Welcome to NSE OI Spurts Monitor Bot!"),
		"",
		Escape("I track the Open Interest (OI) spurts ranking published by NSE India."),
		"",
		"🔍 " + bold("How to use me:"),
		"• " + Escape("Send me a stock name to get its data"),
		"• " + Escape("/query <stock_name> for specific queries"),
		"• " + Escape("/list to see all available stocks"),
		"• " + Escape("/history <stock_name> for today's serial numbers"),
		"• " + Escape("/status to check the current status"),
		"",
		"💡 " + bold("Examples:") + " " + code("RELIANCE") + " " + code("/query HDFC"),
		"",
		Escape("Type /help for more detailed information!"),
	}
	return strings.Join(lines, "\n")
}

func helpText() string {
	commands := [][2]string{
		{"/status", "Check bot status and last data update"},
		{"/list [page]", "Show all available stocks for today"},
		{"/query <stock_name>", "Get specific stock data"},
		{"/history <stock_name>", "Get the stock's serial number history"},
		{"/refresh", "Collect fresh data now"},
	}

	lines := []string{"📖 " + bold("NSE OI Spurts Bot - Help Guide"), "", "🤖 " + bold("Available Commands:")}
	for _, c := range commands {
		lines = append(lines, "• "+code(c[0])+" "+Escape("- "+c[1]))
	}
	lines = append(lines,
		"",
		"🔍 "+bold("Partial names work:")+" "+Escape("HDFC finds HDFCBANK, and a miss lists close matches."),
	)
	return strings.Join(lines, "\n")
}
