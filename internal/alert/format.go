package alert

import (
	"fmt"
	"html"
	"strings"
	"time"

	"vol-spread-monitor/internal/signal"
	"vol-spread-monitor/internal/types"
)

const (
	dateLayout = "Monday, 02 Jan 2006"
	rule       = "━━━━━━━━━━━━━━━━━━━━━━━"
)

// Format renders the daily alert in Telegram HTML. It reads the verdict as
// given and never re-evaluates the rule.
func Format(vix, vstoxx float64, v types.Verdict, today time.Time) string {
	threshold := fmt.Sprintf("%.0f", signal.EUCrisisThreshold)

	lines := []string{
		"📊 <b>VIX / vStoxx Monitor</b>",
		"📅 " + today.Format(dateLayout),
		"",
		fmt.Sprintf("  VIX    (^VIX):  <b>%.2f</b>", vix),
		fmt.Sprintf("  vStoxx (^V2TX): <b>%.2f</b>", vstoxx),
		fmt.Sprintf("  Spread (vStoxx − VIX): <b>%+.2f</b>", v.Spread),
		"",
	}

	if v.WeekOne {
		lines = append(lines, "📅 Week 1 of month: ✅ YES, entry window open")
	} else {
		lines = append(lines, "📅 Week 1 of month: ⏳ NO, wait for next week 1")
	}

	if v.EUCrisis {
		lines = append(lines, fmt.Sprintf("⚠️  EU Crisis filter: 🔴 TRIGGERED  (spread %+.2f > %s)", v.Spread, threshold))
	} else {
		lines = append(lines, fmt.Sprintf("🛡️  EU Crisis filter: ✅ CLEAR  (spread %+.2f ≤ %s)", v.Spread, threshold))
	}
	lines = append(lines, "")

	switch signal.Classify(v) {
	case types.OutcomeEnter:
		lines = append(lines,
			rule,
			"🟢 <b>ENTER TRADE</b>",
			"   • Short  <b>1×</b>  VIX futures   (^VIX)",
			fmt.Sprintf("   • Long   <b>%d×</b>  vStoxx futures (^V2TX)", signal.VStoxxPerVIX),
			"   • Dollar-neutral position",
			rule,
		)
	case types.OutcomeNoSignal:
		lines = append(lines,
			rule,
			"⏳ <b>NO SIGNAL</b>: not in entry week",
			"   Wait for week 1 of next month",
			rule,
		)
	case types.OutcomeSkipCrisis:
		lines = append(lines,
			rule,
			"🔴 <b>SKIP ENTRY</b>: EU crisis filter active",
			fmt.Sprintf("   Spread (%+.2f) exceeds threshold (%s)", v.Spread, threshold),
			"   Monitor daily; re-assess when spread normalises",
			rule,
		)
	}

	return strings.Join(lines, "\n")
}

// FormatError renders the failure notification. The error text is escaped
// so it cannot break HTML parse mode.
func FormatError(err error) string {
	return "⚠️ VIX/vStoxx monitor error: " + html.EscapeString(err.Error())
}
