package alert

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/region23/desco-balance-bot/internal/balance"
	"github.com/region23/desco-balance-bot/internal/storage/models"
)

// Заголовки уведомлений
const (
	LabelScheduled = "🔔 Scheduled Update"
	LabelHourly    = "⏰ Hourly Low Balance Alert"
	LabelOnDemand  = "✅ DESCO Balance"
)

// DefaultLabel возвращает заголовок по режиму проверки
func DefaultLabel(mode Mode) string {
	if mode == ModeHourly {
		return LabelHourly
	}
	return LabelScheduled
}

// Render форматирует показание баланса в HTML сообщение.
// Пустой label заменяется заголовком режима.
func Render(r balance.Reading, mode Mode, label string) string {
	if label == "" {
		label = DefaultLabel(mode)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n", html.EscapeString(label))

	consumption := "<code>N/A</code>"
	if r.Consumption > 0 {
		consumption = fmt.Sprintf("<code>%.3f kWh</code>", r.Consumption)
	}

	fmt.Fprintf(&b, "<b>💰 DESCO Balance:</b> <code>%.2f BDT</code>\n", r.Balance)
	fmt.Fprintf(&b, "⚡ <b>Consumption:</b> %s\n", consumption)
	fmt.Fprintf(&b, "📅 <b>Reading:</b> <code>%s</code>", html.EscapeString(r.ReadingTime))
	return b.String()
}

// LowBalanceWarning отдельное предупреждение о низком балансе
func LowBalanceWarning(balance, threshold float64) string {
	return fmt.Sprintf("<b>⚠️ Low Balance Alert!</b>\n\nYour balance (%.2f BDT) is below the threshold (%s BDT).",
		balance, FormatAmount(threshold))
}

// FetchError извинение пользователю при неудачном запросе баланса
func FetchError(err error) string {
	msg := "Unknown error"
	if err != nil {
		msg = err.Error()
	}
	return "<b>❌ Error checking DESCO:</b> " + html.EscapeString(msg) +
		"\n\nThis issue has been reported to support."
}

// OperatorReport диагностика для чата оператора
func OperatorReport(u *models.User, res balance.Result) string {
	var b strings.Builder
	b.WriteString("🚨 <b>Balance Fetch Failed</b>\n\n")
	fmt.Fprintf(&b, "<b>User:</b> %s\n", html.EscapeString(u.DisplayName()))
	fmt.Fprintf(&b, "<b>User ID:</b> <code>%d</code>\n", u.ChatID)
	if u.AccountNo != "" {
		fmt.Fprintf(&b, "<b>Account:</b> <code>%s</code>\n", html.EscapeString(u.AccountNo))
	}
	if u.MeterNo != "" {
		fmt.Fprintf(&b, "<b>Meter:</b> <code>%s</code>\n", html.EscapeString(u.MeterNo))
	}

	errText := "Unknown error"
	if res.Err != nil {
		errText = res.Err.Error()
	}
	fmt.Fprintf(&b, "<b>Error:</b> %s\n\n<b>Attempted URLs:</b>\n", html.EscapeString(errText))

	if len(res.AttemptedURLs) == 0 {
		b.WriteString("No URLs attempted")
		return b.String()
	}
	for i, u := range res.AttemptedURLs {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d. <code>%s</code>", i+1, html.EscapeString(u))
	}
	return b.String()
}

// FormatAmount печатает сумму без лишних нулей: 100, 72.5
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
