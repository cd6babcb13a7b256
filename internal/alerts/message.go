package alerts

import (
	"fmt"
	"strings"
	"time"

	"github.com/hamidbarzin/cryptobarzin/internal/format"
	"github.com/hamidbarzin/cryptobarzin/internal/models"
)

// Message renders the Telegram HTML notification of a triggered alert. The
// time is shown in loc.
func Message(e models.TriggeredEvent, loc *time.Location) string {
	emoji, side := "🔺", "بالاتر از"
	if e.Direction == models.Below {
		emoji, side = "🔻", "پایین‌تر از"
	}
	if loc == nil {
		loc = time.UTC
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🚨 <b>هشدار قیمت %s</b> 🚨\n\n", emoji)
	fmt.Fprintf(&b, "<b>ارز:</b> %s\n", e.Symbol)
	fmt.Fprintf(&b, "<b>وضعیت:</b> قیمت %s محدوده هدف\n", side)
	fmt.Fprintf(&b, "<b>قیمت فعلی:</b> %s USDT\n", format.Price(e.CurrentPrice))
	fmt.Fprintf(&b, "<b>قیمت هدف:</b> %s USDT\n", format.Price(e.TargetPrice))
	fmt.Fprintf(&b, "<b>تغییر:</b> %.2f%%\n\n", format.PercentDistance(e.CurrentPrice, e.TargetPrice))
	fmt.Fprintf(&b, "<b>زمان:</b> %s به وقت تورنتو\n\n", e.TriggeredAt.In(loc).Format("15:04:05"))
	b.WriteString("<i>🤖 Crypto Barzin</i>")
	return b.String()
}
