package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/hamidbarzin/cryptobarzin/internal/alerts"
	"github.com/hamidbarzin/cryptobarzin/internal/format"
	"github.com/hamidbarzin/cryptobarzin/internal/market"
	"github.com/hamidbarzin/cryptobarzin/internal/scheduler"
	"github.com/hamidbarzin/cryptobarzin/internal/telegram"
)

func registerCommands(tg *telegram.Client, prices *market.Service, registry *alerts.Registry, sched *scheduler.Service) {
	tg.Handle("price", func(ctx context.Context, args string) string {
		symbol := strings.TrimSpace(args)
		if symbol == "" {
			return "Usage: /price BTC/USDT"
		}
		q, err := prices.Quote(ctx, symbol)
		if err != nil {
			return fmt.Sprintf("❌ %s", telegram.EscapeHTML(err.Error()))
		}
		return fmt.Sprintf("💰 <b>%s</b>: $%s (%s)", q.Symbol, format.Price(q.Price), format.Change(q.Change24h))
	})

	tg.Handle("alerts", func(context.Context, string) string {
		all := registry.Get("")
		if len(all) == 0 {
			return "No alerts registered"
		}
		symbols := make([]string, 0, len(all))
		for sym := range all {
			symbols = append(symbols, sym)
		}
		sort.Strings(symbols)

		var b strings.Builder
		b.WriteString("🔔 <b>Price alerts</b>\n")
		for _, sym := range symbols {
			for _, a := range all[sym] {
				state := "armed"
				if a.Triggered {
					state = "triggered"
				}
				fmt.Fprintf(&b, "%s %s $%s (%s)\n", sym, a.Direction, format.Price(a.TargetPrice), state)
			}
		}
		return b.String()
	})

	tg.Handle("status", func(context.Context, string) string {
		st := sched.Status()
		running := "stopped"
		if st.Running {
			running = "running"
		}
		return fmt.Sprintf("⚙️ Scheduler %s\nActive hours: %02d:00-%02d:00 (%s)\nTick: %v\nTicks: %d\nNext coin: %s",
			running, st.Settings.ActiveHoursStart, st.Settings.ActiveHoursEnd, st.Timezone,
			st.Settings.Interval, st.Ticks, st.NextCoin)
	})
}
