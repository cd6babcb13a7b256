package scheduler

// Task names a periodic job.
type Task string

const (
	TaskPriceReport  Task = "price_report"
	TaskSystemReport Task = "system_report"
	TaskTechnical    Task = "technical_analysis"
	TaskSignals      Task = "trading_signals"
	TaskNews         Task = "news"
)

var taskOrder = []Task{TaskPriceReport, TaskSystemReport, TaskTechnical, TaskSignals, TaskNews}

// DefaultCoins are the symbols rotated through by technical analysis.
var DefaultCoins = []string{"BTC/USDT", "ETH/USDT", "BNB/USDT", "SOL/USDT", "XRP/USDT"}

// Intervals counts, in ticks, how often each task runs.
type Intervals struct {
	PriceReport  int `mapstructure:"price_report"`
	SystemReport int `mapstructure:"system_report"`
	Technical    int `mapstructure:"technical_analysis"`
	Signals      int `mapstructure:"trading_signals"`
	News         int `mapstructure:"news"`
}

// DefaultIntervals returns the intervals for a one minute tick: prices
// hourly, system status every six hours, analysis every two, signals every
// four and news every eight.
func DefaultIntervals() Intervals {
	return Intervals{
		PriceReport:  60,
		SystemReport: 360,
		Technical:    120,
		Signals:      240,
		News:         480,
	}
}

func (i Intervals) withDefaults() Intervals {
	d := DefaultIntervals()
	if i.PriceReport <= 0 {
		i.PriceReport = d.PriceReport
	}
	if i.SystemReport <= 0 {
		i.SystemReport = d.SystemReport
	}
	if i.Technical <= 0 {
		i.Technical = d.Technical
	}
	if i.Signals <= 0 {
		i.Signals = d.Signals
	}
	if i.News <= 0 {
		i.News = d.News
	}
	return i
}

func (i Intervals) of(t Task) int {
	switch t {
	case TaskPriceReport:
		return i.PriceReport
	case TaskSystemReport:
		return i.SystemReport
	case TaskTechnical:
		return i.Technical
	case TaskSignals:
		return i.Signals
	case TaskNews:
		return i.News
	}
	return 1
}
