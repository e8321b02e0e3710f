package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"hypertrader/internal/agent"
)

// printer renders agent output for the terminal
type printer struct {
	w io.Writer
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w}
}

func (p *printer) Info(msg string) {
	fmt.Fprintln(p.w, color.HiBlackString(msg))
}

func (p *printer) Warn(msg string) {
	fmt.Fprintln(p.w, color.YellowString("⚠ %s", msg))
}

func (p *printer) Prompt() {
	fmt.Fprint(p.w, color.CyanString("> "))
}

// Banner prints the request context before the agent starts
func (p *printer) Banner(req agent.Request, backends map[string]string) {
	mode := color.RedString("LIVE")
	if req.DryRun {
		mode = color.GreenString("DRY RUN")
	}
	fmt.Fprintf(p.w, "%s %s  %s\n", color.CyanString("hypertrader"), req.Symbol, mode)

	if req.Amount.Valid {
		fmt.Fprintf(p.w, "  amount         $%s\n", formatUSD(req.Amount.Decimal.InexactFloat64()))
	}
	if req.PositionSize.Valid {
		fmt.Fprintf(p.w, "  position size  %s\n", formatPercent(req.PositionSize.Decimal.InexactFloat64()))
	}
	if req.StopLoss.Valid {
		fmt.Fprintf(p.w, "  stop loss      %s\n", formatPercent(req.StopLoss.Decimal.InexactFloat64()))
	}
	if req.TakeProfit.Valid {
		fmt.Fprintf(p.w, "  take profit    %s\n", formatPercent(req.TakeProfit.Decimal.InexactFloat64()))
	}

	keys := make([]string, 0, len(backends))
	for k := range backends {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(p.w, "  %-14s %s\n", k, color.HiBlackString(backends[k]))
	}
	fmt.Fprintln(p.w, strings.Repeat("─", 60))
}

// Outcome prints the final answer, the trade if one was made and a footer
func (p *printer) Outcome(o agent.Outcome) {
	if o.Failed() {
		fmt.Fprintf(p.w, "%s %s\n", color.RedString("✗"), color.RedString(string(o.ErrorKind)))
		fmt.Fprintln(p.w, o.Error)
	} else {
		fmt.Fprintf(p.w, "%s %s\n", color.GreenString("✓"), o.Answer)
	}

	if o.TradeExecuted && o.Trade != nil {
		p.trade(o.Trade, o.Simulated)
	}

	fmt.Fprintln(p.w, color.HiBlackString("%d steps, %d tool calls, %s",
		o.Steps, o.ToolCalls, o.Duration.Round(time.Millisecond)))
}

func (p *printer) trade(t map[string]interface{}, simulated bool) {
	tag := color.RedString("LIVE")
	if simulated {
		tag = color.YellowString("SIMULATED")
	}
	fmt.Fprintf(p.w, "\n%s %v %v\n", tag, t["direction"], t["symbol"])

	rows := []struct {
		label string
		key   string
		usd   bool
	}{
		{"size", "position_size_usd", true},
		{"units", "position_units", false},
		{"entry", "entry_price", true},
		{"stop loss", "stop_loss_price", true},
		{"take profit", "take_profit_price", true},
	}
	for _, r := range rows {
		v, ok := t[r.key].(float64)
		if !ok {
			continue
		}
		value := humanize.FtoaWithDigits(v, 8)
		if r.usd {
			value = "$" + formatUSD(v)
		}
		fmt.Fprintf(p.w, "  %-12s %s\n", r.label, value)
	}
	if id, ok := t["entry_order_id"].(string); ok {
		fmt.Fprintf(p.w, "  %-12s %s\n", "order", id)
	}
	if msg, ok := t["protection_error"].(string); ok && msg != "" {
		fmt.Fprintln(p.w, color.YellowString("  protective orders failed: %s", msg))
	}
}

func formatUSD(v float64) string {
	return humanize.CommafWithDigits(v, 2)
}

func formatPercent(v float64) string {
	return humanize.FtoaWithDigits(v*100, 2) + "%"
}
