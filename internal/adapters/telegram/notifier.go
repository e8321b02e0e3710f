package telegram

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"hypertrader/internal/domain/trade"
	"hypertrader/internal/services/execution"
)

// Sender delivers a text message to a chat
type Sender interface {
	SendMarkdown(ctx context.Context, chatID int64, text string) error
}

// TradeNotifier announces executions to one chat
type TradeNotifier struct {
	sender Sender
	chatID int64
}

var _ execution.Notifier = (*TradeNotifier)(nil)

// NewTradeNotifier creates a notifier for chatID
func NewTradeNotifier(sender Sender, chatID int64) *TradeNotifier {
	return &TradeNotifier{sender: sender, chatID: chatID}
}

// NotifyTrade sends a summary of the execution
func (n *TradeNotifier) NotifyTrade(ctx context.Context, exec *trade.Execution) error {
	return n.sender.SendMarkdown(ctx, n.chatID, FormatTrade(exec))
}

// FormatTrade renders an execution as a Markdown message
func FormatTrade(exec *trade.Execution) string {
	var b strings.Builder

	icon := "🟢"
	if exec.Intent.Side == trade.SideShort {
		icon = "🔴"
	}
	mode := "LIVE"
	if exec.Simulated {
		mode = "DRY RUN"
	}

	fmt.Fprintf(&b, "%s *%s %s* (%s)\n", icon, strings.ToUpper(string(exec.Intent.Side)), exec.Intent.Symbol, mode)
	fmt.Fprintf(&b, "Size: $%s (%s units)\n",
		humanize.CommafWithDigits(exec.Intent.Notional().InexactFloat64(), 2),
		exec.Units.String(),
	)
	fmt.Fprintf(&b, "Entry: $%s\n", humanize.CommafWithDigits(exec.EntryPrice.InexactFloat64(), 2))
	fmt.Fprintf(&b, "Stop: $%s · Target: $%s\n",
		humanize.CommafWithDigits(exec.StopLossPrice.InexactFloat64(), 2),
		humanize.CommafWithDigits(exec.TakeProfitPrice.InexactFloat64(), 2),
	)
	if exec.ProtectionError != "" {
		fmt.Fprintf(&b, "⚠️ Protection: %s\n", escape(exec.ProtectionError))
	}
	if exec.Intent.Reasoning != "" {
		fmt.Fprintf(&b, "_%s_\n", escape(exec.Intent.Reasoning))
	}
	return b.String()
}

// escape neutralises Markdown markers in model-written text
func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}
