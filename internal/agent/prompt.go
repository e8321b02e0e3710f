package agent

import (
	"fmt"
	"strings"

	"hypertrader/internal/tools"
)

const systemPromptHeader = `You are a trading agent for Hyperliquid perpetual futures. You help the user analyze
crypto assets and, when asked, execute trades by calling the tools listed below.

Rules:
1. Think about which tools answer the request and call them in a logical order.
2. Gather market data and sentiment before calling make_trading_decision.
3. Call execute_trade only when the user asks for a trade, and only after make_trading_decision.
4. Use the symbol, amount and dry_run values from the request context. Never change them.
5. The amount is the total USD capital available for the trade, not a position size.
6. If a tool fails, read the error and either fix the arguments or choose another tool.
7. Finish with a short answer that states the recommendation (LONG, SHORT or NEUTRAL) and
   what was executed, if anything.`

// SystemPrompt renders the instructions and the request context for the model
func SystemPrompt(specs []tools.Spec, req Request) string {
	var b strings.Builder
	b.WriteString(systemPromptHeader)

	b.WriteString("\n\nTools:\n")
	for _, s := range specs {
		fmt.Fprintf(&b, "- %s: %s\n", s.Name, s.Description)
	}

	b.WriteString("\nRequest context:\n")
	fmt.Fprintf(&b, "- symbol: %s\n", req.Symbol)
	fmt.Fprintf(&b, "- dry_run: %t\n", req.DryRun)
	if req.Amount.Valid {
		fmt.Fprintf(&b, "- amount: %s USD\n", req.Amount.Decimal.String())
	}
	if req.PositionSize.Valid {
		fmt.Fprintf(&b, "- position_size: %s\n", req.PositionSize.Decimal.String())
	}
	if req.StopLoss.Valid {
		fmt.Fprintf(&b, "- stop_loss: %s\n", req.StopLoss.Decimal.String())
	}
	if req.TakeProfit.Valid {
		fmt.Fprintf(&b, "- take_profit: %s\n", req.TakeProfit.Decimal.String())
	}
	return b.String()
}

// userMessage frames the prompt with the symbol the way the user asked it
func userMessage(req Request) string {
	if req.Symbol == "" || strings.Contains(strings.ToUpper(req.Prompt), req.Symbol) {
		return req.Prompt
	}
	return fmt.Sprintf("%s for %s", req.Prompt, req.Symbol)
}
