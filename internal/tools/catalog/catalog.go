package catalog

import (
	"hypertrader/internal/tools"
	"hypertrader/internal/tools/decision"
	"hypertrader/internal/tools/market"
	"hypertrader/internal/tools/sentiment"
	"hypertrader/internal/tools/shared"
	"hypertrader/internal/tools/trading"
)

// Constructor builds one tool from shared dependencies
type Constructor func(deps shared.Deps) tools.Tool

// Definitions is the startup registration table, in the order tools are offered to the model
var Definitions = []Constructor{
	market.NewGetMarketDataTool,
	sentiment.NewAnalyzeSentimentTool,
	decision.NewMakeTradingDecisionTool,
	trading.NewExecuteTradeTool,
}

// RegisterAll registers every tool of the table into registry
func RegisterAll(registry *tools.Registry, deps shared.Deps) error {
	for _, construct := range Definitions {
		if err := registry.Register(construct(deps)); err != nil {
			return err
		}
	}
	deps.Logger().Infow("Tools registered", "count", registry.Len(), "tools", registry.Names())
	return nil
}
