package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"hypertrader/internal/adapters/config"
	"hypertrader/internal/agent"
	"hypertrader/pkg/errors"
	"hypertrader/pkg/logger"
)

// largeAmountUSD triggers a confirmation warning before the agent runs
const largeAmountUSD = 100

// errRequestFailed marks a failure that was already rendered for the user
var errRequestFailed = errors.New("request failed")

type options struct {
	prompt       string
	symbol       string
	amount       float64
	positionSize float64
	stopLoss     float64
	takeProfit   float64
	dryRun       bool
	interactive  bool
	debug        bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errRequestFailed) {
			fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "hypertrader",
		Short: "LLM trading agent for Hyperliquid perpetuals",
		Long: `hypertrader lets a language model analyze market data and social sentiment
and, when asked, place trades on Hyperliquid through a fixed set of tools.

Usage modes:
  hypertrader --prompt "analyze sentiment" --symbol BTC --dry-run
  hypertrader --interactive --symbol ETH --dry-run

Real orders require --position-size and --stop-loss (or the model passing them).`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.prompt, "prompt", "p", "", "What the agent should do, e.g. \"execute a trade based on price action\"")
	f.StringVarP(&opts.symbol, "symbol", "s", "BTC", "Asset symbol")
	f.Float64VarP(&opts.amount, "amount", "a", 0.01, "USD capital available for the trade")
	f.Float64Var(&opts.positionSize, "position-size", 0, "Fraction of the amount to commit, e.g. 0.05")
	f.Float64Var(&opts.stopLoss, "stop-loss", 0, "Stop loss as a fraction of entry price, e.g. 0.02")
	f.Float64Var(&opts.takeProfit, "take-profit", 0, "Take profit as a fraction of entry price, e.g. 0.04")
	f.BoolVar(&opts.dryRun, "dry-run", false, "Simulate trades without placing orders")
	f.BoolVarP(&opts.interactive, "interactive", "i", false, "Chat with the agent until exit, quit or EOF")
	f.BoolVar(&opts.debug, "debug", false, "Verbose logging")

	return cmd
}

func (o *options) validate() error {
	if !o.interactive && strings.TrimSpace(o.prompt) == "" {
		return errors.Wrap(errors.ErrInvalidInput, "--prompt is required unless --interactive is set")
	}
	if strings.TrimSpace(o.symbol) == "" {
		return errors.Wrap(errors.ErrInvalidInput, "--symbol must not be empty")
	}
	if o.amount <= 0 {
		return errors.Wrap(errors.ErrInvalidInput, "--amount must be positive")
	}
	return nil
}

// request builds the agent request. Only flags set on the command line count as
// explicit execution parameters; flag defaults never do.
func (o *options) request(changed func(name string) bool) agent.Request {
	explicit := func(flag string, v float64) decimal.NullDecimal {
		if !changed(flag) {
			return decimal.NullDecimal{}
		}
		return decimal.NewNullDecimal(decimal.NewFromFloat(v))
	}

	return agent.Request{
		Prompt:       o.prompt,
		Symbol:       strings.ToUpper(strings.TrimSpace(o.symbol)),
		Amount:       explicit("amount", o.amount),
		PositionSize: explicit("position-size", o.positionSize),
		StopLoss:     explicit("stop-loss", o.stopLoss),
		TakeProfit:   explicit("take-profit", o.takeProfit),
		DryRun:       o.dryRun,
	}
}

func run(cmd *cobra.Command, opts *options) error {
	if err := opts.validate(); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if opts.debug {
		cfg.App.Debug = true
		cfg.App.LogLevel = "debug"
	}
	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		return errors.Wrap(err, "failed to init logger")
	}
	defer logger.Sync()

	log := logger.Get()
	log.Infof("Starting %s %s in %s mode", cfg.App.Name, cfg.App.Version, cfg.App.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := newPrinter(cmd.OutOrStdout())
	if opts.amount > largeAmountUSD {
		out.Warn(fmt.Sprintf("Trading amount of $%s is larger than $%d. Make sure this is intended.",
			formatUSD(opts.amount), largeAmountUSD))
	}

	app, err := newApp(ctx, cfg, decimal.NewFromFloat(opts.amount), log)
	if err != nil {
		return err
	}
	defer app.Close()

	req := opts.request(cmd.Flags().Changed)
	out.Banner(req, app.Describe())

	if opts.interactive {
		return interactive(ctx, app.agent, req, cmd.InOrStdin(), out)
	}

	outcome := app.agent.Run(ctx, req)
	out.Outcome(outcome)
	if outcome.Failed() {
		return errRequestFailed
	}
	return nil
}

// interactive reuses one conversation until exit, quit, EOF or a signal
func interactive(ctx context.Context, a *agent.Agent, base agent.Request, in io.Reader, out *printer) error {
	conv := a.NewConversation(base)
	defer conv.Close()

	lines := make(chan string)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		readErr <- scanner.Err()
	}()

	out.Info("Type your request, or exit to quit.")
	for {
		out.Prompt()

		var line string
		select {
		case <-ctx.Done():
			out.Info("Interrupted.")
			return nil
		case l, ok := <-lines:
			if !ok {
				out.Info("Bye.")
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			line = strings.TrimSpace(l)
		}

		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			out.Info("Bye.")
			return nil
		}

		out.Outcome(conv.Send(ctx, line))
	}
}
