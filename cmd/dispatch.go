package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tavi-ops/dispatchd/app"
	"github.com/tavi-ops/dispatchd/config"
	"github.com/tavi-ops/dispatchd/core/automation"
	"github.com/tavi-ops/dispatchd/core/model"
)

var (
	woTitle       string
	woDescription string
	woTrade       string
	woAddress     string
	woCity        string
	woState       string
	woManager     string
	woEmail       string
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Create a work order and run it through the dispatch pipeline",
	RunE:  dispatchWorkOrder,
}

func addWorkOrderFlags(c *cobra.Command) {
	c.Flags().StringVar(&woTitle, "title", "Roof leak repair", "work order title")
	c.Flags().StringVar(&woDescription, "description", "Water intrusion near the loading dock, needs inspection and patch.", "work order description")
	c.Flags().StringVar(&woTrade, "trade", "roofing", "trade type")
	c.Flags().StringVar(&woAddress, "address", "1200 Industrial Pkwy", "site street address")
	c.Flags().StringVar(&woCity, "city", "Austin", "site city")
	c.Flags().StringVar(&woState, "state", "TX", "site state")
	c.Flags().StringVar(&woManager, "manager", "Alex Rivera", "facility manager name")
	c.Flags().StringVar(&woEmail, "email", "alex.rivera@example.com", "facility manager email")
}

func init() {
	addWorkOrderFlags(dispatchCmd)
	rootCmd.AddCommand(dispatchCmd)
}

func dispatchWorkOrder(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	trade, ok := model.ParseTradeType(woTrade)
	if !ok {
		return fmt.Errorf("unknown trade type %q", woTrade)
	}

	svc, err := app.New(cfg)
	if err != nil {
		return err
	}

	wo, err := svc.CreateWorkOrder(ctx, woTitle, woDescription, trade, model.Location{
		Address: woAddress,
		City:    woCity,
		State:   woState,
	}, woManager, woEmail)
	if err != nil {
		return fmt.Errorf("create work order: %w", err)
	}

	var fatal bool
	for ev := range svc.Dispatch(ctx, wo.ID) {
		line, merr := json.Marshal(ev)
		if merr != nil {
			return fmt.Errorf("encode event: %w", merr)
		}
		fmt.Println(string(line))
		if ev.Step == automation.FatalStep {
			fatal = true
		}
	}
	if fatal {
		return fmt.Errorf("dispatch of work order %s failed", wo.ID)
	}
	return nil
}
