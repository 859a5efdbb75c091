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
	"github.com/tavi-ops/dispatchd/core/model"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Run vendor discovery for a work order and print the candidates",
	RunE:  discoverVendors,
}

func init() {
	addWorkOrderFlags(discoverCmd)
	rootCmd.AddCommand(discoverCmd)
}

func discoverVendors(cmd *cobra.Command, args []string) error {
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

	vendors, err := svc.Discovery.Discover(ctx, wo)
	if err != nil {
		return fmt.Errorf("discover vendors: %w", err)
	}
	for _, v := range vendors {
		line, merr := json.Marshal(map[string]any{
			"id":            v.ID,
			"business_name": v.BusinessName,
			"phone":         v.Phone,
			"email":         v.Email,
			"quality_score": v.QualityScore,
		})
		if merr != nil {
			return fmt.Errorf("encode vendor: %w", merr)
		}
		fmt.Println(string(line))
	}
	return nil
}
