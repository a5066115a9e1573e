package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/adharvest/pkg/ads"
	"github.com/ajitpratap0/adharvest/pkg/config"
	"github.com/ajitpratap0/adharvest/pkg/errors"
	"github.com/ajitpratap0/adharvest/pkg/logger"
)

// accountCommand runs fn once per customer id with a shared service,
// printing failures and carrying on with the next account
func accountCommand(use, short string, v *viper.Viper,
	fn func(ctx context.Context, out io.Writer, s ads.Searcher, customerID string) error) *cobra.Command {
	var ids []string

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := setup(cmd, v)
			if err != nil {
				return err
			}
			accounts, err := customerIDs(ids)
			if err != nil {
				return err
			}
			cfg, err := adsConfig(cmd.Context(), settings)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			svc, err := ads.NewService(ctx, cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			log := logger.With(zap.String("component", "adharvest-cli"), zap.String("command", use))
			failed := 0
			for _, id := range accounts {
				if err := fn(ctx, cmd.OutOrStdout(), svc, id); err != nil {
					failed++
					log.Error("account query failed", zap.String("account_id", id), zap.Error(err))
					fmt.Fprintf(cmd.ErrOrStderr(), "customer_id %s: %v\n", id, err)
				}
			}
			if failed > 0 {
				return &exitError{code: 1, err: errors.Newf(errors.ErrorTypeAPI, "%d of %d account(s) failed", failed, len(accounts))}
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&ids, "customer-ids", "c", nil, "Customer ids, comma separated or repeated (required)")
	_ = cmd.MarkFlagRequired("customer-ids")
	return cmd
}

func newCampaignsCmd(v *viper.Viper) *cobra.Command {
	return accountCommand("campaigns", "List the campaigns of customer accounts", v, printCampaigns)
}

func printCampaigns(ctx context.Context, out io.Writer, s ads.Searcher, customerID string) error {
	campaigns, err := ads.ListCampaigns(ctx, s, customerID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "customer_id %s: %d campaign(s)\n", customerID, len(campaigns))
	for _, c := range campaigns {
		fmt.Fprintf(out, "\tCampaign with ID %s and name \"%s\" was found.\n", c.ID, c.Name)
	}
	return nil
}

func newAccountsCmd(v *viper.Viper) *cobra.Command {
	return accountCommand("accounts", "Describe customer accounts", v, printCustomer)
}

func printCustomer(ctx context.Context, out io.Writer, s ads.Searcher, customerID string) error {
	c, err := ads.DescribeCustomer(ctx, s, customerID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "customer_id %s\n", c.ID)
	fmt.Fprintf(out, "\tname: %s\n", c.DescriptiveName)
	fmt.Fprintf(out, "\tcurrency: %s\n", c.CurrencyCode)
	fmt.Fprintf(out, "\ttime zone: %s\n", c.TimeZone)
	fmt.Fprintf(out, "\tmanager: %t\n", c.Manager)
	fmt.Fprintf(out, "\ttest account: %t\n", c.TestAccount)
	return nil
}

func newDatabasesCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "databases",
		Short: "List the warehouse targets of the databases file",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := setup(cmd, v)
			if err != nil {
				return err
			}
			dbs, err := config.LoadDatabases(settings.Warehouse.DatabasesFile)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, name := range dbs.Names() {
				fmt.Fprintf(out, "%s\t%s\n", name, dbs[name])
			}
			return nil
		},
	}
}
