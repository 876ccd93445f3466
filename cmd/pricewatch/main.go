package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"pricewatch/config"
	"pricewatch/internal/importer"
	"pricewatch/internal/models"
	"pricewatch/internal/service"
	"pricewatch/internal/store"
	"pricewatch/internal/util"

	"github.com/spf13/cobra"
)

var (
	dbDriver string
	dbURL    string
)

func main() {
	cfg := config.Load()

	rootCmd := &cobra.Command{
		Use:   "pricewatch",
		Short: "Price-adjustment matching against stored promotions and receipts",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel)
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&dbDriver, "driver", cfg.Database.Driver, "database driver (postgres or sqlite3)")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", cfg.Database.URL, "database URL or sqlite file path")

	rootCmd.AddCommand(purgeCmd())
	rootCmd.AddCommand(checkSaleCmd())
	rootCmd.AddCommand(reconcileCmd(cfg.Cycle.Username))
	rootCmd.AddCommand(importPromotionsCmd())
	rootCmd.AddCommand(listPromotionsCmd())
	rootCmd.AddCommand(knownReceiptsCmd())

	err := rootCmd.Execute()
	util.SyncLogger()
	if err != nil {
		os.Exit(1)
	}
}

func getStore() (*store.Store, error) {
	return store.NewStore(dbDriver, dbURL)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func purgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete promotions that expired before today",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := s.PurgeExpired(cmd.Context(), models.Today(time.Now))
			if err != nil {
				return err
			}
			fmt.Printf("Purged %d expired promotions\n", n)
			return nil
		},
	}
}

func checkSaleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-sale [item-id...]",
		Short: "Show active promotions and total savings for item ids",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, a := range args {
				id, err := strconv.ParseInt(a, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid item id %q: %w", a, err)
				}
				ids = append(ids, id)
			}

			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			check, err := service.NewSaleService(s, time.Now).CheckSale(cmd.Context(), ids)
			if err != nil {
				return err
			}
			return printJSON(check)
		},
	}
}

func reconcileCmd(defaultUser string) *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Print the price-adjustment report for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" {
				return fmt.Errorf("--username is required")
			}

			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			reconciler := service.NewReconciler(s, service.NewSaleService(s, time.Now), time.Now)
			notifier := service.NewNotifier(reconciler, s, nil, nil, 0, time.Now)
			report, err := notifier.Report(cmd.Context(), username)
			if err != nil {
				return err
			}
			return printJSON(report)
		},
	}

	cmd.Flags().StringVar(&username, "username", defaultUser, "receipt owner to reconcile")
	return cmd
}

func importPromotionsCmd() *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "import-promotions [file.csv]",
		Short: "Load promotions from a scraper CSV export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open csv: %w", err)
			}
			defer f.Close()

			raw, err := importer.ReadPromotionsCSV(f)
			if err != nil {
				return err
			}

			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := service.NewIngestService(s, s, time.Now).IngestPromotions(cmd.Context(), source, raw)
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}

	cmd.Flags().StringVar(&source, "source", "csv", "source label recorded in metrics and logs")
	return cmd
}

func listPromotionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-promotions",
		Short: "List every stored promotion",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			promotions, err := s.ListPromotions(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(promotions)
		},
	}
}

func knownReceiptsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "known-receipts",
		Short: "List receipt ids already stored",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			known, err := s.KnownReceiptIDs(cmd.Context())
			if err != nil {
				return err
			}
			ids := make([]string, 0, len(known))
			for id := range known {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				fmt.Println(id)
			}
			return nil
		},
	}
}
