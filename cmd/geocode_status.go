package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var geocodeStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show geocoding statistics",
	Long:  "Display organization geocoding progress and geocode cache contents.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		cache, err := openGeocodeCache(ctx, st)
		if err != nil {
			return err
		}

		pending, err := st.ListUngeocodedOrganizations(ctx, 0)
		if err != nil {
			return eris.Wrap(err, "geocode status: list ungeocoded")
		}

		stats, err := cache.Stats(ctx)
		if err != nil {
			return eris.Wrap(err, "geocode status: cache stats")
		}

		fmt.Println("=== Geocoding Status ===")
		fmt.Printf("Ungeocoded organizations: %d\n", len(pending))
		fmt.Printf("Cache entries:            %d\n", stats.Total)
		fmt.Printf("Expired entries:          %d\n", stats.Expired)
		return nil
	},
}

func init() {
	geocodeCmd.AddCommand(geocodeStatusCmd)
}
