package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var geocodeEvictCmd = &cobra.Command{
	Use:   "evict",
	Short: "Delete expired geocode cache entries",
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

		n, err := cache.Evict(ctx)
		if err != nil {
			return eris.Wrap(err, "geocode evict")
		}

		fmt.Printf("Evicted %d expired cache entries\n", n)
		return nil
	},
}

func init() {
	geocodeCmd.AddCommand(geocodeEvictCmd)
}
