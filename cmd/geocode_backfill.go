package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/franzenjb/arc-relationship-manager-v2-sub002/internal/coordinates"
)

var geocodeBackfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Geocode organizations lacking coordinates",
	Long:  "Resolves coordinates for organizations without a latitude/longitude and writes them back to the store.",
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

		coords, err := newCoordinatesService(cache)
		if err != nil {
			return err
		}

		limit, _ := cmd.Flags().GetInt("limit")

		orgs, err := st.ListUngeocodedOrganizations(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "geocode backfill: list ungeocoded")
		}
		if len(orgs) == 0 {
			fmt.Println("No ungeocoded organizations found")
			return nil
		}

		log := zap.L().With(zap.String("command", "geocode.backfill"))
		log.Info("starting geocode backfill", zap.Int("organizations", len(orgs)))

		entities := make([]coordinates.Addressable, len(orgs))
		for i, org := range orgs {
			entities[i] = org
		}

		resolved, err := coords.Resolve(ctx, entities)
		if err != nil {
			return eris.Wrap(err, "geocode backfill: resolve")
		}

		var updated, unresolved int
		for _, org := range orgs {
			coord, ok := resolved[org.ID]
			if !ok {
				unresolved++
				continue
			}
			if err := st.UpdateOrganizationCoordinates(ctx, org.ID, coord.Latitude, coord.Longitude); err != nil {
				log.Warn("failed to write coordinates",
					zap.String("organization_id", org.ID),
					zap.Error(err),
				)
				unresolved++
				continue
			}
			updated++
		}

		fmt.Printf("Backfill complete: %d updated, %d unresolved\n", updated, unresolved)
		return nil
	},
}

func init() {
	geocodeBackfillCmd.Flags().Int("limit", 500, "maximum number of organizations to geocode")
	geocodeCmd.AddCommand(geocodeBackfillCmd)
}
