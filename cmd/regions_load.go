package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/franzenjb/arc-relationship-manager-v2-sub002/internal/regions"
	"github.com/franzenjb/arc-relationship-manager-v2-sub002/internal/store"
)

var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "Region boundary management",
}

var (
	regionsShapefile string
	regionsURL       string
	regionsCodeField string
	regionsNameField string
)

var regionsLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load chapter boundaries into regions",
	Long:  "Reads a chapter boundary shapefile, aggregates chapters into per-region bounding boxes and centroids, and writes the regions to the store.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if regionsShapefile == "" && regionsURL == "" {
			return eris.New("one of --shapefile or --url is required")
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		var opts []regions.Option
		opts = append(opts, regions.WithTempDir(cfg.Regions.TempDir))
		if regionsCodeField != "" || regionsNameField != "" {
			opts = append(opts, regions.WithFields(regionsCodeField, regionsNameField))
		}
		loader := regions.NewLoader(st, opts...)

		var n int
		if regionsURL != "" {
			n, err = loader.LoadURL(ctx, regionsURL)
		} else {
			n, err = loader.LoadShapefile(ctx, regionsShapefile)
		}
		if err != nil {
			return err
		}

		// Postgres also gets per-chapter rows for later viewport refreshes.
		if ps, ok := st.(*store.PostgresStore); ok && regionsShapefile != "" {
			rows, copyErr := loader.BulkLoadChapters(ctx, ps.Pool(), regionsShapefile)
			if copyErr != nil {
				zap.L().Warn("chapter bounds load failed", zap.Error(copyErr))
			} else {
				zap.L().Info("chapter bounds copied", zap.Int64("rows", rows))
			}
		}

		fmt.Printf("Loaded %d regions\n", n)
		return nil
	},
}

func init() {
	regionsLoadCmd.Flags().StringVar(&regionsShapefile, "shapefile", "", "path to a chapter boundary .shp file")
	regionsLoadCmd.Flags().StringVar(&regionsURL, "url", "", "URL of a zipped boundary archive")
	regionsLoadCmd.Flags().StringVar(&regionsCodeField, "code-field", "", "shapefile attribute holding the region code")
	regionsLoadCmd.Flags().StringVar(&regionsNameField, "name-field", "", "shapefile attribute holding the region name")
	regionsCmd.AddCommand(regionsLoadCmd)
	rootCmd.AddCommand(regionsCmd)
}
