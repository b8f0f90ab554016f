package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/franzenjb/arc-relationship-manager-v2-sub002/internal/importer"
)

var (
	importXLSXPath string
	importSheet    string
	importRegion   string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import an organization roster from XLSX",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		res, err := importer.ImportOrganizations(ctx, st, importXLSXPath, importer.Options{
			SheetName:  importSheet,
			RegionCode: importRegion,
		})
		if err != nil {
			return eris.Wrap(err, "import roster")
		}

		zap.L().Info("import complete",
			zap.Int("imported", res.Imported),
			zap.Int("skipped", res.Skipped),
			zap.String("xlsx", importXLSXPath),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importXLSXPath, "xlsx", "", "path to XLSX roster (required)")
	importCmd.Flags().StringVar(&importSheet, "sheet", "", "sheet name (default first sheet)")
	importCmd.Flags().StringVar(&importRegion, "region", "", "region code applied to imported organizations")
	_ = importCmd.MarkFlagRequired("xlsx")
	rootCmd.AddCommand(importCmd)
}
