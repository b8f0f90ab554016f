package main

import "github.com/spf13/cobra"

var geocodeCmd = &cobra.Command{
	Use:   "geocode",
	Short: "Geocoding operations",
	Long:  "Geocode organization addresses and manage the geocode cache.",
}

func init() { rootCmd.AddCommand(geocodeCmd) }
