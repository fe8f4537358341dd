package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/dataquality-cli/internal/geo"
)

var (
	geofixObjectType string
	geofixFormat     string
	geofixLimit      int
	geofixApply      bool
)

var geofixCmd = &cobra.Command{
	Use:   "geofix",
	Short: "Find and fix misaligned city/state/country data",
	Long:  "Samples records with full location data, asks the configured model for corrections, and optionally applies them as one batch update.",
	RunE: func(cmd *cobra.Command, args []string) error {
		objectType, err := parseObjectType(geofixObjectType)
		if err != nil {
			return err
		}

		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		completer := env.completer()
		if completer == nil {
			return eris.New("geofix requires an Anthropic API key (DQC_ANTHROPIC_KEY)")
		}

		corrector := geo.NewCorrector(env.api, completer,
			geo.WithFormat(geofixFormat),
			geo.WithSampleLimit(geofixLimit),
		)

		ctx := cmd.Context()
		corrections, err := corrector.Find(ctx, objectType)
		if err != nil {
			return err
		}
		if len(corrections) == 0 {
			fmt.Println("no corrections proposed")
			return nil
		}

		for _, c := range corrections {
			fmt.Printf("%s: %s, %s, %s  ->  %s, %s, %s\n", c.RecordID,
				c.Original.City, c.Original.State, c.Original.Country,
				c.Corrected.City, c.Corrected.State, c.Corrected.Country)
		}

		if !geofixApply {
			fmt.Printf("%d correction(s) proposed; rerun with --apply to write them\n", len(corrections))
			return nil
		}
		if err := corrector.Apply(ctx, objectType, corrections); err != nil {
			return err
		}
		fmt.Printf("applied %d correction(s)\n", len(corrections))
		return nil
	},
}

func init() {
	geofixCmd.Flags().StringVar(&geofixObjectType, "object-type", "contacts", "contacts or companies")
	geofixCmd.Flags().StringVar(&geofixFormat, "format", geo.DefaultFormat, "output style hint for corrected values")
	geofixCmd.Flags().IntVar(&geofixLimit, "limit", 100, "max records to analyze per run")
	geofixCmd.Flags().BoolVar(&geofixApply, "apply", false, "write proposed corrections")
	rootCmd.AddCommand(geofixCmd)
}
