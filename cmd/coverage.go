package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/sells-group/dataquality-cli/internal/coverage"
)

var coverageObjectType string

var coverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Report per-property fill rates",
	RunE: func(cmd *cobra.Command, args []string) error {
		objectType, err := parseObjectType(coverageObjectType)
		if err != nil {
			return err
		}

		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		report, err := coverage.Build(cmd.Context(), env.api, objectType)
		if err != nil {
			return err
		}
		if report.Total == 0 {
			fmt.Println("no records")
			return nil
		}

		fmt.Printf("%d %s\n", report.Total, objectType)
		grouped := report.ByGroup()
		groups := make([]string, 0, len(grouped))
		for g := range grouped {
			groups = append(groups, g)
		}
		sort.Strings(groups)

		for _, g := range groups {
			fmt.Printf("\n%s\n", g)
			for _, rate := range grouped[g] {
				fmt.Printf("  %6.2f%%  %-30s %s\n", rate.Percent, rate.Property, rate.Label)
			}
		}

		env.log.RecordScan(cmd.Context(), "property-fill-rate", objectType, map[string]float64{
			"records":    float64(report.Total),
			"properties": float64(len(report.Rates)),
		})
		return nil
	},
}

func init() {
	coverageCmd.Flags().StringVar(&coverageObjectType, "object-type", "contacts", "contacts or companies")
	rootCmd.AddCommand(coverageCmd)
}
