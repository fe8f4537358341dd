package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/dataquality-cli/internal/anomaly"
)

var anomaliesObjectType string

var anomaliesCmd = &cobra.Command{
	Use:   "anomalies",
	Short: "Scan for malformed property values",
	RunE: func(cmd *cobra.Command, args []string) error {
		objectType, err := parseObjectType(anomaliesObjectType)
		if err != nil {
			return err
		}

		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		findings, err := anomaly.NewDetector(env.api).Scan(cmd.Context(), objectType)
		if err != nil {
			return err
		}

		if len(findings) == 0 {
			fmt.Println("no anomalies found")
		} else {
			fmt.Printf("found %d finding(s)\n", len(findings))
			for _, f := range findings {
				fmt.Printf("  %s  %-10s %-30q %s\n", f.RecordID, f.Property, f.Value, f.Reason)
			}
		}

		env.log.RecordScan(cmd.Context(), "anomaly-scan", objectType, map[string]float64{
			"findings": float64(len(findings)),
		})
		return nil
	},
}

func init() {
	anomaliesCmd.Flags().StringVar(&anomaliesObjectType, "object-type", "contacts", "contacts or companies")
	rootCmd.AddCommand(anomaliesCmd)
}
