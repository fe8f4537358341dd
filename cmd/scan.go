package main

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dataquality-cli/internal/dedupe"
	"github.com/sells-group/dataquality-cli/internal/model"
)

var (
	scanObjectType string
	scanMode       string
	scanKey        string
	scanSuggest    bool
)

// fetchProperties are pulled for every record during a duplicate scan.
var fetchProperties = []string{
	"email", "firstname", "lastname", "company",
	"name", "domain", "website", "createdate",
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for duplicate records",
	Long:  "Fetches the full collection and groups records into duplicate clusters, either by an exact key (email, domain, name) or by fuzzy name/email/company similarity.",
	RunE: func(cmd *cobra.Command, args []string) error {
		objectType, err := parseObjectType(scanObjectType)
		if err != nil {
			return err
		}

		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		ctx := cmd.Context()
		records, err := env.api.FetchAll(ctx, objectType, fetchProperties)
		if err != nil {
			return err
		}
		zap.L().Info("records fetched",
			zap.String("object_type", string(objectType)),
			zap.Int("count", len(records)),
		)

		var clusters []model.Cluster
		switch scanMode {
		case "exact":
			keyFn, err := exactKeyFunc(objectType, scanKey)
			if err != nil {
				return err
			}
			clusters = dedupe.ExactClusters(records, keyFn)
		case "fuzzy":
			clusters = dedupe.FuzzyClusters(records, dedupe.FuzzyConfig{
				Threshold:     cfg.Fuzzy.Threshold,
				NameWeight:    cfg.Fuzzy.NameWeight,
				EmailWeight:   cfg.Fuzzy.EmailWeight,
				CompanyWeight: cfg.Fuzzy.CompanyWeight,
			})
		default:
			return eris.Errorf("unknown scan mode %q (want exact or fuzzy)", scanMode)
		}

		env.log.RecordScan(ctx, scanMode+"-duplicates", objectType, map[string]float64{
			"records":  float64(len(records)),
			"clusters": float64(len(clusters)),
		})

		printClusters(clusters)

		if scanSuggest {
			for _, cluster := range clusters {
				action, err := env.orch.SuggestMerge(ctx, objectType, cluster)
				if err != nil {
					zap.L().Warn("suggestion failed",
						zap.Strings("ids", cluster.IDs()), zap.Error(err))
					continue
				}
				fmt.Printf("suggested merge %s (primary %s)\n", action.ID, action.TargetID)
			}
		}
		return nil
	},
}

func exactKeyFunc(objectType model.ObjectType, key string) (dedupe.KeyFunc, error) {
	switch key {
	case "email":
		return dedupe.KeyByEmail, nil
	case "domain":
		return dedupe.KeyByDomain, nil
	case "name":
		return dedupe.KeyByName, nil
	case "":
		if objectType == model.ObjectCompanies {
			return dedupe.KeyByDomain, nil
		}
		return dedupe.KeyByEmail, nil
	default:
		return nil, eris.Errorf("unknown key %q (want email, domain, or name)", key)
	}
}

func printClusters(clusters []model.Cluster) {
	if len(clusters) == 0 {
		fmt.Println("no duplicates found")
		return
	}
	fmt.Printf("found %d duplicate cluster(s)\n", len(clusters))
	for i, c := range clusters {
		label := c.Key
		if label == "" {
			label = fmt.Sprintf("score %.3f", c.TopScore)
		}
		fmt.Printf("%3d. [%s] %s\n", i+1, label, strings.Join(c.IDs(), ", "))
	}
}

func init() {
	scanCmd.Flags().StringVar(&scanObjectType, "object-type", "contacts", "contacts or companies")
	scanCmd.Flags().StringVar(&scanMode, "mode", "exact", "exact or fuzzy")
	scanCmd.Flags().StringVar(&scanKey, "key", "", "exact-scan key: email, domain, or name (default depends on object type)")
	scanCmd.Flags().BoolVar(&scanSuggest, "suggest", false, "record a merge suggestion for every cluster")
	rootCmd.AddCommand(scanCmd)
}
