package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/dataquality-cli/internal/model"
	"github.com/sells-group/dataquality-cli/internal/rules"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage and apply formatting rules",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		ruleList, err := env.rules.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(ruleList) == 0 {
			fmt.Println("no rules defined")
			return nil
		}
		for _, r := range ruleList {
			state := "enabled"
			if !r.Enabled {
				state = "disabled"
			}
			fmt.Printf("%s  %-9s %-10s %-20s %s\n", r.ID, state, r.ObjectType, r.Property, r.Op)
		}
		return nil
	},
}

var (
	ruleObjectType     string
	ruleProperty       string
	ruleOp             string
	ruleDefaultCountry string
	ruleCountryProp    string
)

var rulesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a formatting rule",
	RunE: func(cmd *cobra.Command, args []string) error {
		objectType, err := parseObjectType(ruleObjectType)
		if err != nil {
			return err
		}

		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		saved, err := env.rules.Save(cmd.Context(), model.Rule{
			ObjectType: objectType,
			Property:   ruleProperty,
			Op:         model.RuleOp(ruleOp),
			Config: model.RuleConfig{
				DefaultCountry:  ruleDefaultCountry,
				CountryProperty: ruleCountryProp,
			},
			Enabled: true,
		})
		if err != nil {
			return err
		}
		fmt.Printf("added rule %s\n", saved.ID)
		return nil
	},
}

var rulesDeleteCmd = &cobra.Command{
	Use:   "delete <rule-id>",
	Short: "Delete a rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		return env.rules.Delete(cmd.Context(), args[0])
	},
}

func setEnabledCmd(use, short string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <rule-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := initEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			return env.rules.SetEnabled(cmd.Context(), args[0], enabled)
		},
	}
}

var (
	applyObjectType string
	applyDryRun     bool
)

var rulesApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply enabled rules and push minimal updates",
	RunE: func(cmd *cobra.Command, args []string) error {
		objectType, err := parseObjectType(applyObjectType)
		if err != nil {
			return err
		}

		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		ctx := cmd.Context()
		ruleList, err := env.rules.List(ctx)
		if err != nil {
			return err
		}

		records, err := env.api.FetchAll(ctx, objectType, ruleProperties(ruleList))
		if err != nil {
			return err
		}

		patches := rules.Apply(objectType, records, ruleList)
		fmt.Printf("%d of %d record(s) need changes\n", len(patches), len(records))
		if applyDryRun || len(patches) == 0 {
			for _, p := range patches {
				fmt.Printf("  %s: %v\n", p.ID, p.Properties)
			}
			return nil
		}

		if err := env.api.BatchUpdate(ctx, objectType, patches); err != nil {
			return err
		}
		zap.L().Info("rules applied",
			zap.String("object_type", string(objectType)),
			zap.Int("updated", len(patches)),
		)

		env.log.RecordScan(ctx, "rules-apply", objectType, map[string]float64{
			"records": float64(len(records)),
			"updated": float64(len(patches)),
		})
		return nil
	},
}

// ruleProperties collects the properties the rules touch, including the
// sibling country property consulted by state rules.
func ruleProperties(ruleList []model.Rule) []string {
	seen := make(map[string]bool)
	var props []string
	add := func(p string) {
		if p != "" && !seen[p] {
			seen[p] = true
			props = append(props, p)
		}
	}
	for _, r := range ruleList {
		add(r.Property)
		if r.Op == model.OpState {
			if r.Config.CountryProperty != "" {
				add(r.Config.CountryProperty)
			} else {
				add("country")
			}
		}
	}
	return props
}

var rulesExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export rules as YAML to stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		doc, err := env.rules.ExportYAML(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Print(string(doc))
		return nil
	},
}

var rulesImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Import rules from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		n, err := env.rules.ImportYAML(cmd.Context(), doc)
		if err != nil {
			return err
		}
		fmt.Printf("imported %d rule(s)\n", n)
		return nil
	},
}

func init() {
	rulesAddCmd.Flags().StringVar(&ruleObjectType, "object-type", "contacts", "contacts or companies")
	rulesAddCmd.Flags().StringVar(&ruleProperty, "property", "", "property to transform (required)")
	rulesAddCmd.Flags().StringVar(&ruleOp, "op", "", "transform op: lowercase, trim, titlecase, email, phone, country, state, date")
	rulesAddCmd.Flags().StringVar(&ruleDefaultCountry, "default-country", "", "phone op: default country code (e.g. US)")
	rulesAddCmd.Flags().StringVar(&ruleCountryProp, "country-property", "", "state op: property holding the record's country")
	rulesAddCmd.MarkFlagRequired("property")
	rulesAddCmd.MarkFlagRequired("op")

	rulesApplyCmd.Flags().StringVar(&applyObjectType, "object-type", "contacts", "contacts or companies")
	rulesApplyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "print the patches without writing")

	rulesCmd.AddCommand(rulesListCmd, rulesAddCmd, rulesDeleteCmd,
		setEnabledCmd("enable", "Enable a rule", true),
		setEnabledCmd("disable", "Disable a rule", false),
		rulesApplyCmd, rulesExportCmd, rulesImportCmd)
	rootCmd.AddCommand(rulesCmd)
}
