package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/OrgWeave/OrgWeave/internal/config"
	"github.com/OrgWeave/OrgWeave/internal/org"
	"github.com/OrgWeave/OrgWeave/internal/orgtemplate"
	"github.com/OrgWeave/OrgWeave/internal/services"
)

var orgCmd = &cobra.Command{
	Use:   "org",
	Short: "Manage AI organizations",
}

var orgCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an org from a built-in template",
	RunE: func(cmd *cobra.Command, args []string) error {
		templateID, _ := cmd.Flags().GetString("template")
		name, _ := cmd.Flags().GetString("name")
		createdBy, _ := cmd.Flags().GetString("by")

		tpl, ok := orgtemplate.Get(templateID)
		if !ok {
			return fmt.Errorf("unknown template %q", templateID)
		}
		svc, err := openServices()
		if err != nil {
			return err
		}
		defer svc.Close()

		o, err := orgtemplate.Instantiate(svc.Store, tpl, name, createdBy)
		if err != nil {
			return err
		}
		color.Green("Created org %s (%s) in draft status", o.Name, o.OrgID)
		fmt.Println("Activate it with: orgweave org activate", o.OrgID)
		return nil
	},
}

var orgListCmd = &cobra.Command{
	Use:   "list",
	Short: "List orgs",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openServices()
		if err != nil {
			return err
		}
		defer svc.Close()

		orgs, err := svc.Store.ListOrgs()
		if err != nil {
			return err
		}
		for _, o := range orgs {
			fmt.Printf("%s  %-24s %s\n", o.OrgID, o.Name, o.Status)
		}
		return nil
	},
}

var orgTemplatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List built-in org templates",
	Run: func(cmd *cobra.Command, args []string) {
		for _, t := range orgtemplate.Builtin() {
			fmt.Printf("%-16s %s - %s\n", t.ID, t.Name, t.Description)
		}
	},
}

var orgStatsCmd = &cobra.Command{
	Use:   "stats <org_id>",
	Short: "Show org task and node counts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openServices()
		if err != nil {
			return err
		}
		defer svc.Close()

		stats, err := svc.Store.GetOrgStats(args[0])
		if err != nil {
			return err
		}
		out, _ := json.MarshalIndent(stats, "", "  ")
		fmt.Println(string(out))
		return nil
	},
}

func orgStatusCmd(use, short, status string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <org_id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openServices()
			if err != nil {
				return err
			}
			defer svc.Close()

			o, err := svc.Store.GetOrg(args[0])
			if err != nil {
				return err
			}
			if o.Status == org.OrgStatusArchived {
				return fmt.Errorf("org %s is archived and read-only", o.OrgID)
			}
			o.Status = status
			if err := svc.Store.SaveOrg(o); err != nil {
				return err
			}
			color.Green("Org %s is now %s", o.OrgID, status)
			return nil
		},
	}
}

func openServices() (*services.Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	svc, err := services.New(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to open services:", err)
		return nil, err
	}
	return svc, nil
}

func init() {
	orgCreateCmd.Flags().String("template", "research-team", "Built-in template id")
	orgCreateCmd.Flags().String("name", "", "Org name (defaults to the template name)")
	orgCreateCmd.Flags().String("by", "admin", "Creator user id")

	orgCmd.AddCommand(orgCreateCmd)
	orgCmd.AddCommand(orgListCmd)
	orgCmd.AddCommand(orgTemplatesCmd)
	orgCmd.AddCommand(orgStatsCmd)
	orgCmd.AddCommand(orgStatusCmd("activate", "Activate an org to accept tasks", org.OrgStatusActive))
	orgCmd.AddCommand(orgStatusCmd("pause", "Pause new task submissions", org.OrgStatusPaused))
	orgCmd.AddCommand(orgStatusCmd("archive", "Archive an org (terminal, read-only)", org.OrgStatusArchived))
}
