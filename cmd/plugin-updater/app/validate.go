package app

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := loadConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if _, err := fmt.Fprintf(out, "Valid configuration: %s\n", path); err != nil {
				return err
			}
			for _, comp := range cfg.Components {
				schedule := "on demand"
				if comp.Schedule != nil {
					schedule = "every " + comp.Schedule.GetInterval().String()
					if comp.Schedule.Download {
						schedule += ", download"
					} else if comp.Schedule.Check {
						schedule += ", check"
					}
				}
				if _, err := fmt.Fprintf(out, "  %s: resource %s, running %s, %s\n",
					comp.Name, comp.ResourceID, comp.CurrentVersion, schedule); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
