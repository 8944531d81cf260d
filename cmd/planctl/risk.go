package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"safety-planner/internal/planner/risk"
)

// ============================================================
// risk | rules | export
// ============================================================

func (a *cli) riskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "risk <plan-id>",
		Short: "Evaluate zone risk for a plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, false, func(s *session) error {
				summaries, err := s.svc.Risk(args[0])
				if err != nil {
					return err
				}
				ids := make([]string, 0, len(summaries))
				for id := range summaries {
					ids = append(ids, id)
				}
				sort.Strings(ids)

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ZONE\tINDEX\tLEVEL\tFINDINGS")
				for _, id := range ids {
					r := summaries[id]
					fmt.Fprintf(tw, "%s\t%.2f\t%s\t%d\n", id, r.Index, r.Level, len(r.ContributingFindingIDs))
				}
				return tw.Flush()
			})
		},
	}
}

func (a *cli) rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Print the effective risk rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, _ := cmd.Flags().GetString("format")
			rules, err := loadRules(a.v.GetString("rules_path"))
			if err != nil {
				return err
			}
			data, err := rules.Encode(risk.Format(format))
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().String("format", string(risk.FormatYAML), "output format: json, yaml or toml")
	return cmd
}

func (a *cli) exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <plan-id>",
		Short: "Write the plan as SVG to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, false, func(s *session) error {
				svg, err := s.svc.ExportSVG(args[0])
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), svg)
				return err
			})
		},
	}
}
