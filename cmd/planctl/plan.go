package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"safety-planner/internal/planner/importer"
	"safety-planner/internal/planner/snapshot"
)

// ============================================================
// plan create | list | show | delete
// ============================================================

func (a *cli) planCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Create, list, show and delete plans",
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Create an empty plan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, _ := cmd.Flags().GetString("name")
			project, _ := cmd.Flags().GetString("project")
			scale, _ := cmd.Flags().GetFloat64("scale")
			return a.withSession(cmd, true, func(s *session) error {
				plan, err := s.svc.CreatePlan(name, project, scale)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), plan.ID)
				return nil
			})
		},
	}
	create.Flags().String("name", "", "plan name")
	create.Flags().String("project", "", "project id")
	create.Flags().Float64("scale", 1, "plan units to meters")
	_ = create.MarkFlagRequired("name")

	list := &cobra.Command{
		Use:   "list",
		Short: "List plans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd, false, func(s *session) error {
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tCOMMITS\tHEAD")
				for _, p := range s.svc.ListPlans() {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", p.ID, p.Name, p.Commits, p.Head)
				}
				return tw.Flush()
			})
		},
	}

	show := &cobra.Command{
		Use:   "show <plan-id>",
		Short: "Print a plan with cached risk as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, false, func(s *session) error {
				plan, err := s.svc.Plan(args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), snapshot.PlanToRecord(plan))
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <plan-id>",
		Short: "Delete a plan with its history and findings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, true, func(s *session) error {
				return s.svc.DeletePlan(args[0])
			})
		},
	}

	cmd.AddCommand(create, list, show, del)
	return cmd
}

// ============================================================
// import
// ============================================================

func (a *cli) importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file.svg>",
		Short: "Import an SVG floor plan as a new plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			project, _ := cmd.Flags().GetString("project")
			author, _ := cmd.Flags().GetString("author")
			var opts importer.Options
			opts.Scale, _ = cmd.Flags().GetFloat64("scale")
			opts.WallHeight, _ = cmd.Flags().GetFloat64("wall-height")

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			if name == "" {
				name = args[0]
			}

			return a.withSession(cmd, true, func(s *session) error {
				plan, res, err := s.svc.ImportPlan(name, project, f, opts, author)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, plan.ID)
				fmt.Fprintf(cmd.ErrOrStderr(), "walls=%d zones=%d markers=%d skipped=%d\n",
					res.Walls, res.Zones, res.Markers, len(res.Skipped))
				return nil
			})
		},
	}
	cmd.Flags().String("name", "", "plan name (default: file name)")
	cmd.Flags().String("project", "", "project id")
	cmd.Flags().String("author", "", "commit author")
	cmd.Flags().Float64("scale", 1, "SVG units to meters")
	cmd.Flags().Float64("wall-height", importer.DefaultWallHeight, "wall height in meters")
	return cmd
}
