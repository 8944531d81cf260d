package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"safety-planner/internal/planner/edits"
	"safety-planner/internal/planner/snapshot"
	"safety-planner/internal/planner/versioning"
)

// ============================================================
// commit | log | checkout | revert
// ============================================================

func commitFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("message", "m", "", "commit message")
	cmd.Flags().String("author", "", "commit author")
	cmd.Flags().String("expect-head", "", `expected current head ("-" for no history)`)
}

func commitOptions(cmd *cobra.Command) versioning.CommitOptions {
	msg, _ := cmd.Flags().GetString("message")
	author, _ := cmd.Flags().GetString("author")
	head, _ := cmd.Flags().GetString("expect-head")
	return versioning.CommitOptions{Author: author, Message: msg, ExpectedHead: head}
}

func (a *cli) commitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commit <plan-id> <ops.json|->",
		Short: "Apply a JSON array of edit operations as one commit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, err := readOperations(cmd.InOrStdin(), args[1])
			if err != nil {
				return err
			}
			return a.withSession(cmd, true, func(s *session) error {
				c, err := s.svc.Commit(args[0], commitOptions(cmd), ops)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), c.ID)
				return nil
			})
		},
	}
	commitFlags(cmd)
	return cmd
}

func readOperations(stdin io.Reader, path string) ([]edits.Operation, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var ops []edits.Operation
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&ops); err != nil {
		return nil, fmt.Errorf("decode operations: %w", err)
	}
	return ops, nil
}

func (a *cli) logCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "log <plan-id>",
		Short: "Show commit history from head to root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, false, func(s *session) error {
				history, err := s.svc.History(args[0])
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "SEQ\tCOMMIT\tAUTHOR\tDATE\tMESSAGE")
				for _, c := range history {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", c.Seq, c.ID, c.Author, c.CreatedAt.Format("2006-01-02 15:04"), c.Message)
				}
				return tw.Flush()
			})
		},
	}
}

func (a *cli) checkoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checkout <plan-id> <commit-id>",
		Short: "Print the plan state at a commit as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, false, func(s *session) error {
				state, _, err := s.svc.Checkout(args[0], args[1])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), snapshot.StateToRecord(state))
			})
		},
	}
}

func (a *cli) revertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revert <plan-id> <commit-id>",
		Short: "Create a commit that undoes the given commit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, true, func(s *session) error {
				c, err := s.svc.Revert(args[0], args[1], commitOptions(cmd))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), c.ID)
				return nil
			})
		},
	}
	commitFlags(cmd)
	return cmd
}
