package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/questd/internal/planner"
)

type planOptions struct {
	commit      bool
	creator     string
	name        string
	description string
}

func newPlanCmd(configPath *string) *cobra.Command {
	var opts planOptions

	cmd := &cobra.Command{
		Use:   "plan <goal>",
		Short: "Generate a mission plan for a goal",
		Long: `Ask the configured planner to break a goal into tasks and print them as
JSON. With --commit the plan is saved as a mission owned by --creator.

Examples:
  questd plan "I need to make a 10-minute presentation about renewable energy"

  questd plan --commit --creator ada --name "Energy talk" "Prepare my energy talk"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if opts.commit && (opts.creator == "" || opts.name == "") {
				return fmt.Errorf("--commit needs --creator and --name")
			}

			a, err := bootstrap(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			gen, err := planner.NewGenerator(ctx, a.cfg.Planner)
			if err != nil {
				return err
			}
			pl := planner.New(a.cfg.Planner, gen, st,
				planner.WithLogger(a.log.Underlying().Named("planner")),
				planner.WithTracer(a.tel.Tracer("questd.planner")),
			)

			suggestions, err := pl.Generate(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if !opts.commit {
				return enc.Encode(suggestions)
			}

			if err := st.Migrate(ctx); err != nil {
				return err
			}
			user, err := st.GetUserByUsername(ctx, opts.creator)
			if err != nil {
				return err
			}
			m, err := pl.CommitAsMission(ctx, user.ID, opts.name, opts.description, suggestions)
			if err != nil {
				return err
			}
			return enc.Encode(m)
		},
	}

	cmd.Flags().BoolVar(&opts.commit, "commit", false, "save the plan as a mission")
	cmd.Flags().StringVar(&opts.creator, "creator", "", "username that owns the committed mission")
	cmd.Flags().StringVar(&opts.name, "name", "", "mission name for --commit")
	cmd.Flags().StringVar(&opts.description, "description", "", "mission description for --commit")
	return cmd
}
