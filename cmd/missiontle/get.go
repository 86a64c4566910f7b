package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newGetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <mission-id>",
		Short: "Print the TLEs of one mission as JSON",
		Long: `Resolve a mission and print its payload TLEs as a JSON object.

Exits 0 when the mission is found (even if the transaction budget cut the
result short), 2 when the mission is unknown, and 1 on upstream failure.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(os.Stderr)
			if err != nil {
				return err
			}
			agg, err := newAggregator(cfg, logger)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.RequestTimeout)
			defer cancel()

			missionID := args[0]
			res, err := agg.GetMissionTLEs(ctx, missionID)
			if err != nil {
				return err
			}
			if res == nil {
				msg := fmt.Sprintf("No TLEs found for mission %s", missionID)
				fmt.Fprintln(cmd.ErrOrStderr(), msg)
				return &exitError{code: 2, msg: msg}
			}

			data, err := json.MarshalIndent(res, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			if res.Truncated {
				fmt.Fprintf(cmd.ErrOrStderr(), "transaction limit (%d) reached; result truncated\n", res.Limit)
			}
			return nil
		},
	}
}
