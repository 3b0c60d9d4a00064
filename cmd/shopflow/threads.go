package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var threadsCmd = &cobra.Command{
	Use:   "threads",
	Short: "Inspect suspended threads in the configured store",
}

var threadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List suspended threads",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, _, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		run, err := a.Runner(workflowFlag(cmd))
		if err != nil {
			return err
		}
		ids, err := run.Threads(cmd.Context())
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No suspended threads.")
			return nil
		}
		for _, id := range ids {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	},
}

var threadsShowCmd = &cobra.Command{
	Use:   "show <thread-id>",
	Short: "Print a thread's checkpoint as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		run, err := a.Runner(workflowFlag(cmd))
		if err != nil {
			return err
		}
		cp, err := run.Inspect(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(cp, "", "  ")
		if err != nil {
			return fmt.Errorf("encode checkpoint: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var threadsClearCmd = &cobra.Command{
	Use:   "clear <thread-id>...",
	Short: "Discard one or more threads",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		run, err := a.Runner(workflowFlag(cmd))
		if err != nil {
			return err
		}
		for _, id := range args {
			if err := run.Reset(cmd.Context(), id); err != nil {
				return fmt.Errorf("clear %s: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", id)
		}
		return nil
	},
}

func workflowFlag(cmd *cobra.Command) string {
	w, _ := cmd.Flags().GetString("workflow")
	return w
}

func init() {
	rootCmd.AddCommand(threadsCmd)
	threadsCmd.PersistentFlags().StringP("workflow", "w", "order", "Workflow: order or listing")
	threadsCmd.AddCommand(threadsListCmd, threadsShowCmd, threadsClearCmd)
}
