package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"arkline/internal/ipc"
)

func parseRecordID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid record id %q", arg)
	}
	return id, nil
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and pipeline status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}
				renderStatus(cmd.OutOrStdout(), status)
				return nil
			})
		},
	}
}

func newListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List records and their progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.List()
				if err != nil {
					return err
				}
				renderRecordList(cmd.OutOrStdout(), resp.Records)
				return nil
			})
		},
	}
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <record-id>",
		Short: "Show one record with its steps and pages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRecordID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Describe(id)
				if err != nil {
					return err
				}
				renderRecordDetail(cmd.OutOrStdout(), resp)
				return nil
			})
		},
	}
}

func newAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <title>...",
		Short: "Add records and start processing them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Add(args, nil)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, record := range resp.Records {
					fmt.Fprintf(out, "Added record %d: %s\n", record.ID, record.Title)
				}
				return nil
			})
		},
	}
}

func newAdvanceCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "advance <record-id>",
		Short: "Re-evaluate a record's pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRecordID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Advance(id)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if resp.Dispatched {
					fmt.Fprintf(out, "Record %d: next step dispatched\n", id)
				} else {
					fmt.Fprintf(out, "Record %d: nothing to dispatch\n", id)
				}
				return nil
			})
		},
	}
}

func newRestartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "restart <record-id> <step-type>",
		Short: "Force one step back through execution",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRecordID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Restart(id, args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Record %d: step %s restarted\n", id, args[1])
				return nil
			})
		},
	}
}

func newInputCommand(ctx *commandContext) *cobra.Command {
	var rerun bool

	cmd := &cobra.Command{
		Use:   "input <record-id>",
		Short: "Resolve a step waiting on human input",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRecordID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.SubmitInput(id, rerun); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Record %d: input submitted\n", id)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&rerun, "rerun", false, "Send the step back through its handler")
	return cmd
}

func newConfirmCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "confirm <record-id>",
		Short: "Resolve a step waiting on human validation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRecordID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Confirm(id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Record %d: validation confirmed\n", id)
				return nil
			})
		},
	}
}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <record-id>",
		Aliases: []string{"remove"},
		Short:   "Remove a record with its steps and pages",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseRecordID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Remove(id)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if resp.Removed {
					fmt.Fprintf(out, "Record %d removed\n", id)
				} else {
					fmt.Fprintf(out, "Record %d not found\n", id)
				}
				return nil
			})
		},
	}
}
