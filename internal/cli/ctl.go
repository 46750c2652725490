package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ChuLiYu/workclip/internal/server"
	"github.com/ChuLiYu/workclip/pkg/types"
)

type ctlOptions struct {
	addr    string
	timeout time.Duration
}

func buildCtlCommand() *cobra.Command {
	opts := &ctlOptions{}

	cmd := &cobra.Command{
		Use:   "ctl",
		Short: "Control a running scheduler over gRPC",
	}
	cmd.PersistentFlags().StringVar(&opts.addr, "addr", "localhost:50061", "gRPC address of a running 'workclip run'")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 5*time.Second, "request timeout")

	simple := []struct {
		use, short string
		call       func(*server.Client, context.Context, types.PlayerID) error
	}{
		{"play", "Start playback", (*server.Client).Play},
		{"pause", "Pause a playing player", (*server.Client).Pause},
		{"resume", "Resume a paused player", (*server.Client).Resume},
		{"stop", "Stop a player", (*server.Client).Stop},
		{"replay", "Restart a player from 0", (*server.Client).Replay},
	}
	for _, s := range simple {
		call := s.call
		cmd.AddCommand(&cobra.Command{
			Use:   s.use + " <player-id>",
			Short: s.short,
			Args:  cobra.ExactArgs(1),
			RunE: func(c *cobra.Command, args []string) error {
				return opts.with(func(ctx context.Context, client *server.Client) error {
					if err := call(client, ctx, types.PlayerID(args[0])); err != nil {
						return err
					}
					fmt.Fprintf(c.OutOrStdout(), "✓ %s %s\n", c.Name(), args[0])
					return nil
				})
			},
		})
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "seek <player-id> <percent>",
		Short: "Jump to a percent in [0,1]",
		Args:  cobra.ExactArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			percent, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid percent %q: %w", args[1], err)
			}
			return opts.with(func(ctx context.Context, client *server.Client) error {
				if err := client.Seek(ctx, types.PlayerID(args[0]), percent); err != nil {
					return err
				}
				fmt.Fprintf(c.OutOrStdout(), "✓ seek %s %.3f\n", args[0], percent)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status <player-id>",
		Short: "Show one player",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return opts.with(func(ctx context.Context, client *server.Client) error {
				st, err := client.Status(ctx, types.PlayerID(args[0]))
				if err != nil {
					return err
				}
				return printStatuses(c.OutOrStdout(), []types.PlayerStatus{st})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all players",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return opts.with(func(ctx context.Context, client *server.Client) error {
				list, err := client.List(ctx)
				if err != nil {
					return err
				}
				return printStatuses(c.OutOrStdout(), list)
			})
		},
	})

	return cmd
}

func (o *ctlOptions) with(fn func(context.Context, *server.Client) error) error {
	client, err := server.Dial(o.addr)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()
	return fn(ctx, client)
}

func printStatuses(w io.Writer, list []types.PlayerStatus) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATE\tELAPSED\tDURATION\tPERCENT\tLOOP\tACTIVE")
	for _, st := range list {
		active := strings.Join(st.Active, ",")
		if active == "" {
			active = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%.3f\t%.3f\t%.3f\t%t\t%s\n", st.ID, st.State, st.Elapsed, st.Duration, st.Percent, st.Loop, active)
	}
	return tw.Flush()
}
