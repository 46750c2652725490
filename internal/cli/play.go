package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ChuLiYu/workclip/internal/bookmark"
	"github.com/ChuLiYu/workclip/internal/config"
	"github.com/ChuLiYu/workclip/internal/timeline"
)

// maxUnboundedTicks caps a play run with no --max-ticks.
const maxUnboundedTicks = 100000

type playOptions struct {
	file     string
	player   string
	dt       float64
	maxTicks int
	bookmark bool
}

func buildPlayCommand() *cobra.Command {
	var opts playOptions

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Simulate one player offline",
		Long:  "Drive one player of a timeline document with a fixed time step and print its state, position and active leaves per tick",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.dt <= 0 {
				return fmt.Errorf("--dt must be positive, got %g", opts.dt)
			}
			var store *bookmark.Store
			if opts.bookmark {
				app := "workclip"
				if cfg, err := loadConfig(configFile); err == nil {
					app = cfg.Bookmarks.App
				}
				store = bookmark.Open(app)
			}
			return playTimeline(cmd.OutOrStdout(), opts, store)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "timeline document")
	cmd.Flags().StringVar(&opts.player, "player", "", "player id (default: the first player)")
	cmd.Flags().Float64Var(&opts.dt, "dt", 0.1, "seconds per tick")
	cmd.Flags().IntVar(&opts.maxTicks, "max-ticks", 0, "stop after N ticks (0: after one pass)")
	cmd.Flags().BoolVar(&opts.bookmark, "bookmark", false, "resume from and save a bookmark for this player")
	cmd.MarkFlagRequired("file")

	return cmd
}

// playTimeline runs the simulation. store may be nil.
func playTimeline(w io.Writer, opts playOptions, store *bookmark.Store) error {
	doc, err := config.LoadTimeline(opts.file)
	if err != nil {
		return fmt.Errorf("failed to load timeline: %w", err)
	}
	if len(doc.Players) == 0 {
		return errors.New("timeline has no players")
	}
	spec := doc.Players[0]
	if opts.player != "" {
		var ok bool
		if spec, ok = doc.Player(opts.player); !ok {
			return fmt.Errorf("unknown player %q", opts.player)
		}
	}

	obs := timeline.NewObservers()
	obs.OnContentElementChanged(func(c *timeline.WorkClipContainer, _, active []timeline.PlayableState, percent float64) {
		log.Debug().Str("container", c.Name()).Strs("active", names(active)).Float64("percent", percent).Msg("active set changed")
	})
	built, err := doc.Build(spec, config.Env{Callbacks: logCallbacks(doc), Observers: obs})
	if err != nil {
		return err
	}
	p := built.Player
	key := opts.file + "#" + spec.ID

	p.Enter()
	if store != nil {
		if b, ok, err := store.Load(key); err != nil {
			log.Warn().Err(err).Msg("failed to load bookmark")
		} else if ok && b.Percent < 1 {
			p.Seek(b.Percent)
			log.Info().Float64("percent", b.Percent).Msg("resuming from bookmark")
		}
	}
	if p.State() != timeline.StatePlay {
		p.Play()
	}

	limit := opts.maxTicks
	if limit <= 0 {
		limit = maxUnboundedTicks
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TICK\tSTATE\tELAPSED\tPERCENT\tACTIVE")
	printRow(tw, 0, p)

	tick := 0
	for tick < limit {
		p.Tick(opts.dt)
		tick++
		printRow(tw, tick, p)
		// without a tick limit a run ends after one pass, looping or not
		if opts.maxTicks <= 0 && (p.State() == timeline.StateFree || (p.State() == timeline.StateFinished && p.Loop())) {
			break
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if store != nil {
		if err := store.Save(key, p.Percent()); err != nil {
			log.Warn().Err(err).Msg("failed to save bookmark")
		}
	}
	return nil
}

func printRow(w io.Writer, tick int, p *timeline.Player) {
	st := p.Status()
	active := strings.Join(st.Active, ",")
	if active == "" {
		active = "-"
	}
	fmt.Fprintf(w, "%d\t%s\t%.3f\t%.3f\t%s\n", tick, st.State, st.Elapsed, st.Percent, active)
}

func names(states []timeline.PlayableState) []string {
	out := make([]string, len(states))
	for i, s := range states {
		out[i] = timeline.NameOf(s)
	}
	return out
}

func buildValidateCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a timeline document",
		Long:  "Check references and cycles, build every player and report authoring problems in its clips",
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateTimeline(cmd.OutOrStdout(), file)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "timeline document")
	cmd.MarkFlagRequired("file")
	return cmd
}

func validateTimeline(w io.Writer, file string) error {
	doc, err := config.LoadTimeline(file)
	if err == nil {
		err = doc.Validity()
	}
	if err != nil {
		for _, line := range strings.Split(err.Error(), "\n") {
			fmt.Fprintf(w, "✗ %s\n", line)
		}
		return fmt.Errorf("%s is not valid", file)
	}
	fmt.Fprintf(w, "✓ %s: %d effects, %d containers, %d players\n", file, len(doc.Effects), len(doc.Containers), len(doc.Players))
	return nil
}
