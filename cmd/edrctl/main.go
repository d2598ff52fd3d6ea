// Command edrctl queries the game API directly and prints what the dispatch
// API would serve, without NATS or Valkey.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/kr/pretty"
	"github.com/urfave/cli/v2"

	"github.com/samirrijal/sirius/internal/adapters/simrail"
	"github.com/samirrijal/sirius/internal/core/domain"
	"github.com/samirrijal/sirius/internal/core/stations"
	"github.com/samirrijal/sirius/internal/core/usecases"
	"github.com/samirrijal/sirius/internal/pkg/config"
	"github.com/samirrijal/sirius/internal/pkg/logging"
)

func main() {
	app := &cli.App{
		Name:  "edrctl",
		Usage: "Inspect live SimRail servers the way the dispatch boards see them",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "server", Aliases: []string{"s"}, Value: "pl1", Usage: "game server code", EnvVars: []string{"EDRCTL_SERVER"}},
			&cli.StringFlag{Name: "stations", Usage: "YAML post table replacing the built-in one"},
			&cli.StringFlag{Name: "log-level", Value: "warn"},
		},
		Before: func(c *cli.Context) error {
			logging.Setup("edrctl", c.String("log-level"), "text")
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "trains",
				Usage: "list trains with their next station and ETA",
				Action: func(c *cli.Context) error {
					snap, err := refresh(c)
					if err != nil {
						return err
					}
					w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
					fmt.Fprintln(w, "NUMBER\tCATEGORY\tFROM\tTO\tNEXT\tDIST km\tETA min")
					for _, t := range snap.Trains {
						fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
							t.Number, t.Category, t.StartStation, t.EndStation,
							orDash(t.Estimate.NextStation), fmtFloat(t.Estimate.TargetDistance), fmtFloat(t.Estimate.ETA))
					}
					return w.Flush()
				},
			},
			{
				Name:      "train",
				Usage:     "dump one train with its normalized timetable",
				ArgsUsage: "NUMBER",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.Exit("train number required", 2)
					}
					snap, err := refresh(c)
					if err != nil {
						return err
					}
					for _, t := range snap.Trains {
						if t.Number == c.Args().First() {
							pretty.Println(t)
							return nil
						}
					}
					return cli.Exit("train "+c.Args().First()+" is not running", 1)
				},
			},
			{
				Name:  "board",
				Usage: "print the dispatch board of a post",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "post", Aliases: []string{"p"}, Required: true, Usage: "post ID, e.g. KZ"},
				},
				Action: func(c *cli.Context) error {
					table, err := loadStations(c)
					if err != nil {
						return err
					}
					post, ok := table.ByID(c.String("post"))
					if !ok {
						return cli.Exit("unknown post "+c.String("post"), 1)
					}
					snap, err := refresh(c)
					if err != nil {
						return err
					}

					board := usecases.BuildBoard(snap, post, table.Names(post), time.Now())
					fmt.Printf("%s on %s, %d trains, fetched %s\n\n", post.Name, board.Server, len(board.Entries), board.FetchedAt.Format(time.TimeOnly))

					w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
					fmt.Fprintln(w, "TRAIN\tARR\tDEP\tSTOP\tTRACK\tNEXT\tETA\tSTATE")
					for _, e := range board.Entries {
						eta := "-"
						if e.ShowETA && e.ETA != nil {
							eta = fmt.Sprintf("%.0f", *e.ETA)
						}
						fmt.Fprintf(w, "%s %s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
							e.TrainName, e.TrainNumber, fmtTime(e.ScheduledArrival), fmtTime(e.ScheduledDeparture),
							orDash(e.StopType.Letters()), orDash(e.Track), orDash(e.NextStation), eta, state(e))
					}
					return w.Flush()
				},
			},
			{
				Name:  "stations",
				Usage: "list the post table",
				Action: func(c *cli.Context) error {
					table, err := loadStations(c)
					if err != nil {
						return err
					}
					w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
					fmt.Fprintln(w, "ID\tNAME\tLAT\tLON\tSECONDARY")
					for _, s := range table.All() {
						fmt.Fprintf(w, "%s\t%s\t%.4f\t%.4f\t%v\n", s.ID, s.Name, s.Platform.Lat, s.Platform.Lon, s.SecondaryPosts)
					}
					return w.Flush()
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("edrctl failed", "error", err)
		os.Exit(1)
	}
}

func loadStations(c *cli.Context) (*stations.Table, error) {
	path := c.String("stations")
	if path == "" {
		return stations.Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return stations.Parse(data)
}

// refresh polls the selected server once.
func refresh(c *cli.Context) (*domain.ServerSnapshot, error) {
	cfg, err := config.Load("edrctl")
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Simrail.Location()
	if err != nil {
		return nil, err
	}
	table, err := loadStations(c)
	if err != nil {
		return nil, err
	}

	client := simrail.New(simrail.Options{
		TrainsURL:    cfg.Simrail.TrainsURL,
		TimetableURL: cfg.Simrail.TimetableURL,
		Timeout:      cfg.Simrail.RequestTimeout,
		UserAgent:    cfg.Simrail.UserAgent,
		ClientName:   cfg.Simrail.ClientName,
		Contact:      cfg.Simrail.Contact,
	})

	server := c.String("server")
	svc := usecases.NewDispatchService(client, table, nil, nil, usecases.DispatchOptions{
		Servers:     []string{server},
		Location:    loc,
		Concurrency: cfg.Simrail.Concurrency,
	})

	ctx, cancel := context.WithTimeout(c.Context, 2*time.Minute)
	defer cancel()
	return svc.Refresh(ctx, server)
}

func state(e domain.BoardEntry) string {
	switch {
	case e.Offline:
		return "offline"
	case e.Passed:
		return "passed"
	case e.Approaching:
		return "approaching"
	}
	return ""
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func fmtFloat(f *float64) string {
	if f == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *f)
}

func fmtTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("15:04")
}
