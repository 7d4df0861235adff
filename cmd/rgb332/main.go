package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/bodgit/rgb332"
	"github.com/bodgit/rgb332/config"
	"github.com/urfave/cli/v2"
)

const (
	defaultDB        = "rgb332.db"
	defaultFramesDir = "output_frames"
)

func init() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:    "version",
		Aliases: []string{"V"},
		Usage:   "print the version",
	}
}

func newLogger(c *cli.Context) *log.Logger {
	logger := log.New(io.Discard, "", 0)
	if c.Bool("verbose") {
		logger.SetOutput(os.Stderr)
	}
	return logger
}

// profile loads the configuration profile and applies any flags that were
// explicitly set on top of it.
func profile(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cfg, err
	}

	if c.IsSet("width") {
		cfg.Display.Width = c.Int("width")
	}
	if c.IsSet("height") {
		cfg.Display.Height = c.Int("height")
	}
	if c.IsSet("rotate") {
		cfg.Display.Rotate = c.Int("rotate")
	}
	if c.IsSet("max-frames") {
		cfg.MaxFrames = c.Int("max-frames")
	}
	if c.IsSet("db") || cfg.Database == "" {
		cfg.Database = c.String("db")
	}

	return cfg, cfg.Validate()
}

func options(cfg config.Config) rgb332.Options {
	return rgb332.Options{
		Width:     cfg.Display.Width,
		Height:    cfg.Display.Height,
		MaxFrames: cfg.MaxFrames,
		Rotate:    cfg.Display.Rotate,
		Columns:   cfg.Header.Columns,
		Includes:  cfg.Header.Includes,
		FFmpeg:    cfg.Decoder.FFmpeg,
		FFprobe:   cfg.Decoder.FFprobe,
	}
}

// converter returns a Converter for the current profile, optionally backed
// by the library database. The returned function releases the database.
func converter(c *cli.Context, withLibrary bool) (*rgb332.Converter, func(), error) {
	cfg, err := profile(c)
	if err != nil {
		return nil, nil, err
	}

	var lib *rgb332.Library
	if withLibrary {
		if lib, err = rgb332.NewLibrary(cfg.Database); err != nil {
			return nil, nil, err
		}
	}

	return rgb332.New(options(cfg), lib, newLogger(c)), func() {
		if lib != nil {
			lib.Close()
		}
	}, nil
}

func library(c *cli.Context) (*rgb332.Library, error) {
	cfg, err := profile(c)
	if err != nil {
		return nil, err
	}
	return rgb332.NewLibrary(cfg.Database)
}

func baseName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// globalFlags returns the flags shared by every command. Any that are set
// override the matching profile value, see profile.
func globalFlags(cwd string) []cli.Flag {
	defaults := config.Default()

	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			EnvVars: []string{"RGB332_CONFIG"},
			Usage:   "path to TOML profile (default \"" + config.DefaultPath + "\" if present)",
		},
		&cli.StringFlag{
			Name:    "db",
			EnvVars: []string{"RGB332_DB"},
			Value:   filepath.Join(cwd, defaultDB),
			Usage:   "path to asset library",
		},
		&cli.IntFlag{
			Name:  "width",
			Value: defaults.Display.Width,
			Usage: "display width, 0 keeps the source size",
		},
		&cli.IntFlag{
			Name:  "height",
			Value: defaults.Display.Height,
			Usage: "display height, 0 keeps the source size",
		},
		&cli.IntFlag{
			Name:  "max-frames",
			Value: defaults.MaxFrames,
			Usage: "stop after this many frames, 0 for all",
		},
		&cli.IntFlag{
			Name:  "rotate",
			Value: defaults.Display.Rotate,
			Usage: "rotate by this many quarter turns counter-clockwise",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "increase verbosity",
		},
	}
}

func main() {
	app := cli.NewApp()

	app.Name = "rgb332"
	app.Usage = "Convert images and video to RGB332 frames for embedded displays"
	app.Version = "1.0.0"

	cwd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}

	app.Flags = globalFlags(cwd)

	app.Commands = []*cli.Command{
		{
			Name:        "header",
			Usage:       "Convert to a C header",
			Description: "Writes NAME.h and NAME_array.txt, NAME defaults to the source file name.",
			ArgsUsage:   "SOURCE [NAME]",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "output",
					Value: ".",
					Usage: "output directory",
				},
			},
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				name := c.Args().Get(1)
				if name == "" {
					name = baseName(c.Args().First())
				}

				r, done, err := converter(c, false)
				if err != nil {
					return cli.NewExitError(err, 1)
				}
				defer done()

				if err := r.WriteHeader(c.Context, c.Args().First(), c.String("output"), name); err != nil {
					return cli.NewExitError(err, 1)
				}

				return nil
			},
		},
		{
			Name:        "frames",
			Usage:       "Convert to raw binary frames",
			Description: "Writes frame1.bin, frame2.bin, ... and info.txt, DIR defaults to " + defaultFramesDir + ".",
			ArgsUsage:   "SOURCE [DIR]",
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				dir := c.Args().Get(1)
				if dir == "" {
					dir = defaultFramesDir
				}

				r, done, err := converter(c, false)
				if err != nil {
					return cli.NewExitError(err, 1)
				}
				defer done()

				if _, err := r.WriteFrames(c.Context, c.Args().First(), dir); err != nil {
					return cli.NewExitError(err, 1)
				}

				return nil
			},
		},
		{
			Name:        "preview",
			Usage:       "Render frames next to their RGB332 reconstruction",
			Description: "OUTPUT ending in .gif is animated, anything else is a PNG of the first frame.",
			ArgsUsage:   "SOURCE OUTPUT",
			Action: func(c *cli.Context) error {
				if c.NArg() < 2 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				r, done, err := converter(c, false)
				if err != nil {
					return cli.NewExitError(err, 1)
				}
				defer done()

				rep, err := r.Preview(c.Context, c.Args().Get(0), c.Args().Get(1))
				if err != nil {
					return cli.NewExitError(err, 1)
				}

				fmt.Fprintf(c.App.Writer, "max error: R=%d G=%d B=%d\nmean deltaE: %.2f\n", rep.MaxR, rep.MaxG, rep.MaxB, rep.MeanDeltaE)

				return nil
			},
		},
		{
			Name:      "verify",
			Usage:     "Check a directory of raw binary frames",
			ArgsUsage: "DIR",
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				i, err := rgb332.Verify(c.Args().First())
				if err != nil {
					return cli.NewExitError(err, 1)
				}

				b, err := i.MarshalText()
				if err != nil {
					return cli.NewExitError(err, 1)
				}
				fmt.Fprintf(c.App.Writer, "%s", b)

				return nil
			},
		},
		{
			Name:      "import",
			Usage:     "Convert and store in the asset library",
			ArgsUsage: "SOURCE NAME",
			Action: func(c *cli.Context) error {
				if c.NArg() < 2 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				r, done, err := converter(c, true)
				if err != nil {
					return cli.NewExitError(err, 1)
				}
				defer done()

				if _, err := r.Import(c.Context, c.Args().Get(0), c.Args().Get(1)); err != nil {
					return cli.NewExitError(err, 1)
				}

				return nil
			},
		},
		{
			Name:      "export",
			Usage:     "Write an asset from the library",
			ArgsUsage: "NAME",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "format",
					Value: "header",
					Usage: "output format, header or frames",
				},
				&cli.StringFlag{
					Name:  "output",
					Usage: "output directory (default \".\" for header, \"" + defaultFramesDir + "\" for frames)",
				},
			},
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				r, done, err := converter(c, true)
				if err != nil {
					return cli.NewExitError(err, 1)
				}
				defer done()

				name, dir := c.Args().First(), c.String("output")

				switch c.String("format") {
				case "header":
					if dir == "" {
						dir = "."
					}
					err = r.ExportHeader(name, dir)
				case "frames":
					if dir == "" {
						dir = defaultFramesDir
					}
					_, err = r.ExportFrames(name, dir)
				default:
					err = fmt.Errorf("unknown format %q", c.String("format"))
				}
				if err != nil {
					return cli.NewExitError(err, 1)
				}

				return nil
			},
		},
		{
			Name:  "list",
			Usage: "List assets in the library",
			Action: func(c *cli.Context) error {
				lib, err := library(c)
				if err != nil {
					return cli.NewExitError(err, 1)
				}
				defer lib.Close()

				assets, err := lib.List()
				if err != nil {
					return cli.NewExitError(err, 1)
				}

				w := tabwriter.NewWriter(c.App.Writer, 0, 8, 2, ' ', 0)
				fmt.Fprintln(w, "NAME\tSOURCE\tFRAMES\tSIZE\tROTATE")
				for _, a := range assets {
					fmt.Fprintf(w, "%s\t%s: %s\t%d\t%dx%d\t%d\n", a.Name, a.Kind, a.Source, a.Frames, a.Width, a.Height, a.Rotate)
				}

				return w.Flush()
			},
		},
		{
			Name:      "remove",
			Usage:     "Remove an asset from the library",
			ArgsUsage: "NAME",
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				lib, err := library(c)
				if err != nil {
					return cli.NewExitError(err, 1)
				}
				defer lib.Close()

				if err := lib.Remove(c.Args().First()); err != nil {
					return cli.NewExitError(err, 1)
				}

				return nil
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
