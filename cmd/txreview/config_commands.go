package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/brojonat/txreview/service/config"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

func showConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "show",
		Usage: "Print the reviewer settings in effect",
		Action: func(c *cli.Context) error {
			conf, path, err := config.LoadReviewer(c.String("config"))
			if err != nil {
				return err
			}

			if c.Bool("json") {
				return outputJSON(map[string]any{
					"path":             path,
					"server_url":       conf.ServerURL,
					"suggestion_limit": conf.SuggestionLimit,
					"log_file":         conf.LogFile,
				})
			}

			data, err := yaml.Marshal(conf)
			if err != nil {
				return fmt.Errorf("failed to marshal reviewer config: %w", err)
			}
			fmt.Fprintf(os.Stderr, "# %s\n", path)
			fmt.Print(string(data))
			return nil
		},
	}
}

func initConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Write a reviewer config file with the default settings",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "force",
				Aliases: []string{"f"},
				Usage:   "Overwrite an existing file",
			},
		},
		Action: func(c *cli.Context) error {
			path := c.String("config")
			if path == "" {
				path = config.ReviewerPath()
			}

			if _, err := os.Stat(path); err == nil && !c.Bool("force") {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("failed to stat %s: %w", path, err)
			}

			conf := config.DefaultReviewer()
			if u := c.String("ws-url"); u != "" {
				conf.ServerURL = u
			}
			if err := conf.Validate(); err != nil {
				return err
			}

			if err := config.SaveReviewer(path, conf); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "✓ Wrote %s\n", path)
			return nil
		},
	}
}
