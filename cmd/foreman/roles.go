package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/foreman/internal/profile"
)

var rolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "List the roles in the profile catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		profiles, err := profile.LoadDir(cfg.Profiles.Dir)
		if err != nil {
			return fmt.Errorf("load profiles from %s: %w", cfg.Profiles.Dir, err)
		}
		if len(profiles) == 0 {
			fmt.Printf("no role profiles found in %s\n", cfg.Profiles.Dir)
			return nil
		}

		for _, p := range profiles {
			color.New(color.Bold).Printf("%s", p.Name)
			if p.Description != "" {
				fmt.Printf("  %s", p.Description)
			}
			fmt.Println()
			fmt.Printf("  tools: %v\n", p.Tools)
		}
		return nil
	},
}
