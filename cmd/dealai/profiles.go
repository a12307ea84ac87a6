package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/cli"
	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/common"
	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/model"
)

func profilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "Manage search profiles",
		Long:  `List, add, update and delete the search profiles listings are matched against.`,
	}

	cmd.AddCommand(profilesListCmd())
	cmd.AddCommand(profilesAddCmd())
	cmd.AddCommand(profilesUpdateCmd())
	cmd.AddCommand(profilesDeleteCmd())

	return cmd
}

func addProfileFlags(flags *pflag.FlagSet) {
	flags.String("name", "", "Profile name (unique)")
	flags.String("keywords", "", `Comma-separated keywords, e.g. "iphone 13, 128gb"`)
	flags.String("min-price", "", `Lowest acceptable price, e.g. "200" or "199.99"; "" for none`)
	flags.String("max-price", "", `Highest acceptable price; "" for none`)
	flags.Float64("min-score", model.DefaultMinScore, "Minimum relevance score (0-1)")
	flags.String("chat-id", "", "Telegram chat to notify instead of the default channel")
}

// applyProfileFlags copies the flags the user actually set onto profile.
func applyProfileFlags(flags *pflag.FlagSet, profile *model.Profile) error {
	if flags.Changed("name") {
		name, _ := flags.GetString("name")
		profile.Name = strings.TrimSpace(name)
	}
	if flags.Changed("keywords") {
		profile.Keywords, _ = flags.GetString("keywords")
	}
	if flags.Changed("min-price") {
		raw, _ := flags.GetString("min-price")
		price, err := parsePrice(raw)
		if err != nil {
			return err
		}
		profile.PriceMinCents = price
	}
	if flags.Changed("max-price") {
		raw, _ := flags.GetString("max-price")
		price, err := parsePrice(raw)
		if err != nil {
			return err
		}
		profile.PriceMaxCents = price
	}
	if flags.Changed("min-score") {
		profile.MinScore, _ = flags.GetFloat64("min-score")
	}
	if flags.Changed("chat-id") {
		chatID, _ := flags.GetString("chat-id")
		profile.ChatID = strings.TrimSpace(chatID)
	}
	return nil
}

func profilesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all profiles",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := initStorage(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			profiles, err := store.ListProfiles(ctx)
			if err != nil {
				return fmt.Errorf("failed to list profiles: %w", err)
			}
			return cli.WriteProfiles(os.Stdout, profiles)
		},
	}
}

func profilesAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a profile",
		Example: `  dealai profiles add --name "iPhone 13" --keywords "iphone 13,128gb" --max-price 350
  dealai profiles add --name Consoles --keywords ps5 --min-price 200 --chat-id 123456`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			profile := model.Profile{MinScore: model.DefaultMinScore}
			if err := applyProfileFlags(cmd.Flags(), &profile); err != nil {
				return err
			}
			if profile.Name == "" {
				return common.NewUserError("--name is required", errors.New("missing profile name"))
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := initStorage(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			id, err := store.CreateProfile(ctx, &profile)
			if errors.Is(err, common.ErrDuplicateEntry) {
				return common.NewUserError(fmt.Sprintf("a profile named %q already exists", profile.Name), err)
			}
			if err != nil {
				return fmt.Errorf("failed to create profile: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Created profile %d (%s)", id, profile.Name))) //nolint:forbidigo // User-facing output
			return nil
		},
	}

	addProfileFlags(cmd.Flags())
	return cmd
}

func profilesUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <profile-id>",
		Short: "Update a profile",
		Long:  `Update a profile. Only the flags you pass are changed.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := initStorage(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			profile, err := store.GetProfile(ctx, id)
			if errors.Is(err, common.ErrNotFound) {
				return common.NewUserError(fmt.Sprintf("profile %d not found", id), err)
			}
			if err != nil {
				return fmt.Errorf("failed to get profile: %w", err)
			}

			if err := applyProfileFlags(cmd.Flags(), profile); err != nil {
				return err
			}

			err = store.UpdateProfile(ctx, profile)
			if errors.Is(err, common.ErrDuplicateEntry) {
				return common.NewUserError(fmt.Sprintf("a profile named %q already exists", profile.Name), err)
			}
			if err != nil {
				return fmt.Errorf("failed to update profile: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Updated profile %d (%s)", id, profile.Name))) //nolint:forbidigo // User-facing output
			return nil
		},
	}

	addProfileFlags(cmd.Flags())
	return cmd
}

func profilesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <profile-id>",
		Short: "Delete a profile",
		Long:  `Delete a profile. Listings already stored for it are kept.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := initStorage(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			err = store.DeleteProfile(ctx, id)
			if errors.Is(err, common.ErrNotFound) {
				return common.NewUserError(fmt.Sprintf("profile %d not found", id), err)
			}
			if err != nil {
				return fmt.Errorf("failed to delete profile: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Deleted profile %d", id))) //nolint:forbidigo // User-facing output
			return nil
		},
	}
}
