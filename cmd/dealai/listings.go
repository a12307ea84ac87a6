package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/cli"
	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/common"
	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/model"
	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/service"
)

func listingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listings",
		Short: "Browse evaluated listings",
	}

	cmd.AddCommand(listingsListCmd())
	cmd.AddCommand(listingsShowCmd())

	return cmd
}

func listingsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored listings, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			filter, err := listingFilterFromFlags(cmd)
			if err != nil {
				return err
			}
			asJSON, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := initStorage(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			listings, err := store.ListListings(ctx, filter)
			if err != nil {
				return fmt.Errorf("failed to list listings: %w", err)
			}

			if asJSON {
				if listings == nil {
					listings = []model.Listing{}
				}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(listings)
			}
			return cli.WriteListings(os.Stdout, listings)
		},
	}

	cmd.Flags().Float64("min-score", 0, "Minimum relevance score (0-1)")
	cmd.Flags().String("profile", "", "Only listings for this profile")
	cmd.Flags().String("status", "", "Only accepted or rejected listings")
	cmd.Flags().Int("security-min", 0, "Minimum security score (0-100)")
	cmd.Flags().Bool("json", false, "Print as JSON")

	return cmd
}

func listingFilterFromFlags(cmd *cobra.Command) (service.ListingFilter, error) {
	flags := cmd.Flags()
	minScore, _ := flags.GetFloat64("min-score")
	profile, _ := flags.GetString("profile")
	status, _ := flags.GetString("status")

	if minScore < 0 || minScore > 1 {
		return service.ListingFilter{}, common.NewUserError("--min-score must be between 0 and 1", errors.New("min score out of range"))
	}

	filter := service.ListingFilter{
		MinScore: minScore,
		Profile:  profile,
		Status:   model.ListingStatus(status),
	}
	switch filter.Status {
	case "", model.StatusAccepted, model.StatusRejected:
	default:
		return filter, common.NewUserError(`--status must be "accepted" or "rejected"`, fmt.Errorf("invalid status %q", status))
	}

	if flags.Changed("security-min") {
		securityMin, _ := flags.GetInt("security-min")
		filter.SecurityMin = &securityMin
	}

	return filter, nil
}

func listingsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <listing-id>",
		Short: "Show one listing with its security badge",
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

			listing, err := store.GetListing(ctx, id)
			if errors.Is(err, common.ErrNotFound) {
				return common.NewUserError(fmt.Sprintf("listing %d not found", id), err)
			}
			if err != nil {
				return fmt.Errorf("failed to get listing: %w", err)
			}

			return cli.WriteListingDetail(os.Stdout, listing)
		},
	}
}
