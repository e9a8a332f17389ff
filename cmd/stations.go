package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newStationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stations",
		Short: "List stations and free spaces",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := envFrom(cmd)
			if err := requireUser(e); err != nil {
				return err
			}

			stations, err := e.client.Stations(cmd.Context())
			if err != nil {
				return err
			}
			renderStations(cmd.OutOrStdout(), stations)
			return nil
		},
	}
}

func newSpacesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "spaces <station-id>",
		Short: "Show the space grid of a station",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := envFrom(cmd)
			if err := requireUser(e); err != nil {
				return err
			}

			stationID, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid station id %q", args[0])
			}

			spaces, err := e.client.Spaces(cmd.Context(), stationID)
			if err != nil {
				return err
			}
			renderSpaces(cmd.OutOrStdout(), spaces)
			return nil
		},
	}
}
