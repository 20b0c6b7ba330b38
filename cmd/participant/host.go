package main

import (
	"fmt"
	"time"

	"github.com/immxrtalbeast/codetutor/internal/client"
	"github.com/immxrtalbeast/codetutor/internal/domain"
	"github.com/spf13/cobra"
)

var (
	flagRoomName string
	flagLifetime int
)

var hostCmd = &cobra.Command{
	Use:   "host",
	Short: "Create a room and join it as host",
	Long: `Create a room on the server, print the invite link to share, and stay in
the room as its host. Only the host can run terminal commands.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := setupLogger()
		api := client.NewAPIClient(flagServer, nil)

		created, err := api.CreateRoom(cmd.Context(), client.CreateRoomRequest{
			SessionID:       domain.NewSessionID(),
			Name:            flagRoomName,
			LifetimeMinutes: flagLifetime,
		})
		if err != nil {
			return fmt.Errorf("create room: %w", err)
		}

		out := cmd.OutOrStdout()
		if created.Room.ExpiresAt.IsZero() {
			fmt.Fprintf(out, "Room %s created\n", created.Room.Code)
		} else {
			fmt.Fprintf(out, "Room %s created, expires %s\n", created.Room.Code, created.Room.ExpiresAt.Local().Format(time.Kitchen))
		}
		fmt.Fprintf(out, "Invite link: %s\n", created.InviteLink)
		fmt.Fprintf(out, "Host key:    %s\n\n", created.HostKey)

		return runSession(cmd, log, client.Config{
			ServerURL:     flagServer,
			RoomCode:      created.Room.Code,
			SessionID:     created.Room.SessionID,
			ParticipantID: domain.NewParticipantID(),
			HostKey:       created.HostKey,
			Name:          flagName,
		})
	},
}

func init() {
	hostCmd.Flags().StringVar(&flagRoomName, "room-name", "", "room title")
	hostCmd.Flags().IntVar(&flagLifetime, "lifetime", 0, "room lifetime in minutes, server default when 0")
}
