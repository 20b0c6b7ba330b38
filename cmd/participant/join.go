package main

import (
	"github.com/immxrtalbeast/codetutor/internal/client"
	"github.com/immxrtalbeast/codetutor/internal/domain"
	"github.com/spf13/cobra"
)

var (
	flagParticipant string
	flagHostKey     string
)

var joinCmd = &cobra.Command{
	Use:   "join <invite-link>",
	Short: "Join a room from an invite link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		invite, err := client.ParseInvite(args[0])
		if err != nil {
			return err
		}

		participant := flagParticipant
		if participant == "" {
			participant = domain.NewParticipantID()
		}

		return runSession(cmd, setupLogger(), client.Config{
			ServerURL:     flagServer,
			RoomCode:      invite.Room,
			SessionID:     invite.Session,
			ParticipantID: participant,
			HostKey:       flagHostKey,
			Name:          flagName,
		})
	},
}

func init() {
	joinCmd.Flags().StringVar(&flagParticipant, "participant", "", "participant id to rejoin with")
	joinCmd.Flags().StringVar(&flagHostKey, "host-key", "", "host key, to rejoin as host")
}
