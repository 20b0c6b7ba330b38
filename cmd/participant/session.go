package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/immxrtalbeast/codetutor/internal/client"
	"github.com/immxrtalbeast/codetutor/internal/domain"
	"github.com/immxrtalbeast/codetutor/lib/logger/sl"
	"github.com/spf13/cobra"
)

const usage = `commands:
  /run <command>   run a terminal command (host only)
  /clear           clear the whiteboard
  /mute            toggle the microphone
  /video           toggle the camera
  /name <name>     change the display name
  /who             list participants
  /quit            leave the room
anything else is sent as chat`

// runSession keeps the agent in the room and reads commands from stdin
// until the user quits or the process is interrupted.
func runSession(cmd *cobra.Command, log *slog.Logger, cfg client.Config) error {
	out := cmd.OutOrStdout()

	cfg.OnChat = func(p domain.ChatPayload) {
		fmt.Fprintf(out, "[%s] %s\n", p.Sender, p.Message)
	}
	cfg.OnTerminal = func(line domain.TranscriptLine) {
		fmt.Fprintln(out, line.Output)
	}
	cfg.OnServerError = func(msg string) {
		fmt.Fprintln(out, "server:", msg)
	}
	cfg.OnStateChange = func(_, to client.ConnState, _ error) {
		if to == client.StateConnected {
			fmt.Fprintln(out, usage)
		}
	}

	agent, err := client.NewAgent(cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		readCommands(ctx, cmd.InOrStdin(), out, agent)
		cancel()
	}()

	runErr := agent.Run(ctx)
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}
	if err := agent.Close(); err != nil {
		log.Warn("teardown incomplete", sl.Err(err))
	}
	return runErr
}

func readCommands(ctx context.Context, in io.Reader, out io.Writer, agent *client.Agent) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		verb, arg, _ := strings.Cut(line, " ")
		var err error
		switch verb {
		case "/quit":
			return
		case "/run":
			err = agent.RunCommand(arg)
		case "/clear":
			err = agent.ClearWhiteboard()
		case "/mute":
			var muted bool
			if muted, err = agent.ToggleMute(); err == nil {
				fmt.Fprintln(out, "muted:", muted)
			}
		case "/video":
			var off bool
			if off, err = agent.ToggleVideo(); err == nil {
				fmt.Fprintln(out, "video off:", off)
			}
		case "/name":
			err = agent.SetName(strings.TrimSpace(arg))
		case "/who":
			for _, p := range agent.Roster().List() {
				fmt.Fprintf(out, "  %s (%s) host=%t muted=%t video_off=%t\n", p.Name, p.ID, p.IsHost, p.Muted, p.VideoOff)
			}
		case "/help":
			fmt.Fprintln(out, usage)
		default:
			err = agent.Chat(line)
		}
		if err != nil {
			fmt.Fprintln(out, "error:", err)
		}
	}
}
