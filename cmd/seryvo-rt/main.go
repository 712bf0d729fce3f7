// Command seryvo-rt is a terminal client for the Seryvo realtime gateway:
// it tails live events or issues one-off commands over the same websocket
// transport the apps use.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/seryvo/realtime/config"
	"github.com/seryvo/realtime/src/auth"
	"github.com/seryvo/realtime/src/client"
	"github.com/seryvo/realtime/src/types"
)

func main() {
	cmd := &cli.Command{
		Name:  "seryvo-rt",
		Usage: "Seryvo realtime transport client",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api-url",
				Usage:   "API base URL (http/https)",
				Sources: cli.EnvVars("SERYVO_API_URL"),
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "bearer token for the websocket handshake",
				Sources: cli.EnvVars("SERYVO_TOKEN"),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			tailCommand(),
			sendLocationCommand(),
			chatCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newClient(cmd *cli.Command) (*client.Client, zerolog.Logger) {
	level := zerolog.InfoLevel
	if cmd.Bool("debug") {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	cfg := config.FromEnv()
	if v := cmd.String("api-url"); v != "" {
		cfg.APIBaseURL = v
	}
	tokens := auth.JWT(auth.Static(cmd.String("token")))
	return client.New(cfg, tokens, logger), logger
}

func tailCommand() *cli.Command {
	return &cli.Command{
		Name:  "tail",
		Usage: "connect and print incoming events",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "channel",
				Usage: "channel to subscribe to (repeatable)",
				Value: []string{string(types.ChannelNotification)},
			},
			&cli.StringSliceFlag{
				Name:  "room",
				Usage: "room to join, e.g. booking:42 (repeatable)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			c, logger := newClient(cmd)
			defer c.Shutdown()

			consumer := c.Consumer("cli-tail").
				OnConnect(func() { logger.Info().Msg("connected") }).
				OnDisconnect(func(reason string) { logger.Warn().Str("reason", reason).Msg("disconnected") }).
				OnError(func(err error) { logger.Error().Err(err).Msg("transport error") }).
				OnAll(func(env types.Envelope) {
					fmt.Printf("%s  %-24s %-16s %s\n", env.Timestamp, env.Kind, env.Channel, string(env.Payload))
				})
			defer consumer.Close()

			for _, ch := range cmd.StringSlice("channel") {
				id := types.ChannelID(ch)
				if !id.Valid() {
					return fmt.Errorf("unknown channel %q", ch)
				}
				consumer.Subscribe(id, "")
			}
			for _, room := range cmd.StringSlice("room") {
				consumer.JoinRoom(types.RoomID(room))
			}

			if err := consumer.Attach(ctx); err != nil {
				return err
			}

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			select {
			case <-sig:
			case <-ctx.Done():
			}
			return nil
		},
	}
}

func sendLocationCommand() *cli.Command {
	return &cli.Command{
		Name:  "send-location",
		Usage: "send one driver location update",
		Flags: []cli.Flag{
			&cli.FloatFlag{Name: "lat", Required: true},
			&cli.FloatFlag{Name: "lng", Required: true},
			&cli.StringFlag{Name: "room", Usage: "optional room scope, e.g. booking:42"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			c, _ := newClient(cmd)
			defer c.Shutdown()

			consumer := c.Consumer("cli-location")
			defer consumer.Close()

			if err := consumer.Attach(ctx); err != nil {
				return err
			}
			consumer.SendLocation(types.DriverLocationPayload{
				Lat:    cmd.Float("lat"),
				Lng:    cmd.Float("lng"),
				RoomID: types.RoomID(cmd.String("room")),
			})
			return nil
		},
	}
}

func chatCommand() *cli.Command {
	return &cli.Command{
		Name:  "chat",
		Usage: "send one chat message to a room",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "room", Required: true, Usage: "chat room, e.g. chat:42"},
			&cli.StringFlag{Name: "message", Required: true},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			c, _ := newClient(cmd)
			defer c.Shutdown()

			consumer := c.Consumer("cli-chat")
			defer consumer.Close()

			if err := consumer.Attach(ctx); err != nil {
				return err
			}
			consumer.SendChat(types.RoomID(cmd.String("room")), cmd.String("message"))
			return nil
		},
	}
}
