package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/HEchternacht/rollabot/internal/bot"
	"github.com/HEchternacht/rollabot/internal/guildapi"
	"github.com/HEchternacht/rollabot/internal/panel"
	"github.com/HEchternacht/rollabot/internal/tsclient"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:          "rollabot",
		Short:        "TeamSpeak ClientQuery bot",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("rollabot", version)
		},
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	settings, err := bot.LoadSettings()
	if err != nil {
		return err
	}

	b := bot.New(settings)

	var proc *tsclient.Manager
	if len(settings.ClientCommand) > 0 {
		proc = tsclient.New(settings.ClientCommand, settings.ClientWorkdir, settings.ClientPIDFile)
		proc.Start()
		b.SetProcessManager(proc)
	}

	if settings.GuildURL != "" || settings.WarStatsURL != "" {
		b.SetGuildClient(guildapi.New(guildapi.Config{
			GuildURL:    settings.GuildURL,
			WarStatsURL: settings.WarStatsURL,
		}))
	}

	var hub *panel.Hub
	if settings.PanelAddr != "" {
		hub = panel.New(settings.PanelAddr, func() any { return b.Status() })
		b.SetActivityHook(func(ev bot.ActivityEvent) {
			hub.Broadcast("activity", ev)
		})
		hub.Start()
	}

	if err := b.Start(); err != nil {
		return err
	}
	defer b.Stop()
	if hub != nil {
		defer hub.Stop()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Println("running… press Ctrl+C to stop")
	<-ctx.Done()
	return nil
}
