package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/tbeaumont/cuemirror/eos"
	"github.com/tbeaumont/cuemirror/show"
)

var (
	dataDir string
	verbose bool
)

func main() {
	root := &cobra.Command{
		Use:   "cuemirror",
		Short: "Annotated local mirror of a lighting console's cue database",
		Long: "cuemirror keeps a local, annotated copy of the cues on an OSC lighting\n" +
			"console: notes, colors, tags and page references that the console cannot\n" +
			"store, plus recorded performance timings for running the show against.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				log.SetLevel(log.DebugLevel)
			}
		},
	}
	root.PersistentFlags().StringVar(&dataDir, "data-dir", defaultDataDir(), "data directory for shows and settings")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(setupCmd(), runCmd(), monitorCmd(), showsCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cuemirror"
	}
	return filepath.Join(home, ".cuemirror")
}

// buildEngine wires settings, show storage, transport and engine together.
func buildEngine() (*eos.Engine, show.Settings, error) {
	mgr, err := show.NewManager(dataDir)
	if err != nil {
		return nil, show.Settings{}, err
	}
	settings := show.LoadSettings(dataDir)

	engine := eos.New(transportFor(settings.OSC), mgr, settings, nil)
	if err := engine.OpenShow(settings.LastShowName); err != nil {
		return nil, settings, err
	}
	return engine, settings, nil
}

func transportFor(s show.OSCSettings) eos.Transport {
	if s.Protocol == "tcp" {
		return eos.NewTCPTransport(fmt.Sprintf("%s:%d", s.IPAddress, s.Port))
	}
	// The console transmits to the port above the one it receives on.
	return eos.NewUDPTransport(s.IPAddress, s.Port, s.Port+1)
}

func setupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Interactively configure console connection and show",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := show.LoadSettings(dataDir)

			address := settings.OSC.IPAddress
			port := strconv.Itoa(settings.OSC.Port)
			protocol := settings.OSC.Protocol
			showName := settings.LastShowName

			form := huh.NewForm(
				huh.NewGroup(
					huh.NewInput().
						Title("Console address").
						Description("IP address or hostname of the console").
						Value(&address),
					huh.NewInput().
						Title("OSC port").
						Validate(func(s string) error {
							n, err := strconv.Atoi(s)
							if err != nil || n <= 0 || n > 65535 {
								return fmt.Errorf("enter a port between 1 and 65535")
							}
							return nil
						}).
						Value(&port),
					huh.NewSelect[string]().
						Title("Protocol").
						Options(
							huh.NewOption("UDP (one datagram per message)", "udp"),
							huh.NewOption("TCP (SLIP framed)", "tcp"),
						).
						Value(&protocol),
					huh.NewInput().
						Title("Show name").
						Description("Local show to open on startup").
						Value(&showName),
				),
			)
			if err := form.Run(); err != nil {
				return err
			}

			settings.OSC.IPAddress = address
			settings.OSC.Port, _ = strconv.Atoi(port)
			settings.OSC.Protocol = protocol
			settings.LastShowName = showName
			if err := show.SaveSettings(dataDir, settings); err != nil {
				return err
			}
			log.Info("Settings saved", "dir", dataDir)
			return nil
		},
	}
}

func runCmd() *cobra.Command {
	var record bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to the console and keep the mirror live",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, settings, err := buildEngine()
			if err != nil {
				return err
			}
			engine.OnDisconnect(func() {
				log.Warn("Console disconnected; run again to reconnect")
			})

			log.Info("Connecting to console",
				"address", settings.OSC.IPAddress,
				"port", settings.OSC.Port,
				"protocol", settings.OSC.Protocol)
			if err := engine.Connect(); err != nil {
				return err
			}
			if record {
				engine.SetRecording(true)
			}

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			<-sig

			log.Info("Shutting down")
			engine.Disconnect()
			return nil
		},
	}
	cmd.Flags().BoolVar(&record, "record", false, "record cue firing times for this run")
	return cmd
}

func showsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shows",
		Short: "List shows in the data directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := show.NewManager(dataDir)
			if err != nil {
				return err
			}
			settings := show.LoadSettings(dataDir)
			names := mgr.List()
			if len(names) == 0 {
				fmt.Println("No shows yet.")
				return nil
			}
			for _, name := range names {
				marker := "  "
				if name == settings.LastShowName {
					marker = "* "
				}
				fmt.Printf("%s%s\n", marker, name)
			}
			return nil
		},
	}
}
