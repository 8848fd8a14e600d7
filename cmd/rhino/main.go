// Package main is the entry point for the Rhino music player.
//
// Build:
//
//	go build -o build/rhino ./cmd/rhino
//
// Run:
//
//	./build/rhino [files or folders...]
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/rhinomusic/rhino/internal/adapter/audio/beep"
	"github.com/rhinomusic/rhino/internal/adapter/eventbus"
	"github.com/rhinomusic/rhino/internal/adapter/metadata"
	"github.com/rhinomusic/rhino/internal/app"
	"github.com/rhinomusic/rhino/internal/config"
	"github.com/rhinomusic/rhino/internal/domain"
	"github.com/rhinomusic/rhino/internal/logger"
	"github.com/rhinomusic/rhino/internal/service"
)

var (
	cli        = kingpin.New("rhino", "Rhino music player")
	configPath = cli.Flag("config", "Path to config file").Default(config.DefaultPath()).String()
	verbose    = cli.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = cli.Flag("logfile", "Path to log file (default: stderr)").String()
	engine     = cli.Flag("engine", "Media engine").Enum("beep", "mock")

	// run command (default)
	runCmd   = cli.Command("run", "Play files or folders (default)").Default()
	runPaths = runCmd.Arg("paths", "Files or folders to queue").Strings()

	// scan command
	scanCmd = cli.Command("scan", "List the songs found in a folder")
	scanDir = scanCmd.Arg("dir", "Folder to scan").Required().ExistingDir()

	// version command
	versionCmd = cli.Command("version", "Print version information")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(cli.Parse(os.Args[1:]))

	if command == versionCmd.FullCommand() {
		fmt.Println(app.GetVersionInfo().FullString())
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	// Command-line flags take precedence over the file
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logfile != "" {
		cfg.Log.File = *logfile
	}
	if *engine != "" {
		cfg.Audio.Engine = *engine
	}

	log, closer, err := logger.NewLogger(cfg.Logger())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch command {
	case scanCmd.FullCommand():
		err = scan(ctx, cfg, log, *scanDir)
	default:
		err = run(ctx, cfg, log, *runPaths)
	}
	if err != nil {
		log.Error().Err(err).Msg("rhino failed")
		closer.Close()
		os.Exit(1)
	}
}

// run executes the player. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(ctx context.Context, cfg *config.Config, log zerolog.Logger, paths []string) error {
	application, err := app.NewApplication(cfg, log)
	if err != nil {
		return err
	}
	defer application.Shutdown()

	return application.Run(ctx, paths)
}

func scan(ctx context.Context, cfg *config.Config, log zerolog.Logger, dir string) error {
	bus := eventbus.NewSyncEventBus(log)
	defer bus.Close()

	extensions := cfg.Library.Extensions
	if len(extensions) == 0 {
		extensions = beep.Extensions
	}
	library := service.NewLibraryService(log, metadata.NewTagReader(log, beep.Probe), bus, extensions)

	songs, err := library.ScanFolder(ctx, dir)
	if err != nil {
		return err
	}
	printSongs(songs)
	return nil
}

func printSongs(songs []domain.Song) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"#", "Title", "Artist", "Album", "Length", "File"})
	for i, song := range songs {
		t.AppendRow(table.Row{
			i + 1,
			song.Title,
			song.Artist,
			song.Album,
			formatDuration(song.Duration),
			song.FileReference,
		})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d songs", len(songs))})
	t.Render()
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	d = d.Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
