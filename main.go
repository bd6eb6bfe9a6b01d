package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/do/v2"
	"github.com/vreid/duel/internal/pkg/common"
	"github.com/vreid/duel/internal/pkg/custody"
	"github.com/vreid/duel/internal/pkg/events"
	"github.com/vreid/duel/internal/pkg/ledger"
	"github.com/vreid/duel/internal/pkg/wager"
	bolt "go.etcd.io/bbolt"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
)

const shutdownTimeout = 10 * time.Second

type DuelService struct {
	DatabaseService *common.DatabaseService `do:""`
	EchoService     *common.EchoService     `do:""`

	LedgerService *ledger.LedgerService `do:""`
	WagerService  *wager.WagerService   `do:""`
	EventService  *events.EventService  `do:""`
}

func provideCustodian(i do.Injector) (ledger.Custodian, error) {
	custodyService, err := do.Invoke[*custody.CustodyService](i)
	if err != nil {
		return nil, fmt.Errorf("failed to create custody service: %w", err)
	}

	return custodyService, nil
}

func configureLogging(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	log.SetLevel(lvl)
	//nolint:exhaustruct
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	return nil
}

type serverConfig struct {
	Port        int
	DataDir     string
	EventBuffer int

	ValkeyAddress string
	ValkeyChannel string
}

func newInjector(cfg serverConfig) (do.Injector, *events.Sink) {
	i := do.New()

	do.ProvideNamedValue(i, "port", cfg.Port)
	do.ProvideNamedValue(i, "data-dir", cfg.DataDir)

	do.ProvideNamedValue(i, "valkey-address", cfg.ValkeyAddress)
	do.ProvideNamedValue(i, "valkey-channel", cfg.ValkeyChannel)

	eventSink := events.NewSink(cfg.EventBuffer)

	do.ProvideValue(i, eventSink)
	do.ProvideNamedValue(i, "event-source", eventSink.Source())

	do.Provide(i, common.NewDatabaseService)
	do.Provide(i, common.NewEchoService)

	do.Provide(i, custody.NewCustodyService)
	do.Provide(i, provideCustodian)
	do.Provide(i, ledger.NewLedgerService)
	do.Provide(i, wager.NewWagerService)
	do.Provide(i, events.NewEventService)

	do.Provide(i, do.InvokeStruct[DuelService])

	return i, eventSink
}

func runServer(ctx context.Context, cmd *cli.Command) error {
	err := configureLogging(cmd.String("log-level"))
	if err != nil {
		return err
	}

	i, eventSink := newInjector(serverConfig{
		Port:          cmd.Int("port"),
		DataDir:       cmd.String("data-dir"),
		EventBuffer:   cmd.Int("event-buffer"),
		ValkeyAddress: cmd.String("valkey-address"),
		ValkeyChannel: cmd.String("valkey-channel"),
	})

	duelService, err := do.Invoke[DuelService](i)
	if err != nil {
		return fmt.Errorf("failed to create duel service: %w", err)
	}

	duelService.EventService.Start()

	stopped := make(chan struct{})

	go func() {
		defer close(stopped)

		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := duelService.EchoService.Shutdown(shutdownCtx)
		if err != nil {
			log.WithError(err).Warn("failed to shut down http server")
		}
	}()

	err = duelService.EchoService.Start()
	if err == nil {
		<-stopped
	}

	// handlers still running past the shutdown timeout drop their events
	eventSink.Close()
	duelService.EventService.Wait()

	shutdown("events", duelService.EventService.Shutdown)
	shutdown("database", duelService.DatabaseService.Shutdown)

	return err
}

func shutdown(service string, fn func() error) {
	err := fn()
	if err != nil {
		log.WithField("service", service).WithError(err).Warn("failed to shut down")
	}
}

func openLedger(cmd *cli.Command) (*common.DatabaseService, *ledger.LedgerService, error) {
	databaseService, err := common.OpenDatabase(cmd.String("data-dir"))
	if err != nil {
		return nil, nil, err //nolint:wrapcheck
	}

	return databaseService, &ledger.LedgerService{
		DatabaseService: databaseService,
		Custodian:       &custody.CustodyService{DatabaseService: databaseService},
	}, nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}

	fmt.Println(string(data)) //nolint:forbidigo

	return nil
}

func runMint(_ context.Context, cmd *cli.Command) error {
	databaseService, ledgerService, err := openLedger(cmd)
	if err != nil {
		return err
	}

	defer func() {
		_ = databaseService.Shutdown()
	}()

	descriptor := ledger.Descriptor{
		Issuer:     ledger.Address(cmd.String("issuer")),
		Collection: cmd.String("collection"),
		Item:       cmd.String("item"),
		Version:    cmd.Uint64("version"),
	}

	var id ledger.AssetID

	err = databaseService.DB.Update(func(tx *bolt.Tx) error {
		var err error

		id, err = ledgerService.Mint(tx, descriptor, ledger.Address(cmd.String("owner")))

		return err
	})
	if err != nil {
		return fmt.Errorf("failed to mint asset: %w", err)
	}

	return printJSON(ledger.Asset{
		ID:         id,
		Descriptor: descriptor,
		Owner:      ledger.Address(cmd.String("owner")),
	})
}

func runAssets(_ context.Context, cmd *cli.Command) error {
	databaseService, ledgerService, err := openLedger(cmd)
	if err != nil {
		return err
	}

	defer func() {
		_ = databaseService.Shutdown()
	}()

	assets, err := ledgerService.Assets(ledger.Address(cmd.String("owner")))
	if err != nil {
		return fmt.Errorf("failed to list assets: %w", err)
	}

	return printJSON(assets)
}

func runGame(_ context.Context, cmd *cli.Command) error {
	databaseService, err := common.OpenDatabase(cmd.String("data-dir"))
	if err != nil {
		return err //nolint:wrapcheck
	}

	defer func() {
		_ = databaseService.Shutdown()
	}()

	//nolint:exhaustruct
	wagerService := &wager.WagerService{DatabaseService: databaseService}

	game, err := wagerService.Game(ledger.Address(cmd.String("creator")))
	if err != nil {
		return fmt.Errorf("failed to load game: %w", err)
	}

	return printJSON(game)
}

func dataDirFlag() *cli.StringFlag {
	//nolint:exhaustruct
	return &cli.StringFlag{
		Name:    "data-dir",
		Value:   "./duel/data",
		Sources: cli.EnvVars("DUEL_DATA_DIR"),
	}
}

func requiredString(name string) *cli.StringFlag {
	//nolint:exhaustruct
	return &cli.StringFlag{
		Name:     name,
		Required: true,
	}
}

func main() {
	//nolint:exhaustruct
	cmd := &cli.Command{
		Name:  "duel",
		Usage: "two-party collectible wagers with escrowed stakes",
		Commands: []*cli.Command{
			{
				Name: "server",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "port",
						Value:   3000, //nolint:mnd
						Sources: cli.EnvVars("DUEL_PORT"),
					},
					dataDirFlag(),
					&cli.StringFlag{
						Name:    "log-level",
						Value:   "info",
						Sources: cli.EnvVars("DUEL_LOG_LEVEL"),
					},
					&cli.IntFlag{
						Name:    "event-buffer",
						Value:   1000, //nolint:mnd
						Sources: cli.EnvVars("DUEL_EVENT_BUFFER"),
					},
					&cli.StringFlag{
						Name:    "valkey-address",
						Value:   "",
						Sources: cli.EnvVars("DUEL_VALKEY_ADDRESS"),
					},
					&cli.StringFlag{
						Name:    "valkey-channel",
						Value:   "duel:events",
						Sources: cli.EnvVars("DUEL_VALKEY_CHANNEL"),
					},
				},
				Action: runServer,
			},
			{
				Name:  "mint",
				Usage: "register a collectible in the local ledger",
				Flags: []cli.Flag{
					dataDirFlag(),
					requiredString("owner"),
					requiredString("issuer"),
					requiredString("collection"),
					requiredString("item"),
					&cli.Uint64Flag{
						Name:  "version",
						Value: 0,
					},
				},
				Action: runMint,
			},
			{
				Name:  "assets",
				Usage: "list the collectibles an address holds",
				Flags: []cli.Flag{
					dataDirFlag(),
					requiredString("owner"),
				},
				Action: runAssets,
			},
			{
				Name:  "game",
				Usage: "show the game record of a creator",
				Flags: []cli.Flag{
					dataDirFlag(),
					requiredString("creator"),
				},
				Action: runGame,
			},
		},
		DefaultCommand: "server",
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cmd.Run(ctx, os.Args)
	if err != nil {
		log.Fatal(err)
	}
}
