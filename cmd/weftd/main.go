package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli"

	weft "github.com/tokenvault/weft"
	"github.com/tokenvault/weft/app"
	"github.com/tokenvault/weft/coin"
	"github.com/tokenvault/weft/cron"
	"github.com/tokenvault/weft/errors"
	"github.com/tokenvault/weft/store/leveldb"
	"github.com/tokenvault/weft/x"
	"github.com/tokenvault/weft/x/cash"
	"github.com/tokenvault/weft/x/collateral"
	"github.com/tokenvault/weft/x/market"
	"github.com/tokenvault/weft/x/nft"
)

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	app := cli.NewApp()
	app.Name = "weftd"
	app.Usage = "token ledger node"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "home",
			Value: filepath.Join(os.ExpandEnv("$HOME"), ".weft"),
			Usage: "directory to store files under",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "init",
			Usage: "initialize the database with a genesis configuration",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "owner",
					Usage: "hex address of the configuration owner",
				},
				cli.StringFlag{
					Name:  "byte-price",
					Value: "0.00000001 IOV",
					Usage: "price of one byte of stored data",
				},
				cli.StringFlag{
					Name:  "base-unit",
					Value: "0.000000001 IOV",
					Usage: "payment required to attach to state changing calls",
				},
				cli.Int64Flag{
					Name:  "slot-bytes",
					Value: 1000,
					Usage: "bytes reserved per marketplace listing",
				},
			},
			Action: func(c *cli.Context) error {
				return cmdInit(c, logger)
			},
		},
		{
			Name:  "conf",
			Usage: "print the current configuration",
			Action: func(c *cli.Context) error {
				return cmdConf(c)
			},
		},
		{
			Name:  "tick",
			Usage: "execute all scheduled tasks that are due and commit a block",
			Action: func(c *cli.Context) error {
				return cmdTick(c, logger)
			},
		},
		{
			Name:  "version",
			Usage: "print the latest committed database version",
			Action: func(c *cli.Context) error {
				return cmdVersion(c)
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func openStore(c *cli.Context) (*leveldb.CommitStore, error) {
	home := c.GlobalString("home")
	db, err := leveldb.NewCommitStore(filepath.Join(home, "data"))
	if err != nil {
		return nil, errors.Wrap(err, "open store")
	}
	if err := db.LoadLatestVersion(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "load latest version")
	}
	return db, nil
}

func cmdInit(c *cli.Context, logger zerolog.Logger) error {
	rawOwner := c.String("owner")
	if rawOwner == "" {
		return errors.Wrap(errors.ErrEmpty, "owner address is required")
	}
	owner, err := hex.DecodeString(rawOwner)
	if err != nil {
		return errors.Wrap(errors.ErrInput, "owner is not a hex address")
	}
	bytePrice, err := coin.ParseHumanFormat(c.String("byte-price"))
	if err != nil {
		return errors.Wrap(err, "byte price")
	}
	baseUnit, err := coin.ParseHumanFormat(c.String("base-unit"))
	if err != nil {
		return errors.Wrap(err, "base unit")
	}

	db, err := openStore(c)
	if err != nil {
		return err
	}
	defer db.Close()

	if version, err := db.LatestVersion(); err != nil {
		return err
	} else if version.Version != 0 {
		return errors.Wrapf(errors.ErrState, "database already initialized at version %d", version.Version)
	}

	conf := collateral.Configuration{
		Owner:            weft.Address(owner),
		BytePrice:        bytePrice,
		BaseUnit:         baseUnit,
		ListingSlotBytes: c.Int64("slot-bytes"),
	}
	if err := collateral.SaveConf(db, conf); err != nil {
		return errors.Wrap(err, "save configuration")
	}
	id, err := db.Commit()
	if err != nil {
		return errors.Wrap(err, "commit")
	}
	logger.Info().
		Int64("version", id.Version).
		Str("owner", conf.Owner.String()).
		Msg("database initialized")
	return nil
}

func cmdConf(c *cli.Context) error {
	db, err := openStore(c)
	if err != nil {
		return err
	}
	defer db.Close()

	conf, err := collateral.LoadConf(db)
	if err != nil {
		return errors.Wrap(err, "load configuration")
	}
	fmt.Printf("owner:              %s\n", conf.Owner)
	fmt.Printf("byte price:         %s\n", conf.BytePrice)
	fmt.Printf("base unit:          %s\n", conf.BaseUnit)
	fmt.Printf("listing slot bytes: %d\n", conf.ListingSlotBytes)
	return nil
}

func cmdTick(c *cli.Context, logger zerolog.Logger) error {
	db, err := openStore(c)
	if err != nil {
		return err
	}
	defer db.Close()

	auth := x.ChainAuth(cron.Authenticator{})
	ctrl := cash.NewController()
	sched := cron.NewScheduler()
	registry := nft.NewReceiverRegistry()
	mkt := market.NewMarketplace(auth, "market")
	registry.RegisterApprovalReceiver(market.MarketAddress(), mkt)

	router := app.NewRouter()
	nft.RegisterRoutes(router, auth, ctrl, sched, registry)
	market.RegisterRoutes(router, auth, ctrl, mkt)
	collateral.RegisterRoutes(router, auth, ctrl, mkt)

	handler := app.ChainDecorators(
		app.NewLogging(logger),
		app.NewRecovery(),
		app.NewSavepoint().OnDeliver(),
	).WithHandler(router)

	decoders := cron.NewDecoders()
	decoders.RegisterMsg(func() weft.Msg { return &nft.ResolveTransferMsg{} })
	decoders.RegisterMsg(func() weft.Msg { return &nft.NotifyApprovalMsg{} })
	ticker := cron.NewTicker(handler, decoders, logger)

	node := app.New(db, handler, ticker, logger)
	version, err := db.LatestVersion()
	if err != nil {
		return err
	}
	tick, err := node.BeginBlock(version.Version+1, time.Now())
	if err != nil {
		return errors.Wrap(err, "begin block")
	}
	id, err := node.CommitBlock()
	if err != nil {
		return errors.Wrap(err, "commit block")
	}
	logger.Info().
		Int64("version", id.Version).
		Int("executed", len(tick.Executed)).
		Msg("tick processed")
	return nil
}

func cmdVersion(c *cli.Context) error {
	db, err := openStore(c)
	if err != nil {
		return err
	}
	defer db.Close()

	id, err := db.LatestVersion()
	if err != nil {
		return err
	}
	fmt.Println(id.Version)
	return nil
}
