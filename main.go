package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/tootsite/notify"
	"github.com/deemkeen/tootsite/site"
	"github.com/deemkeen/tootsite/util"
	"github.com/deemkeen/tootsite/web"
	"github.com/spf13/cobra"
)

type options struct {
	config  string
	output  string
	debug   bool
	wayback bool
	serve   bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Error("tootsite failed", "err", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "tootsite [flags] ARCHIVE",
		Short:         "Turn a Mastodon export archive into a static website",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, opts, args[0])
		},
	}
	root.PersistentFlags().StringVarP(&opts.config, "config", "c", "", "config file (default ./tootsite.yaml or ~/.config/tootsite/tootsite.yaml)")
	root.PersistentFlags().BoolVarP(&opts.debug, "debug", "d", false, "verbose logging")
	root.Flags().StringVarP(&opts.output, "output", "o", "output", "output directory")
	root.Flags().BoolVarP(&opts.wayback, "wayback", "w", false, "ask the Wayback Machine to archive every public post")
	root.Flags().BoolVar(&opts.serve, "serve", false, "preview the site after building it")

	root.AddCommand(newServeCmd(opts), newVersionCmd())
	return root
}

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve [DIR]",
		Short: "Preview a generated site",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, logger, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			dir := conf.Conf.Output
			if len(args) == 1 {
				dir = args[0]
			}
			return web.Serve(cmd.Context(), conf.Conf.Serve.Addr, dir, logger)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), util.GetNameAndVersion())
		},
	}
}

// setup reads the configuration, applies the command line on top and builds the logger
func setup(cmd *cobra.Command, opts *options) (*util.AppConfig, *log.Logger, error) {
	conf, err := util.ReadConf(opts.config)
	if err != nil {
		return nil, nil, err
	}
	if opts.debug {
		conf.Conf.Log.Level = "debug"
	}
	if f := cmd.Flags().Lookup("output"); f != nil && f.Changed {
		conf.Conf.Output = opts.output
	}
	if opts.wayback {
		conf.Conf.Wayback.Enabled = true
	}

	logger, err := util.NewLogger(cmd.ErrOrStderr(), conf.Conf.Log)
	if err != nil {
		return nil, nil, err
	}
	logger = logger.With("run", util.NewRunID())
	log.SetDefault(logger)

	logger.Debug("Configuration", "conf", util.PrettyPrint(conf))
	return conf, logger, nil
}

func runBuild(cmd *cobra.Command, opts *options, archivePath string) error {
	conf, logger, err := setup(cmd, opts)
	if err != nil {
		return err
	}

	renderer, err := web.NewTemplateRenderer(conf.Conf.Site)
	if err != nil {
		return err
	}

	var notifier notify.Notifier
	if conf.Conf.Wayback.Enabled {
		notifier = notify.NewWayback(conf.Conf.Wayback, logger)
	}

	builder := site.NewBuilder(renderer, notifier, conf.Conf.Site, logger)
	report, err := builder.Build(cmd.Context(), archivePath, conf.Conf.Output)
	if err != nil {
		return err
	}

	logger.Info("Site ready",
		"output", conf.Conf.Output,
		"pages", report.Written,
		"attachments", report.Attachments,
		"skipped", report.Posts-report.Public)
	if report.Collisions > 0 {
		logger.Warn("Some posts share an output path", "collisions", report.Collisions)
	}
	if notifier != nil {
		logger.Info("Wayback notifications", "ok", report.Notified, "failed", report.NotifyFailed)
	}

	if opts.serve {
		return web.Serve(cmd.Context(), conf.Conf.Serve.Addr, conf.Conf.Output, logger)
	}
	return nil
}
