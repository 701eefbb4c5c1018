package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/janael-pinheiro/device-sync-sdk-golang/pkg/engine"
	"github.com/janael-pinheiro/device-sync-sdk-golang/pkg/entities"
	"github.com/janael-pinheiro/device-sync-sdk-golang/pkg/logging"
	"github.com/janael-pinheiro/device-sync-sdk-golang/pkg/utils"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const commandTimeout = 10 * time.Second

type options struct {
	configPath string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:          "devicesync",
		Short:        "Keep device state in sync and send device commands",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "config.yaml", "configuration file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level, overrides the configuration")

	root.AddCommand(
		newRunCommand(opts),
		newSendCommand(opts),
		newHistoryCommand(opts),
		newDevicesCommand(opts),
	)
	return root
}

// load reads the configuration and builds the logger factory for it.
func (o *options) load() (entities.Configuration, *logging.Logrus, error) {
	conf, err := utils.LoadConfiguration(o.configPath)
	if err != nil {
		return conf, nil, err
	}
	if o.logLevel != "" {
		conf.Log.Level = o.logLevel
	}
	logs := logging.NewLogrus(conf.Log.Level, os.Stderr).WithFormat(conf.Log.Format)
	return conf, logs, nil
}

func (o *options) newEngine() (*engine.Engine, *logging.Logrus, error) {
	conf, logs, err := o.load()
	if err != nil {
		return nil, nil, err
	}
	e, err := engine.NewEngine(conf, o.configPath, logs)
	return e, logs, err
}

func newRunCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Synchronize device state until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, logs, err := opts.newEngine()
			if err != nil {
				return err
			}
			log := logs.Get("main")

			e.Registry().SubscribeDeviceChanged(func(device entities.Device) {
				log.WithFields(logrus.Fields{"deviceId": device.ID, "state": device.State}).Info(device.StatusText())
			})
			e.Tracker().SubscribeAlarmRaised(func(alarm entities.Alarm) {
				log.WithFields(logrus.Fields{"deviceId": alarm.DeviceID, "severity": alarm.Severity}).Warn(alarm.Message)
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := e.Start(ctx); err != nil {
				if errors.Cause(err) != engine.ErrBrokerUnavailable {
					return err
				}
				log.WithError(err).Error("running without the message broker")
			}
			<-ctx.Done()
			log.Info("shutting down")
			return e.Close()
		},
	}
}

func newSendCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "send <deviceId> <action> [key=value ...]",
		Short: "Send one command, falling back to the broker when the device API fails",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			parameters, err := parseParameters(args[2:])
			if err != nil {
				return err
			}
			e, logs, err := opts.newEngine()
			if err != nil {
				return err
			}
			defer e.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			if err := e.InitCommands(ctx); err != nil {
				logs.Get("main").WithError(err).Warn("broker fallback unavailable")
			}

			command := entities.Command{Action: args[1], Parameters: parameters}
			if err := e.Send(ctx, args[0], command); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s sent to %s\n", command.Action, args[0])
			return nil
		},
	}
}

func newHistoryCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "history <deviceId>",
		Short: "Print the history the device gateway keeps for a device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, _, err := opts.newEngine()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()

			entries, err := e.DeviceHistory(ctx, args[0])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIMESTAMP\tEVENT\tDETAILS")
			for _, entry := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\n", entry.Timestamp.Format(time.RFC3339), entry.Event, entry.Details)
			}
			return w.Flush()
		},
	}
}

func newDevicesCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "Print the configured device table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, _, err := opts.load()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tTYPE\tENDPOINT")
			for _, device := range conf.Devices {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", device.ID, device.Name, device.Type, device.Endpoint)
			}
			return w.Flush()
		},
	}
}

// parseParameters turns key=value arguments into command parameters.
func parseParameters(args []string) (map[string]entities.Value, error) {
	parameters := make(map[string]entities.Value, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, errors.Errorf("parameter %q is not key=value", arg)
		}
		parameters[key] = entities.ParseValue(value)
	}
	return parameters, nil
}
