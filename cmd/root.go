/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sergw",
	Short: "Share one serial device with many TCP clients",
	Long: `sergw bridges a serial device to a TCP listener.

Every byte read from the device is sent to every connected client, and
bytes written by clients are forwarded to the device in arrival order.
The device is reopened automatically when it is unplugged, and a client
that cannot keep up is disconnected instead of slowing down the others.

Settings can come from flags, SERGW_* environment variables (SERGW_BAUD,
SERGW_SERIAL, ...) or a config file passed with --config, in that order
of precedence.

Example usage:
  sergw ports
  sergw listen --serial /dev/ttyUSB0 --baud 9600
  sergw chat --host 127.0.0.1:5656`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI and exits with a status derived from the error
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(ExitCode(err))
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file (yaml, toml or json)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format: text, json")
	rootCmd.PersistentFlags().String("log-file", "", "Write logs to this file instead of stderr")
}

// settings layers a command's flags over SERGW_* environment variables and
// the optional config file. Keys are the long flag names.
func settings(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("SERGW")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}
	if err := v.BindPFlags(cmd.InheritedFlags()); err != nil {
		return nil, err
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}
	return v, nil
}

// newLogger builds the process logger. fallback is used when --log-file is
// empty; an empty fallback means stderr.
func newLogger(v *viper.Viper, fallback string) (*logrus.Logger, io.Closer, error) {
	log := logrus.New()

	level, err := logrus.ParseLevel(v.GetString("log-level"))
	if err != nil {
		return nil, nil, fmt.Errorf("invalid --log-level: %w", err)
	}
	log.SetLevel(level)

	switch strings.ToLower(v.GetString("log-format")) {
	case "text", "":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, nil, fmt.Errorf("invalid --log-format %q (valid: text, json)", v.GetString("log-format"))
	}

	path := v.GetString("log-file")
	if path == "" {
		path = fallback
	}
	if path == "" {
		log.SetOutput(os.Stderr)
		return log, io.NopCloser(nil), nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	log.SetOutput(f)
	return log, f, nil
}
