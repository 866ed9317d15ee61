// Package cmd wires the communication-service core's command-line
// entrypoint: config/log/pid bootstrap, channel factory startup, the
// calculation scheduler and the introspection HTTP API, the same
// responsibilities the teacher's cmd/root.go and cmd/server.go split
// across a persistent root command and a "server" subcommand.
package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "comsrv",
	Short: "Industrial telemetry gateway communication-service core",
	Long: `comsrv polls Modbus TCP/RTU channels, publishes decoded telemetry
onto a key/value bus, evaluates registered calculations on their
triggers, and exposes an unauthenticated introspection HTTP API.`,
}

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default ./config.yaml)")
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
}

func WorkDir() string {
	dir, _ := os.Getwd()
	return dir
}

func ExeDir() string {
	exe, _ := os.Executable()
	return filepath.Dir(exe)
}
