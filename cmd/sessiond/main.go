// cmd/sessiond/main.go

// Command sessiond serves a model inference session over gRPC.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/SyedDaiam9101/session-service/internal/config"
	"github.com/SyedDaiam9101/session-service/internal/engine"
	"github.com/SyedDaiam9101/session-service/internal/engine/onnxrt"
)

const serviceName = "sessiond"

var rootCmd = &cobra.Command{
	Use:           serviceName,
	Short:         "sessiond serves a model inference session",
	Long:          `sessiond loads a model into an inference session and exposes it over gRPC.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Path to config file (optional)")
	rootCmd.PersistentFlags().String("engine", config.EngineONNXRuntime, "Inference engine (onnxruntime, mock)")
	rootCmd.PersistentFlags().String("ort-library", "", "Path to the onnxruntime shared library")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config file named by --config, the environment and
// the flags set on cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configFile, _ := cmd.Flags().GetString("config")
	return config.Load(configFile, cmd.Flags())
}

// engineFactory returns the factory for the configured engine.
func engineFactory(cfg *config.Config) (engine.Factory, error) {
	switch cfg.Engine {
	case config.EngineMock:
		return engine.MockFactory, nil
	case config.EngineONNXRuntime:
		if cfg.ORTLibrary != "" {
			onnxrt.SetSharedLibraryPath(cfg.ORTLibrary)
		}
		return onnxrt.Factory, nil
	default:
		return nil, fmt.Errorf("unknown engine %q", cfg.Engine)
	}
}
