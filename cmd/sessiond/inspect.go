// cmd/sessiond/inspect.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/SyedDaiam9101/session-service/internal/engine"
	"github.com/SyedDaiam9101/session-service/internal/session"
)

type valueDoc struct {
	Name  string `yaml:"name"`
	Type  string `yaml:"type"`
	Shape string `yaml:"shape"`
}

type inspectDoc struct {
	Metadata engine.ModelMetadata `yaml:"metadata"`
	Inputs   []valueDoc           `yaml:"inputs"`
	Outputs  []valueDoc           `yaml:"outputs"`
}

func valueDocs(infos []engine.ValueInfo) []valueDoc {
	docs := make([]valueDoc, len(infos))
	for i, info := range infos {
		docs[i] = valueDoc{Name: info.Name, Type: info.Type.String(), Shape: info.Shape.String()}
	}
	return docs
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <model>",
	Short: "Print the model signature and metadata",
	Long:  `Loads the model structure without preparing it for inference and prints its inputs, outputs and metadata as yaml.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		factory, err := engineFactory(cfg)
		if err != nil {
			return err
		}

		//lint:ignore SA1019 inspection only needs the structure
		s, err := session.NewPreparsed(engine.PreparsedModel{Path: args[0]}, &cfg.Session, factory)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", args[0], err)
		}
		defer s.Close()

		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(inspectDoc{
			Metadata: s.ModelMeta(),
			Inputs:   valueDocs(s.Inputs()),
			Outputs:  valueDocs(s.Outputs()),
		})
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
