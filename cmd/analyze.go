package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/property-research/internal/model"
	"github.com/sells-group/property-research/internal/pipeline"
)

var (
	analyzeAddress string
	analyzeDepth   string
	analyzeFormat  string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run a single property analysis and print the result",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if analyzeAddress == "" && len(args) > 0 {
			analyzeAddress = args[0]
		}
		if analyzeAddress == "" {
			return eris.New("an address is required (--address)")
		}
		if err := checkFormat(analyzeFormat); err != nil {
			return err
		}

		env, err := initApp(cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		depth, err := model.ParseDepth(analyzeDepth, env.DefaultDepth)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.SyncTimeout())
		defer cancel()

		id, err := env.Service.CreateTask(analyzeAddress)
		if err != nil {
			return eris.Wrap(err, "create task")
		}
		result := env.Service.RunPipeline(ctx, id, analyzeAddress, depth)

		return writeEnvelope(cmd.OutOrStdout(), result, analyzeFormat)
	},
}

func checkFormat(format string) error {
	switch format {
	case "json", "yaml", "text":
		return nil
	default:
		return eris.Errorf("unknown output format %q (json, yaml, text)", format)
	}
}

func writeEnvelope(w io.Writer, env *model.Envelope, format string) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(env); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return enc.Close()
	case "text":
		_, err := fmt.Fprint(w, pipeline.RenderText(env))
		return err
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(env)
	}
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeAddress, "address", "", "property address, e.g. \"1600 Vine St\"")
	analyzeCmd.Flags().StringVar(&analyzeDepth, "depth", "", "analysis depth: basic, standard or comprehensive (default from config)")
	analyzeCmd.Flags().StringVarP(&analyzeFormat, "format", "f", "json", "output format: json, yaml or text")
	rootCmd.AddCommand(analyzeCmd)
}
