// cmd/tools/flowctl/main.go
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"homewise/internal/common/logger"
	"homewise/internal/common/validation"
	"homewise/internal/flows/chat"
	maintenancerecommendations "homewise/internal/flows/maintenance-recommendations"
	predictivemaintenance "homewise/internal/flows/predictive-maintenance"
	"homewise/internal/prompt"
	"homewise/internal/repository"
	"homewise/internal/schemas"
	"homewise/internal/tools"
	"homewise/pkg/registry"
)

// flowDef ties a flow id to its input schema, template and input decoder.
type flowDef struct {
	schema   validation.JSONSchema
	template string
	decode   func(raw []byte) (any, *validation.ValidationResult, error)
}

var flowDefs = map[string]flowDef{
	predictivemaintenance.TaskType: {
		schema:   schemas.PredictiveMaintenanceInput,
		template: prompt.PredictMaintenance,
		decode: func(raw []byte) (any, *validation.ValidationResult, error) {
			return decodeAs[predictivemaintenance.Input](schemas.PredictiveMaintenanceInput, raw)
		},
	},
	maintenancerecommendations.TaskType: {
		schema:   schemas.MaintenanceRecommendationsInput,
		template: prompt.MaintenanceRecommendations,
		decode: func(raw []byte) (any, *validation.ValidationResult, error) {
			return decodeAs[maintenancerecommendations.Input](schemas.MaintenanceRecommendationsInput, raw)
		},
	},
	chat.TaskType: {
		schema:   schemas.ChatInput,
		template: prompt.Chat,
		decode: func(raw []byte) (any, *validation.ValidationResult, error) {
			return decodeAs[chat.Input](schemas.ChatInput, raw)
		},
	},
}

func decodeAs[T any](schema validation.JSONSchema, raw []byte) (any, *validation.ValidationResult, error) {
	out, result, err := validation.Decode[T](schema, raw)
	if out == nil {
		return nil, result, err
	}
	return out, result, err
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "flowctl",
		Short:        "Inspect and exercise the homewise AI flows offline",
		SilenceUsage: true,
	}
	root.AddCommand(newCatalogCmd(), newValidateCmd(), newRenderCmd(), newSeedCmd())
	return root
}

func newCatalogCmd() *cobra.Command {
	var format, out string
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Print the flow and tool catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			toolRegistry := tools.NewDefaultRegistry(tools.NewStaticGeocoder(logger.NewNoOpLogger()))
			catalog := registry.Build(toolRegistry, nil, 60*time.Second)

			if out != "" {
				if err := catalog.Save(out); err != nil {
					return fmt.Errorf("save catalog: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Catalog written to %s\n", out)
				return nil
			}

			var (
				data []byte
				err  error
			)
			switch format {
			case "yaml":
				data, err = catalog.EncodeYAML()
			case "json":
				data, err = json.MarshalIndent(catalog, "", "  ")
			default:
				return fmt.Errorf("unknown format %q (json or yaml)", format)
			}
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "output format: json or yaml")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write to this file instead of stdout (.json, .yaml)")
	return cmd
}

func newValidateCmd() *cobra.Command {
	var inputPath string
	cmd := &cobra.Command{
		Use:   "validate <flow>",
		Short: "Check an input document against a flow's input schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := lookupFlow(args[0])
			if err != nil {
				return err
			}
			raw, err := readInput(cmd.InOrStdin(), inputPath)
			if err != nil {
				return err
			}
			result := validation.Validate(def.schema, json.RawMessage(raw))
			if !result.Valid {
				bad := color.New(color.FgRed)
				for _, v := range result.Errors {
					bad.Fprint(cmd.OutOrStdout(), v.Code)
					fmt.Fprintf(cmd.OutOrStdout(), " %s: %s\n", v.Field, v.Message)
				}
				return fmt.Errorf("%d violation(s)", len(result.Errors))
			}
			color.New(color.FgGreen).Fprintln(cmd.OutOrStdout(), "valid")
			return nil
		},
	}
	cmd.Flags().StringVarP(&inputPath, "input", "i", "-", "input JSON file, - for stdin")
	return cmd
}

func newRenderCmd() *cobra.Command {
	var inputPath, templatesDir, templateName string
	cmd := &cobra.Command{
		Use:   "render <flow>",
		Short: "Render the prompt a flow would send for an input document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := lookupFlow(args[0])
			if err != nil {
				return err
			}
			raw, err := readInput(cmd.InOrStdin(), inputPath)
			if err != nil {
				return err
			}
			input, result, err := def.decode(raw)
			if err != nil {
				return err
			}
			if !result.Valid {
				return fmt.Errorf("invalid input: %s", strings.Join(result.GetErrorMessages(), "; "))
			}

			renderer, err := prompt.NewRenderer(templatesDir)
			if err != nil {
				return err
			}
			name := def.template
			if templateName != "" {
				name = templateName
			}
			text, err := renderer.Render(name, input)
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), text)
			return err
		},
	}
	cmd.Flags().StringVarP(&inputPath, "input", "i", "-", "input JSON file, - for stdin")
	cmd.Flags().StringVar(&templatesDir, "templates", "", "directory of *.tmpl files overriding the built-in templates")
	cmd.Flags().StringVarP(&templateName, "template", "t", "", "template name, defaults to the flow's canonical template")
	return cmd
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file>",
		Short: "Load a YAML seed file and summarize it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := repository.NewMemoryStore()
			if err := store.LoadSeed(args[0]); err != nil {
				return err
			}
			machines, err := store.ListMachines(cmd.Context())
			if err != nil {
				return err
			}
			tasks, err := store.ListTasks(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "machines: %d\ntasks: %d\n", len(machines), len(tasks))
			return nil
		},
	}
}

func lookupFlow(id string) (flowDef, error) {
	def, ok := flowDefs[id]
	if !ok {
		names := make([]string, 0, len(flowDefs))
		for name := range flowDefs {
			names = append(names, name)
		}
		sort.Strings(names)
		return flowDef{}, fmt.Errorf("unknown flow %q (one of %s)", id, strings.Join(names, ", "))
	}
	return def, nil
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}
