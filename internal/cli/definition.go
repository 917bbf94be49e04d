package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/process"
)

// NewDefinitionCmd создаёт группу команд для определений процессов.
func NewDefinitionCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "definition",
		Short: "Manage process definitions",
	}

	cmd.AddCommand(
		newDefinitionListCmd(clientFn, outputFn),
		newDefinitionShowCmd(clientFn, outputFn),
		newDefinitionValidateCmd(outputFn),
	)

	return cmd
}

func newDefinitionListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List process definitions registered on a node",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			defs, err := client.ListDefinitions()
			if err != nil {
				return err
			}

			headers := []string{"MESSAGE", "TYPE", "TASKS"}
			rows := make([][]string, len(defs))
			for i, d := range defs {
				typ, _ := d.Definition["process_type"].(string)
				tasks, _ := d.Definition["tasks"].([]any)
				rows[i] = []string{d.MessageName, typ, strconv.Itoa(len(tasks))}
			}

			out.Print(headers, rows, defs)
			return nil
		},
	}
}

func newDefinitionShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show MESSAGE_NAME",
		Short: "Show the definition started by a message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			def, err := client.GetDefinition(args[0])
			if err != nil {
				return err
			}

			if out.JSONMode() {
				out.JSON(def)
				return nil
			}
			out.YAML(def.Definition)
			return nil
		},
	}
}

func newDefinitionValidateCmd(outputFn func() *Output) *cobra.Command {
	var payloadTypes []string

	cmd := &cobra.Command{
		Use:   "validate FILE",
		Short: "Validate process definitions offline",
		Long: `Validate a YAML file with process definitions keyed by start message name:

  processing-message-customer-data-collected:
    process_type: linear_messaging
    tasks:
      - task_type: process_data
        target: warehouse
        allowed_types: [Customer]

A file with a single definition (process_type at the top level) is accepted too.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			defs, err := readDefinitions(args[0])
			if err != nil {
				return err
			}

			var types domain.PayloadTypes
			if len(payloadTypes) > 0 {
				types = domain.NewPayloadTypeSet(payloadTypes...)
			}

			if _, err := process.NewFactory(defs, types); err != nil {
				for _, e := range multierr.Errors(err) {
					out.Error(e.Error())
				}
				return fmt.Errorf("%d of %d definitions are invalid", len(multierr.Errors(err)), len(defs))
			}

			out.Success(fmt.Sprintf("%d definitions are valid", len(defs)))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&payloadTypes, "types", nil, "Known payload types (skip type checks if empty)")

	return cmd
}

// readDefinitions читает определения из YAML-файла.
func readDefinitions(path string) (map[string]domain.ProcessDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var single domain.ProcessDefinition
	if err := yaml.Unmarshal(data, &single); err == nil && single.ProcessType != "" {
		return map[string]domain.ProcessDefinition{path: single}, nil
	}

	var defs map[string]domain.ProcessDefinition
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(defs) == 0 {
		return nil, fmt.Errorf("%s contains no definitions", path)
	}
	return defs, nil
}
