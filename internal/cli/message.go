package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewMessageCmd создаёт группу команд для отправки сообщений.
func NewMessageCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "message",
		Short: "Send messages to a node",
	}

	cmd.AddCommand(
		newMessageSendCmd(clientFn, outputFn),
	)

	return cmd
}

func newMessageSendCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "send FILE",
		Short: "Send a message envelope from a JSON or YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			envelope, err := readEnvelope(args[0])
			if err != nil {
				return err
			}

			accepted, err := client.SendMessage(envelope)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Message accepted: %s", accepted.UUID))
			out.Print(
				[]string{"UUID", "NAME", "TARGET"},
				[][]string{{accepted.UUID, accepted.Name, accepted.Target}},
				accepted,
			)
			return nil
		},
	}
}

// readEnvelope читает конверт из файла. JSON — подмножество YAML,
// поэтому файл разбирается как YAML и перекодируется в JSON.
func readEnvelope(path string) (json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%s is empty", path)
	}
	if name, _ := doc["name"].(string); name == "" {
		return nil, fmt.Errorf("%s: message name is required", path)
	}

	envelope, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}
	return envelope, nil
}
