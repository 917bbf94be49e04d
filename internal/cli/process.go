package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/shaiso/Conveyor/internal/domain"
)

// NewProcessCmd создаёт группу команд для просмотра и перепланирования процессов.
func NewProcessCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Inspect processes",
	}

	cmd.AddCommand(
		newProcessShowCmd(clientFn, outputFn),
		newProcessRescheduleCmd(clientFn, outputFn),
	)

	return cmd
}

func newProcessShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var showLog bool

	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show process task list and statuses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			proc, err := client.GetProcess(args[0])
			if err != nil {
				return err
			}

			if out.JSONMode() {
				out.JSON(proc)
				return nil
			}

			out.Success(fmt.Sprintf("Process %s on %s: %s (version %d)",
				proc.ID, proc.NodeName, processState(proc), proc.Version))
			if proc.ParentPosition != "" {
				out.Success("Parent: " + proc.ParentPosition)
			}

			headers := []string{"POSITION", "TYPE", "STATUS", "STARTED", "FINISHED", "LOG"}
			rows := make([][]string, len(proc.Tasks))
			for i, t := range proc.Tasks {
				rows[i] = []string{
					t.Position, t.TaskType, t.Status,
					orDash(t.StartedAt), orDash(t.FinishedAt),
					strconv.Itoa(len(t.Log)),
				}
			}
			out.Table(headers, rows)

			if showLog {
				out.Table([]string{"POSITION", "LEVEL", "CODE", "MESSAGE"}, logRows(proc.Tasks))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showLog, "log", false, "Show task log messages")

	return cmd
}

func newProcessRescheduleCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "reschedule ID FILE",
		Short: "Replace not started tasks of a running process",
		Long: `Replace the tasks that have not started yet with the task list from FILE.
FILE is YAML or JSON: either a list of task definitions or a document with a "tasks" key.
Started tasks are kept; an empty list drops the remaining tasks.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			tasks, err := readTasks(args[1])
			if err != nil {
				return err
			}

			proc, err := client.RescheduleProcess(args[0], tasks)
			if err != nil {
				return err
			}

			if out.JSONMode() {
				out.JSON(proc)
				return nil
			}

			out.Success(fmt.Sprintf("Process %s rescheduled (version %d)", proc.ID, proc.Version))
			rows := make([][]string, len(proc.Tasks))
			for i, t := range proc.Tasks {
				rows[i] = []string{t.Position, t.TaskType, t.Status}
			}
			out.Table([]string{"POSITION", "TYPE", "STATUS"}, rows)
			return nil
		},
	}
}

// readTasks читает список задач из файла.
func readTasks(path string) ([]domain.TaskDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(root.Content) == 0 {
		return nil, fmt.Errorf("%s is empty", path)
	}

	var tasks []domain.TaskDefinition
	switch node := root.Content[0]; node.Kind {
	case yaml.SequenceNode:
		err = node.Decode(&tasks)
	case yaml.MappingNode:
		var doc struct {
			Tasks []domain.TaskDefinition `yaml:"tasks"`
		}
		err = node.Decode(&doc)
		tasks = doc.Tasks
	default:
		return nil, fmt.Errorf("%s: expected a task list or a tasks key", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return tasks, nil
}

func processState(p *ProcessResponse) string {
	switch {
	case !p.Finished:
		return "running"
	case p.Succeeded:
		return "succeeded"
	default:
		return "failed"
	}
}

func logRows(tasks []TaskEntryResponse) [][]string {
	var rows [][]string
	for _, t := range tasks {
		for _, l := range t.Log {
			rows = append(rows, []string{t.Position, l.Level, strconv.Itoa(l.Code), l.Message})
		}
	}
	return rows
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
