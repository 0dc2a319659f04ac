package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/wardlog/internal/extraction"
)

// extractCmd runs the field extractor locally
var extractCmd = &cobra.Command{
	Use:   "extract [file]",
	Short: "Show the record a message would produce",
	Long: `Run the field extractor on a message and print the record as JSON.
Nothing is stored and no network access is needed.

Examples:
  # Extract from a file
  wardlog extract message.txt

  # Extract from stdin
  printf '#HN1001\nName: Jane Doe\nAge: 34' | wardlog extract -`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExtract,
}

func runExtract(cmd *cobra.Command, args []string) error {
	content, err := readInput(cmd, args)
	if err != nil {
		return err
	}
	text := string(content)

	if !extraction.HasMarker(text) {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: message does not start with %s and would be ignored\n", extraction.Marker)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(extraction.Extract(text)); err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	return nil
}

// readInput reads the message from the named file, or stdin for "-" or no argument.
func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	var content []byte
	var err error

	if len(args) == 0 || args[0] == "-" {
		content, err = io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read from stdin: %w", err)
		}
	} else {
		content, err = os.ReadFile(args[0])
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", args[0], err)
		}
	}

	if len(content) == 0 {
		return nil, fmt.Errorf("no message to read")
	}
	return content, nil
}
