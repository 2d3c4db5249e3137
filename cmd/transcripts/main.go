// Command transcripts is a CLI for inspecting conversation transcripts
// stored in SQLite by persistence/sqlitestore.
//
// Usage:
//
//	transcripts list --db path/to/transcripts.db
//	transcripts show --db path/to/transcripts.db --conversation ID [--format json|jsonl|text]
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/loopkit/loopkit/persistence"
	"github.com/loopkit/loopkit/persistence/sqlitestore"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch cmd := os.Args[1]; cmd {
	case "list":
		err = runList(os.Args[2:], os.Stdout)
	case "show":
		err = runShow(os.Args[2:], os.Stdout)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `transcripts - inspect conversation transcripts stored in SQLite

Usage:
  transcripts list --db <path>
      List all conversation IDs in the database

  transcripts show --db <path> --conversation <id> [--format json|jsonl|text]
      Show a conversation's messages (default format: text)

Examples:
  transcripts list --db ./transcripts.db
  transcripts show --db ./transcripts.db --conversation work
  transcripts show --db ./transcripts.db --conversation work --format jsonl | jq .
`)
}

func runList(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	dbPath := fs.String("db", "", "path to SQLite database")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dbPath == "" {
		return fmt.Errorf("--db is required")
	}

	store, err := sqlitestore.New(*dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	ids, err := store.ListConversations()
	if err != nil {
		return fmt.Errorf("list conversations: %w", err)
	}
	for _, id := range ids {
		fmt.Fprintln(out, id)
	}
	return nil
}

func runShow(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	dbPath := fs.String("db", "", "path to SQLite database")
	conversation := fs.String("conversation", "", "conversation ID to display")
	format := fs.String("format", "text", "output format: json, jsonl, or text")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dbPath == "" {
		return fmt.Errorf("--db is required")
	}
	if *conversation == "" {
		return fmt.Errorf("--conversation is required")
	}

	store, err := sqlitestore.New(*dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	records, err := store.Records(*conversation)
	if err != nil {
		return fmt.Errorf("load transcript: %w", err)
	}
	if len(records) == 0 {
		fmt.Fprintf(os.Stderr, "no messages found for conversation: %s\n", *conversation)
		return nil
	}

	return render(out, records, *format)
}

func render(out io.Writer, records []persistence.Record, format string) error {
	enc := json.NewEncoder(out)
	switch format {
	case "json":
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	case "jsonl":
		for _, r := range records {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		return nil
	case "text":
		for _, r := range records {
			msg := r.Message
			fmt.Fprintf(out, "[%s]\n", msg.Role)
			if text := msg.Text(); text != "" {
				fmt.Fprintln(out, text)
			}
			for _, tc := range msg.ToolCalls() {
				fmt.Fprintf(out, "-> tool call %s(%s) [%s]\n", tc.Name, string(tc.Arguments), tc.ID)
			}
			for _, tr := range msg.ToolResults() {
				fmt.Fprintf(out, "<- tool result %s: %s [%s]\n", tr.Name, tr.Result, tr.ID)
			}
			fmt.Fprintln(out)
		}
		return nil
	default:
		return fmt.Errorf("--format must be 'json', 'jsonl', or 'text'")
	}
}
