package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// RunInteractive implements a small REPL over a Client: put/get plus the
// housekeeping commands workers/status/exit. It blocks until EOF, a read
// error, or an "exit"/"quit" command. ctx is passed to each client call;
// canceling it does not end the loop.
func RunInteractive(ctx context.Context, c *Client, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, strings.Repeat("=", 60))
	fmt.Fprintln(out, "Distributed Key-Value Store Client")
	fmt.Fprintln(out, strings.Repeat("=", 60))
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  put <key> <value>  - Store a key-value pair")
	fmt.Fprintln(out, "  get <key>          - Retrieve a value")
	fmt.Fprintln(out, "  workers            - List registered workers")
	fmt.Fprintln(out, "  status             - Show cluster status")
	fmt.Fprintln(out, "  exit               - Exit client")
	fmt.Fprintln(out, strings.Repeat("=", 60))

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "\n> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.SplitN(line, " ", 3)
		cmd := strings.ToLower(parts[0])

		switch cmd {
		case "exit", "quit":
			fmt.Fprintln(out, "Goodbye!")
			return nil

		case "put":
			if len(parts) < 3 {
				fmt.Fprintln(out, "Usage: put <key> <value>")
				continue
			}
			result, err := c.Put(ctx, parts[1], parts[2])
			if err != nil {
				fmt.Fprintf(out, "PUT failed: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "PUT successful: %s = %s (replicas_written=%d)\n",
				parts[1], parts[2], result.ReplicasWritten)

		case "get":
			if len(parts) < 2 {
				fmt.Fprintln(out, "Usage: get <key>")
				continue
			}
			value, err := c.Get(ctx, parts[1])
			if err == ErrNotFound {
				fmt.Fprintf(out, "key %q not found\n", parts[1])
				continue
			}
			if err != nil {
				fmt.Fprintf(out, "GET failed: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "%s = %s\n", parts[1], value)

		case "workers":
			ws, err := c.Workers(ctx)
			if err != nil {
				fmt.Fprintf(out, "failed to list workers: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "%+v\n", ws)

		case "status":
			st, err := c.Status(ctx)
			if err != nil {
				fmt.Fprintf(out, "failed to get status: %v\n", err)
				continue
			}
			fmt.Fprintf(out, "%+v\n", st)

		default:
			fmt.Fprintf(out, "unknown command: %s\n", cmd)
		}
	}
}
