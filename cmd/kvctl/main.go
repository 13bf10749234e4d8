// cmd/kvctl is the CLI client for the distributed KV store, built with
// Cobra.
//
// Usage:
//
//	kvctl put mykey "hello world"  --controller http://localhost:5000
//	kvctl get mykey                --controller http://localhost:5000
//	kvctl workers                  --controller http://localhost:5000
//	kvctl status                   --controller http://localhost:5000
//	kvctl interactive               --controller http://localhost:5000
package main

import (
	"context"
	"distributed-kvstore/internal/client"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	controllerAddr string
	timeout        time.Duration
)

func main() {
	root := &cobra.Command{
		Use:   "kvctl",
		Short: "CLI client for the distributed KV store",
	}

	root.PersistentFlags().StringVarP(&controllerAddr, "controller", "c",
		"http://localhost:5000", "Controller address")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second,
		"HTTP request timeout")

	root.AddCommand(putCmd(), getCmd(), workersCmd(), statusCmd(), interactiveCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func putCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put <key> <value>",
		Short: "Store a key-value pair",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(controllerAddr, timeout)
			result, err := c.Put(context.Background(), args[0], args[1])
			if err != nil {
				return err
			}
			prettyPrint(result)
			return nil
		},
	}
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Retrieve a value by key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(controllerAddr, timeout)
			value, err := c.Get(context.Background(), args[0])
			if err == client.ErrNotFound {
				fmt.Printf("key %q not found\n", args[0])
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Println(value)
			return nil
		},
	}
}

func workersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "workers",
		Short: "List registered workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(controllerAddr, timeout)
			ws, err := c.Workers(context.Background())
			if err != nil {
				return err
			}
			prettyPrint(ws)
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show cluster status",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(controllerAddr, timeout)
			st, err := c.Status(context.Background())
			if err != nil {
				return err
			}
			prettyPrint(st)
			return nil
		},
	}
}

func interactiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "interactive",
		Short: "Start an interactive put/get session",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(controllerAddr, timeout)
			return client.RunInteractive(context.Background(), c, os.Stdin, os.Stdout)
		},
	}
}

func prettyPrint(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(v)
		return
	}
	fmt.Println(string(data))
}
