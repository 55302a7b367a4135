package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/adanyl0v/go-todo-collections/internal/client"
)

const (
	apiURLEnv     = "TODO_API_URL"
	defaultAPIURL = "http://localhost:3000"
)

var Version = "dev"

type options struct {
	apiURL  string
	timeout time.Duration
	output  string
}

func main() {
	err := newRootCmd().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "todoctl",
		Short:         "Manage collections and tasks of a to-do API",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch opts.output {
			case outputYAML, outputJSON:
				return nil
			default:
				return fmt.Errorf("unknown output format %q", opts.output)
			}
		},
	}

	apiURL := os.Getenv(apiURLEnv)
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	rootCmd.PersistentFlags().StringVar(&opts.apiURL, "url", apiURL, "API base URL (env "+apiURLEnv+")")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", client.DefaultTimeout, "Request timeout")
	rootCmd.PersistentFlags().StringVarP(&opts.output, "output", "o", outputYAML, "Output format (yaml, json)")

	rootCmd.AddCommand(collectionsCmd(opts))
	rootCmd.AddCommand(tasksCmd(opts))
	rootCmd.AddCommand(subtasksCmd(opts))
	rootCmd.AddCommand(boardCmd(opts))
	rootCmd.AddCommand(healthCmd(opts))

	return rootCmd
}

func (o *options) client() *client.Client {
	return client.New(o.apiURL, client.WithTimeout(o.timeout))
}

func healthCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the API and its storage are reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := opts.client().Health(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}
