package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the calassist application
var rootCmd = &cobra.Command{
	Use:   "calassist",
	Short: "Chat with a language model to manage your calendar",
	Long: `calassist is a small web service that lets you chat with a language model
to list upcoming events, create events and mark events as important on a
connected Google Calendar.

It can run as:
  - A web service with a chat UI (default)
  - An MCP (Model Context Protocol) server for desktop AI assistants`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "calassist version %s\n" .Version}}`)

	// Without a subcommand the web service starts
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMCPCmd())
	rootCmd.AddCommand(newAuthStatusCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
	rootCmd.AddCommand(newVersionCmd())
}
