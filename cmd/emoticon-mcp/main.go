package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/emoticonlab/kakao-emoticon-mcp/internal/cli"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/mcp"
)

var version = mcp.ServerVersion

func main() {
	rootCmd := &cobra.Command{
		Use:   "emoticon-mcp",
		Short: "KakaoTalk emoticon production MCP server",
		Long: `emoticon-mcp - MCP server automating KakaoTalk emoticon production.

Plan a set, generate it with Hugging Face models in the background, preview it
in a KakaoTalk-style chat, package it as a submission ZIP and check it against
the submission rules.`,
		Version:      version,
		SilenceUsage: true,
	}

	// Add commands
	rootCmd.AddCommand(cli.NewServeCmd())
	rootCmd.AddCommand(cli.NewStdioCmd())
	rootCmd.AddCommand(cli.NewCheckCmd())
	rootCmd.AddCommand(cli.NewSpecsCmd())

	// Execute
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
