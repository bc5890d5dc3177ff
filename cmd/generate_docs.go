package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/calassist/internal/calendar"
	"github.com/teemow/calassist/internal/tools/calendar_tools"
)

func newGenerateDocsCmd() *cobra.Command {
	var (
		outputFile string
	)

	cmd := &cobra.Command{
		Use:   "generate-docs",
		Short: "Generate MCP tool documentation",
		Long: `Generate markdown documentation for all available MCP tools.
This command introspects the registered tools and outputs their documentation
in markdown format, ensuring the documentation is always accurate and in sync
with the actual tool implementations.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerateDocs(cmd.OutOrStdout(), outputFile)
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

// docsBackend satisfies the tool dependencies without credentials or a
// model. Only the tool definitions are read during doc generation.
type docsBackend struct{}

func (docsBackend) ListUpcoming(context.Context, int) ([]calendar.Event, error) {
	return nil, calendar.ErrUnavailable
}

func (docsBackend) GetEvent(context.Context, string) (*calendar.Event, error) {
	return nil, calendar.ErrUnavailable
}

func (docsBackend) CreateEvent(context.Context, calendar.EventInput) (*calendar.Event, error) {
	return nil, calendar.ErrUnavailable
}

func (docsBackend) MarkImportant(context.Context, string) (*calendar.Event, error) {
	return nil, calendar.ErrUnavailable
}

func (docsBackend) Location() *time.Location { return time.UTC }

func (docsBackend) Chat(context.Context, string) string { return "" }

func listToolDefinitions() ([]mcp.Tool, error) {
	mcpSrv := mcpserver.NewMCPServer("calassist", version,
		mcpserver.WithToolCapabilities(true),
	)

	if err := calendar_tools.RegisterCalendarTools(mcpSrv, calendar_tools.Deps{
		Calendar:  docsBackend{},
		Assistant: docsBackend{},
	}); err != nil {
		return nil, fmt.Errorf("failed to register calendar tools: %w", err)
	}

	serverTools := mcpSrv.ListTools()

	// Extract mcp.Tool from each ServerTool
	tools := make([]mcp.Tool, 0, len(serverTools))
	for _, serverTool := range serverTools {
		tools = append(tools, serverTool.Tool)
	}
	return tools, nil
}

func runGenerateDocs(w io.Writer, outputFile string) error {
	tools, err := listToolDefinitions()
	if err != nil {
		return err
	}

	markdown := generateToolsMarkdown(tools)

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(markdown), 0644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Documentation written to: %s\n", outputFile)
		return nil
	}

	_, err = io.WriteString(w, markdown)
	return err
}

func generateToolsMarkdown(tools []mcp.Tool) string {
	var sb strings.Builder

	sb.WriteString("# MCP Tools Reference\n\n")
	sb.WriteString("Tools served by `calassist mcp`. Calendar tools need a stored token; ")
	sb.WriteString("authorize once through the web service at `/authorize`.\n\n")
	sb.WriteString("**Note:** This documentation is generated from the tool definitions by `calassist generate-docs`.\n\n")

	byCategory := groupToolsByCategory(tools)
	categories := make([]string, 0, len(byCategory))
	for category := range byCategory {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	sb.WriteString("## Table of Contents\n\n")
	for _, category := range categories {
		anchor := strings.ToLower(strings.ReplaceAll(category, " ", "-"))
		fmt.Fprintf(&sb, "- [%s](#%s)\n", category, anchor)
	}
	sb.WriteString("\n")

	for _, category := range categories {
		categoryTools := byCategory[category]
		sort.Slice(categoryTools, func(i, j int) bool {
			return categoryTools[i].Name < categoryTools[j].Name
		})

		fmt.Fprintf(&sb, "## %s\n\n", category)
		for _, tool := range categoryTools {
			writeToolMarkdown(&sb, tool)
		}
	}

	return sb.String()
}

func groupToolsByCategory(tools []mcp.Tool) map[string][]mcp.Tool {
	categories := make(map[string][]mcp.Tool)
	for _, tool := range tools {
		category := getCategoryFromToolName(tool.Name)
		categories[category] = append(categories[category], tool)
	}
	return categories
}

func getCategoryFromToolName(name string) string {
	prefix, _, _ := strings.Cut(name, "_")
	switch prefix {
	case "calendar":
		return "Calendar Tools"
	case "assistant":
		return "Assistant Tools"
	default:
		return "Other"
	}
}

func writeToolMarkdown(sb *strings.Builder, tool mcp.Tool) {
	fmt.Fprintf(sb, "### %s\n\n", tool.Name)

	if tool.Description != "" {
		fmt.Fprintf(sb, "%s\n\n", tool.Description)
	}

	if hints := toolHints(tool.Annotations); len(hints) > 0 {
		fmt.Fprintf(sb, "_%s_\n\n", strings.Join(hints, ", "))
	}

	if len(tool.InputSchema.Properties) == 0 {
		return
	}

	names := make([]string, 0, len(tool.InputSchema.Properties))
	for name := range tool.InputSchema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	sb.WriteString("**Arguments:**\n")
	for _, name := range names {
		prop, ok := tool.InputSchema.Properties[name].(map[string]any)
		if !ok {
			continue
		}

		presence := "optional"
		if slices.Contains(tool.InputSchema.Required, name) {
			presence = "required"
		}

		desc, _ := prop["description"].(string)
		if desc == "" {
			desc = propertyType(prop) + " parameter"
		}
		fmt.Fprintf(sb, "- `%s` (%s, %s): %s\n", name, presence, propertyType(prop), desc)
	}
	sb.WriteString("\n")
}

func toolHints(a mcp.ToolAnnotation) []string {
	var hints []string
	if a.ReadOnlyHint != nil && *a.ReadOnlyHint {
		hints = append(hints, "read-only")
	}
	if a.IdempotentHint != nil && *a.IdempotentHint {
		hints = append(hints, "idempotent")
	}
	return hints
}

func propertyType(prop map[string]any) string {
	if t, ok := prop["type"].(string); ok {
		return t
	}
	return "any"
}
