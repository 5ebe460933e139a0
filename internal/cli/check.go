package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/emoticonlab/kakao-emoticon-mcp/internal/checker"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/media"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/model"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/spec"
)

// ErrCheckFailed is returned when the checked set breaks a submission rule.
var ErrCheckFailed = errors.New("emoticon set does not meet the submission requirements")

// NewCheckCmd creates the check command
func NewCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check --type TYPE [--icon FILE] FILES...",
		Short: "Check local files against the submission rules",
		Long: `Check emoticon files against the KakaoTalk submission rules for a type:

  - exact number of files
  - file format
  - pixel dimensions
  - file size

Files are checked in the order given. Exits with status 1 when any rule is
broken.`,
		Args: cobra.ArbitraryArgs,
		RunE: runCheck,
	}
	cmd.Flags().StringP("type", "t", "", "emoticon type (static, dynamic, big, static_mini, dynamic_mini)")
	cmd.Flags().String("icon", "", "icon file")
	cmd.Flags().Bool("json", false, "print the result as JSON")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func runCheck(cmd *cobra.Command, args []string) error {
	typeName, _ := cmd.Flags().GetString("type")
	iconPath, _ := cmd.Flags().GetString("icon")
	asJSON, _ := cmd.Flags().GetBool("json")

	registry := spec.NewRegistry()
	emoticonType, err := registry.Parse(typeName)
	if err != nil {
		return err
	}

	items := make([][]byte, 0, len(args))
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		items = append(items, data)
	}

	var icon []byte
	if iconPath != "" {
		if icon, err = os.ReadFile(iconPath); err != nil {
			return fmt.Errorf("failed to read icon %s: %w", iconPath, err)
		}
	}

	result, err := checker.New(registry, media.ConfigDecoder{}).Check(emoticonType, items, icon)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
	} else {
		printReport(out, result, args, iconPath)
	}

	if !result.IsValid {
		return ErrCheckFailed
	}
	return nil
}

func printReport(out io.Writer, result *model.CheckResult, files []string, iconPath string) {
	fmt.Fprintf(out, "%s: checked %d file(s)\n", result.EmoticonType, result.CheckedCount)
	if result.IsValid {
		fmt.Fprintln(out, "OK: all submission rules passed")
		return
	}

	for _, issue := range result.Issues {
		fmt.Fprintf(out, "  [%s] %s: %s", issue.Kind, subject(issue.Index, files, iconPath), issue.Message)
		if issue.Observed != "" || issue.Expected != "" {
			fmt.Fprintf(out, " (got %s, want %s)", issue.Observed, issue.Expected)
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "%d issue(s) found\n", len(result.Issues))
}

func subject(index int, files []string, iconPath string) string {
	switch {
	case index == model.SetIndex:
		return "set"
	case index == model.IconIndex:
		return iconPath
	case index >= 0 && index < len(files):
		return files[index]
	default:
		return fmt.Sprintf("#%d", index+1)
	}
}
