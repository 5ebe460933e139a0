package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/emoticonlab/kakao-emoticon-mcp/internal/model"
	"github.com/emoticonlab/kakao-emoticon-mcp/internal/spec"
)

// NewSpecsCmd creates the specs command
func NewSpecsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "specs [TYPE]",
		Short: "Print the submission specs",
		Long: `Print the KakaoTalk submission specs of every emoticon type, or of one
type (static, dynamic, big, static_mini, dynamic_mini).`,
		Args: cobra.MaximumNArgs(1),
		RunE: runSpecs,
	}
	cmd.Flags().Bool("json", false, "print JSON")
	return cmd
}

func runSpecs(cmd *cobra.Command, args []string) error {
	registry := spec.NewRegistry()

	var infos []model.SpecInfo
	if len(args) == 1 {
		entry, err := registry.Resolve(args[0])
		if err != nil {
			return err
		}
		infos = append(infos, entry.Info())
	} else {
		for _, entry := range registry.All() {
			infos = append(infos, entry.Info())
		}
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if len(infos) == 1 {
			return enc.Encode(infos[0])
		}
		return enc.Encode(model.SpecsResponse{Specs: infos})
	}

	return printSpecs(out, infos)
}

func printSpecs(out io.Writer, infos []model.SpecInfo) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tNAME\tCOUNT\tFORMAT\tSIZE\tMAX KB\tICON\tICON MAX KB")
	for _, info := range infos {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%d\t%dx%d\t%d\n",
			info.Type,
			info.TypeName,
			info.Count,
			info.Format,
			spec.JoinSizes(info.Sizes),
			info.MaxSizeKB,
			info.IconSize.Width, info.IconSize.Height,
			info.IconMaxSizeKB,
		)
	}
	return w.Flush()
}
