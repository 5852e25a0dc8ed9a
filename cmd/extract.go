package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/openpbo/pbo/pbo/reader"
)

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract <archive.pbo> [destination]",
	Short: "Unpack a PBO archive into a folder",
	Long: `Unpack every entry of the archive into the given folder, which is
created if missing. When no destination is given, a folder named after
the archive (without its extension) is created in the current directory.`,
	Example: "pbo extract mymod.pbo unpacked/",
	Args:    cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {

		archive := args[0]
		dest := strings.TrimSuffix(filepath.Base(archive), filepath.Ext(archive))
		if len(args) == 2 {
			dest = args[1]
		}

		start := time.Now()
		count, err := reader.Extract(cmd.Context(), archive, dest, reporter(cmd))
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		fmt.Printf("Extracted %d files into %s (%.1fs)\n",
			count, dest, time.Since(start).Seconds())
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
}
