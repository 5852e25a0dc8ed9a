package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/openpbo/pbo/pbo/writer"
)

// createCmd represents the create command
var createCmd = &cobra.Command{
	Use:   "create <folder> [archive.pbo]",
	Short: "Create a PBO archive from a folder",
	Long: `Pack every file under the given folder into a PBO archive.
When no output name is given, the folder's base name plus ".pbo" is used.`,
	Example: "pbo create mymod/ mymod.pbo",
	Args:    cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {

		source := args[0]
		out := filepath.Base(filepath.Clean(source)) + ".pbo"
		if len(args) == 2 {
			out = args[1]
		}

		start := time.Now()
		count, err := writer.Create(cmd.Context(), source, out, reporter(cmd))
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		size := float64(0)
		if info, err := os.Stat(out); err == nil {
			size = float64(info.Size()) / 1024 / 1024
		}
		fmt.Printf("Packed %d files into %s (%.2f MB in %.1fs)\n",
			count, out, size, time.Since(start).Seconds())
	},
}

func init() {
	rootCmd.AddCommand(createCmd)
}
