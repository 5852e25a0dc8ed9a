package cmd

import (
	"fmt"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	"github.com/openpbo/pbo/pbo/reader"
)

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect <archive.pbo>...",
	Short: "Show the contents of a PBO archive",
	Long: `List the header table of one or more archives: stored name, packing
method, payload size, and modification timestamp per entry.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {

		verbose, _ := cmd.Flags().GetBool("verbose")

		for _, filename := range args {

			fmt.Println(filename)
			archive, err := reader.Load(filename)
			if err != nil {
				fmt.Println(err)
				continue
			}

			entries := archive.Entries()
			total := uint64(0)
			for _, entry := range entries {
				mtime := time.Unix(int64(entry.Timestamp), 0).UTC()
				fmt.Printf("%10d  %d  %s  %s\n",
					entry.DataSize, entry.Method, mtime.Format(time.RFC3339), entry.Name)
				total += uint64(entry.DataSize)

				if verbose {
					spew.Dump(entry)
				}
			}
			fmt.Printf("%d entries, %d payload bytes\n", len(entries), total)
		}

	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
