package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"

	"github.com/openpbo/pbo/pbo/format"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pbo",
	Short: "pbo packs and extracts PBO archives",
	Long: `pbo bundles a directory tree into a PBO archive and unpacks
archives back into a directory tree. Entries are always stored
uncompressed, with relative paths and modification times preserved.
`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// reporter routes library progress strings to stderr under --verbose.
func reporter(cmd *cobra.Command) format.Reporter {
	verbose, _ := cmd.Flags().GetBool("verbose")
	if !verbose {
		return nil
	}
	return func(message string) {
		fmt.Fprintln(cmd.ErrOrStderr(), message)
	}
}

var docsCmd = &cobra.Command{
	Use:    "docs [dir]",
	Short:  "Generate markdown documentation for the pbo commands",
	Hidden: true,
	Args:   cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dir := "./docs"
		if len(args) == 1 {
			dir = args[0]
		}
		if err := os.MkdirAll(dir, 0o775); err != nil {
			fmt.Println("failed to make dir:", err)
			return
		}
		if err := doc.GenMarkdownTree(rootCmd, dir); err != nil {
			fmt.Println("failed to make docs:", err)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Write progress information to the terminal")
	rootCmd.AddCommand(docsCmd)
}
