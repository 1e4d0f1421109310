package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var ListCmd = &cobra.Command{
	Use:   "list cabinet",
	Short: "List the files of a cabinet set",
	Args:  cobra.ExactArgs(1),
	RunE:  listCmd,
}

var argListVolumes bool

func init() {
	RootCmd.AddCommand(ListCmd)
	ListCmd.Flags().BoolVar(&argListVolumes, "volumes", false, "Also list the volumes of the set")
}

func listCmd(cmd *cobra.Command, args []string) error {
	c, err := openCabinet(args[0])
	if err != nil {
		return err
	}
	defer c.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if argListVolumes {
		for i, v := range c.Volumes {
			fmt.Fprintf(w, "volume %d\t%s\tset %d\tindex %d\t%d bytes\n", i, v.Name, v.SetId, v.SetIndex, v.Size)
		}
	}
	for _, f := range c.Files {
		fmt.Fprintf(w, "%10d\t%s\t%s\t%d\t%s\t%s\n",
			f.Size(), f.ModTime().Format("2006-01-02 15:04:05"), f.Attributes(),
			f.Folder(), f.Compression(), f.Name())
	}
	return w.Flush()
}
