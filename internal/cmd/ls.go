package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/jessevdk/go-flags"
	"github.com/nguyengg/sealer/manifest"
)

type List struct {
	JSON bool `long:"json" description:"print the metadata as JSON"`
	Args struct {
		Paths []flags.Filename `positional-arg-name:"path" description:"the files/directories to inspect" required:"yes"`
	} `positional-args:"yes"`
}

func (c *List) Execute(args []string) error {
	if err := checkArgs(args); err != nil {
		return err
	}

	entries := manifest.Inspect(toStrings(c.Args.Paths))

	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, m := range entries {
		switch {
		case m.Error != "":
			_, _ = fmt.Fprintf(w, "%s\terror\t\t%s\n", m.Name, m.Error)
		case m.IsDir:
			_, _ = fmt.Fprintf(w, "%s/\tdir\t%s\t%s\n", m.Name, humanize.IBytes(uint64(m.Size)), m.Path)
		case m.IsSymlink:
			_, _ = fmt.Fprintf(w, "%s\tsymlink\t%s\t%s\n", m.Name, humanize.IBytes(uint64(m.Size)), m.Path)
		default:
			_, _ = fmt.Fprintf(w, "%s\tfile\t%s\t%s\n", m.Name, humanize.IBytes(uint64(m.Size)), m.Path)
		}
	}

	return w.Flush()
}
