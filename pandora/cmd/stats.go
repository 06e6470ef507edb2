// Copyright © 2020 the Pandora authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package cmd

import (
	"fmt"
	"runtime"

	"github.com/shenwei356/stable"
	"github.com/shenwei356/xopen"
	"github.com/spf13/cobra"

	"github.com/pandora-prg/pandora"
)

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "per-PRG statistics of a PRG file",
	Long: `per-PRG statistics of a PRG file

Decomposes every PRG, sketches it, and prints one row per locus with its
length, graph size and sketch size.

`,
	Run: runWithRecover(func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)
		runtime.GOMAXPROCS(opt.NumCPUs)

		prgFile := getFlagString(cmd, "prg")
		if prgFile == "" {
			checkError(fmt.Errorf("flag --prg is required"))
		}
		checkFiles(prgFile)
		w := getFlagPositiveInt(cmd, "window-size")
		k := getFlagPositiveInt(cmd, "kmer-size")
		outFile := getFlagString(cmd, "out-file")

		prgs, err := readPRGs(prgFile, 0)
		checkError(err)
		_, err = pandora.BuildIndex(prgs, w, k, opt.NumCPUs)
		checkError(err)

		outfh, err := xopen.Wopen(outFile)
		checkError(err)
		defer outfh.Close()

		tbl := stable.New().HumanizeNumbers()
		tbl.Header([]string{"name", "length", "nodes", "edges", "kmers"})
		for _, prg := range prgs {
			kmers := 0
			if prg.Kmers != nil && len(prg.Kmers.Nodes) > 2 {
				kmers = len(prg.Kmers.Nodes) - 2
			}
			tbl.AddRow([]interface{}{
				prg.Name,
				len(prg.Seq),
				len(prg.Prg.Nodes),
				prg.Prg.NumEdges(),
				kmers,
			})
		}
		outfh.Write(tbl.Render(stable.StyleSimple))
	}),
}

func init() {
	RootCmd.AddCommand(statsCmd)

	statsCmd.Flags().StringP("prg", "", "", "PRG file (required)")
	statsCmd.Flags().IntP("window-size", "w", 14, "minimizer window size")
	statsCmd.Flags().IntP("kmer-size", "k", 15, "kmer size")
	statsCmd.Flags().StringP("out-file", "o", "-", `output file, "-" for stdout`)
}
