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
	"os"
	"path/filepath"
	"runtime"
	"strings"

	humanize "github.com/dustin/go-humanize"
	"github.com/shenwei356/xopen"
	"github.com/spf13/cobra"

	"github.com/pandora-prg/pandora"
)

// indexCmd represents the index command
var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "index PRG sequences for kmer lookup",
	Long: `index PRG sequences for kmer lookup

Each PRG of the input file is decomposed into its variation graph, the
(w,k) minimizers of every walk are sketched, and the occurrences are
written as a deterministic text index of one record per line:

    kmer_hash TAB prg_id TAB path TAB kmer_node_id TAB strand

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
		if k > 32 {
			checkError(fmt.Errorf("k > 32 not supported"))
		}
		idOffset := getFlagNonNegativeInt(cmd, "id-offset")
		outFile := getFlagString(cmd, "out-file")
		if outFile == "" {
			outFile = fmt.Sprintf("%s.k%d.w%d.idx", prgFile, k, w)
		}
		kgDir := getFlagString(cmd, "output-kg")

		log.Infof("reading PRGs from %s", prgFile)
		prgs, err := readPRGs(prgFile, uint32(idOffset))
		checkError(err)
		log.Infof("%s PRGs loaded", humanize.Comma(int64(len(prgs))))

		idx, err := pandora.BuildIndex(prgs, w, k, opt.NumCPUs)
		checkError(err)
		log.Infof("sketched %s kmers in %s records",
			humanize.Comma(int64(idx.NumKmers())), humanize.Comma(int64(idx.NumRecords())))

		outfh, gw, wfh, err := outStream(outFile,
			opt.Compress && strings.HasSuffix(strings.ToLower(outFile), ".gz"), opt.CompressionLevel)
		checkError(err)
		defer func() {
			outfh.Flush()
			if gw != nil {
				gw.Close()
			}
			wfh.Close()
		}()
		checkError(idx.WriteTo(outfh))
		log.Infof("index saved to %s", outFile)

		if kgDir != "" {
			checkError(os.MkdirAll(kgDir, 0755))
			for _, prg := range prgs {
				fh, err := xopen.Wopen(filepath.Join(kgDir, prg.Name+".kg"))
				checkError(err)
				checkError(prg.Kmers.WriteTo(fh))
				checkError(fh.Close())
			}
			log.Infof("kmer graphs saved to %s", kgDir)
		}
	}),
}

func init() {
	RootCmd.AddCommand(indexCmd)

	indexCmd.Flags().StringP("prg", "", "", "PRG file, one '>name' record per locus (required)")
	indexCmd.Flags().IntP("window-size", "w", 14, "minimizer window size")
	indexCmd.Flags().IntP("kmer-size", "k", 15, "kmer size")
	indexCmd.Flags().StringP("out-file", "o", "", `output file, default "<prg>.k<k>.w<w>.idx"`)
	indexCmd.Flags().IntP("id-offset", "", 0, "offset added to PRG ids")
	indexCmd.Flags().StringP("output-kg", "", "", "directory to dump per-PRG kmer graphs to")
}
