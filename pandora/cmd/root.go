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

	"github.com/spf13/cobra"
)

// VERSION of pandora
const VERSION = "0.1.0"

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "pandora",
	Short: "Pan-genome inference and genotyping with population reference graphs",
	Long: fmt.Sprintf(`pandora - pan-genome inference and genotyping

Pandora represents the genetic variation of a population as a collection
of population reference graphs (PRGs), indexes the graphs for kmer lookup,
maps sequencing reads onto them via minimizer hits, infers the most
probable path through each graph for a sample, and emits VCF records.

Version: %s

Source code: https://github.com/pandora-prg/pandora

`, VERSION),
}

// Execute adds all child commands to the root command sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().IntP("threads", "t", 1, "number of CPUs to use (OMP_NUM_THREADS is honoured when the flag is left at its default)")
	RootCmd.PersistentFlags().CountP("verbose", "v", "verbosity level, repeatable (warning, info, debug)")
	RootCmd.PersistentFlags().BoolP("no-compress", "C", false, "do not gzip output files with a .gz name")
	RootCmd.PersistentFlags().IntP("compression-level", "", 5, "compression level for gzipped output")
}
