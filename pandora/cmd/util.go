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
	"compress/flate"
	goerrors "errors"
	"fmt"
	"os"
	"strconv"

	logging "github.com/shenwei356/go-logging"
	"github.com/shenwei356/util/pathutil"
	"github.com/spf13/cobra"

	"github.com/pandora-prg/pandora"
)

var log = logging.MustGetLogger("pandora")

// exit codes: 1 I/O or parse error, 2 malformed PRG, 3 internal invariant
// failure.
const (
	exitIOError   = 1
	exitBadPRG    = 2
	exitInvariant = 3
)

var exit = os.Exit

func exitCodeFor(err error) int {
	switch {
	case goerrors.Is(err, pandora.ErrMalformedPRG):
		return exitBadPRG
	case goerrors.Is(err, pandora.ErrInvariant), goerrors.Is(err, pandora.ErrGraphIncoherent):
		return exitInvariant
	default:
		return exitIOError
	}
}

func checkError(err error) {
	if err != nil {
		log.Error(err)
		exit(exitCodeFor(err))
	}
}

// runWithRecover converts panics carrying errors (invariant violations)
// into single-line diagnostics with the right exit code.
func runWithRecover(f func(cmd *cobra.Command, args []string)) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		defer func() {
			if r := recover(); r != nil {
				if err, ok := r.(error); ok {
					checkError(err)
				}
				panic(r)
			}
		}()
		f(cmd, args)
	}
}

// Options contains the global flags
type Options struct {
	NumCPUs          int
	Verbose          int
	Compress         bool
	CompressionLevel int
}

func getOptions(cmd *cobra.Command) *Options {
	level := getFlagInt(cmd, "compression-level")
	if level < flate.HuffmanOnly || level > flate.BestCompression {
		checkError(fmt.Errorf("gzip: invalid compression level: %d", level))
	}
	threads := getFlagPositiveInt(cmd, "threads")
	if !cmd.Flags().Changed("threads") {
		if env := os.Getenv("OMP_NUM_THREADS"); env != "" {
			if n, err := strconv.Atoi(env); err == nil && n > 0 {
				threads = n
			}
		}
	}
	opt := &Options{
		NumCPUs:          threads,
		Verbose:          getFlagCount(cmd, "verbose"),
		Compress:         !getFlagBool(cmd, "no-compress"),
		CompressionLevel: level,
	}
	switch {
	case opt.Verbose >= 2:
		logging.SetLevel(logging.DEBUG, "pandora")
	case opt.Verbose == 1:
		logging.SetLevel(logging.INFO, "pandora")
	default:
		logging.SetLevel(logging.WARNING, "pandora")
	}
	return opt
}

func getFlagInt(cmd *cobra.Command, flag string) int {
	value, err := cmd.Flags().GetInt(flag)
	checkError(err)
	return value
}

func getFlagCount(cmd *cobra.Command, flag string) int {
	value, err := cmd.Flags().GetCount(flag)
	checkError(err)
	return value
}

func getFlagPositiveInt(cmd *cobra.Command, flag string) int {
	value, err := cmd.Flags().GetInt(flag)
	checkError(err)
	if value <= 0 {
		checkError(fmt.Errorf("value of flag --%s should be positive", flag))
	}
	return value
}

func getFlagNonNegativeInt(cmd *cobra.Command, flag string) int {
	value, err := cmd.Flags().GetInt(flag)
	checkError(err)
	if value < 0 {
		checkError(fmt.Errorf("value of flag --%s should not be negative", flag))
	}
	return value
}

func getFlagBool(cmd *cobra.Command, flag string) bool {
	value, err := cmd.Flags().GetBool(flag)
	checkError(err)
	return value
}

func getFlagString(cmd *cobra.Command, flag string) string {
	value, err := cmd.Flags().GetString(flag)
	checkError(err)
	return value
}

func getFlagFloat64(cmd *cobra.Command, flag string) float64 {
	value, err := cmd.Flags().GetFloat64(flag)
	checkError(err)
	return value
}

func checkFiles(files ...string) {
	for _, file := range files {
		if file == "-" {
			continue
		}
		ok, err := pathutil.Exists(file)
		if err != nil {
			checkError(fmt.Errorf("fail to read file %s: %s", file, err))
		}
		if !ok {
			checkError(fmt.Errorf("file (linked file) does not exist: %s", file))
		}
	}
}
