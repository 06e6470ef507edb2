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
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	gzip "github.com/klauspost/pgzip"

	"github.com/pandora-prg/pandora"
)

func outStream(file string, gzipped bool, level int) (*bufio.Writer, io.WriteCloser, *os.File, error) {
	var err error
	var w *os.File
	if file == "-" {
		w = os.Stdout
	} else {
		w, err = os.Create(file)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("fail to write %s: %s", file, err)
		}
	}

	if gzipped {
		gw, err := gzip.NewWriterLevel(w, level)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("fail to write %s: %s", file, err)
		}
		return bufio.NewWriterSize(gw, os.Getpagesize()), gw, w, nil
	}
	return bufio.NewWriterSize(w, os.Getpagesize()), nil, w, nil
}

func inStream(file string) (*bufio.Reader, *os.File, error) {
	var err error
	var r *os.File
	if file == "-" {
		r = os.Stdin
	} else {
		r, err = os.Open(file)
		if err != nil {
			return nil, nil, fmt.Errorf("fail to read %s: %s", file, err)
		}
	}

	br := bufio.NewReaderSize(r, os.Getpagesize())

	if gzipped, err := isGzip(br); err != nil {
		return nil, nil, fmt.Errorf("fail to check is file (%s) gzipped: %s", file, err)
	} else if gzipped {
		gr, err := gzip.NewReader(br)
		if err != nil {
			return nil, r, fmt.Errorf("fail to create gzip reader for %s: %s", file, err)
		}
		br = bufio.NewReaderSize(gr, os.Getpagesize())
	}

	return br, r, nil
}

func isGzip(b *bufio.Reader) (bool, error) {
	m, err := b.Peek(2)
	if err != nil {
		return false, fmt.Errorf("no content")
	}
	return m[0] == 0x1f && m[1] == 0x8b, nil
}

// readPRGs parses a PRG file: one ">name" header line per record followed
// by the linearized PRG sequence. Unlike FASTA readers it must keep the
// delimiter spaces inside the sequence, so the parsing stays line based.
func readPRGs(file string, idOffset uint32) ([]*pandora.LocalPRG, error) {
	br, r, err := inStream(file)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var prgs []*pandora.LocalPRG
	var name string
	var seq strings.Builder
	inRecord := false

	build := func() error {
		prg, err := pandora.NewLocalPRG(idOffset+uint32(len(prgs)), name, strings.TrimRight(seq.String(), " "))
		if err != nil {
			return err
		}
		prgs = append(prgs, prg)
		return nil
	}

	scanner := bufio.NewScanner(br)
	scanner.Buffer(make([]byte, 0, 1<<20), 64<<20)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if strings.HasPrefix(line, ">") {
			if inRecord {
				if err := build(); err != nil {
					return nil, err
				}
			}
			name = strings.TrimSpace(line[1:])
			seq.Reset()
			inRecord = true
			continue
		}
		if !inRecord {
			if strings.TrimSpace(line) == "" {
				continue
			}
			return nil, fmt.Errorf("%s: sequence before first header", file)
		}
		seq.WriteString(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if inRecord {
		if err := build(); err != nil {
			return nil, err
		}
	}
	return prgs, nil
}
