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
	"io"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	humanize "github.com/dustin/go-humanize"
	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/bio/seqio/fastx"
	"github.com/shenwei356/xopen"
	"github.com/spf13/cobra"
	"github.com/twotwotwo/sorts"

	"github.com/pandora-prg/pandora"
)

// mapCmd represents the map command
var mapCmd = &cobra.Command{
	Use:   "map",
	Short: "map reads onto PRGs and call variants",
	Long: `map reads onto PRGs and call variants

Reads are sketched with the same (w,k) minimizer scheme as the index,
hits are clustered per (read, PRG, strand), cluster hits accumulate
coverage on the kmer graphs, and the maximum-likelihood path of every
covered PRG yields the sample's VCF records against the PRG reference
path.

`,
	Run: runWithRecover(func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)
		runtime.GOMAXPROCS(opt.NumCPUs)
		sorts.MaxProcs = opt.NumCPUs
		seq.ValidateSeq = false

		prgFile := getFlagString(cmd, "prg")
		readsFile := getFlagString(cmd, "reads")
		if prgFile == "" || readsFile == "" {
			checkError(fmt.Errorf("flags --prg and --reads are required"))
		}
		checkFiles(prgFile, readsFile)

		outDir := getFlagString(cmd, "outdir")
		w := getFlagPositiveInt(cmd, "window-size")
		k := getFlagPositiveInt(cmd, "kmer-size")
		if k > 32 {
			checkError(fmt.Errorf("k > 32 not supported"))
		}
		errorRate := getFlagFloat64(cmd, "error-rate")
		if getFlagBool(cmd, "illumina") && !cmd.Flags().Changed("error-rate") {
			errorRate = 0.001
		}
		genomeSize := getFlagPositiveInt(cmd, "genome-size")
		maxDiff := getFlagNonNegativeInt(cmd, "max-diff")
		minClusterSize := getFlagPositiveInt(cmd, "min-cluster-size")
		maxCovg := getFlagNonNegativeInt(cmd, "max-covg")
		indexFile := getFlagString(cmd, "index")
		sample := getFlagString(cmd, "sample")
		outputKG := getFlagBool(cmd, "output-kg")
		clean := getFlagBool(cmd, "clean")
		genotype := getFlagBool(cmd, "genotype")
		snpsOnly := getFlagBool(cmd, "snps-only")

		gtErrorRate := getFlagFloat64(cmd, "genotyping-error-rate")
		confThreshold := getFlagFloat64(cmd, "confidence-threshold")
		minAlleleCovg := getFlagNonNegativeInt(cmd, "min-allele-covg")
		minTotalCovg := getFlagNonNegativeInt(cmd, "min-total-covg")
		minDiffCovg := getFlagNonNegativeInt(cmd, "min-diff-covg")
		minFrac := getFlagFloat64(cmd, "min-allele-fraction-covg")

		checkError(os.MkdirAll(outDir, 0755))

		log.Infof("reading PRGs from %s", prgFile)
		prgs, err := readPRGs(prgFile, 0)
		checkError(err)
		prgByID := make(map[uint32]*pandora.LocalPRG, len(prgs))
		for _, prg := range prgs {
			prgByID[prg.ID] = prg
		}

		var idx *pandora.Index
		if indexFile != "" {
			checkFiles(indexFile)
			log.Infof("loading index from %s", indexFile)
			idx, err = pandora.LoadIndex(indexFile, k, w)
			checkError(err)
			// index loading skips sketching, but coverage needs the kmer
			// graphs, so sketch into a throwaway index when absent
			for _, prg := range prgs {
				if prg.Kmers == nil {
					checkError(prg.MinimizerSketch(pandora.NewIndex(k, w), w, k))
				}
			}
		} else {
			idx, err = pandora.BuildIndex(prgs, w, k, opt.NumCPUs)
			checkError(err)
		}
		log.Infof("index holds %s kmers", humanize.Comma(int64(idx.NumKmers())))

		// map reads: workers sketch and cluster, a serial reducer folds
		// coverage into the shared kmer graphs
		type readJob struct {
			id  uint32
			seq []byte
		}
		jobs := make(chan readJob, opt.NumCPUs)
		results := make(chan []pandora.Cluster, opt.NumCPUs)

		var wg sync.WaitGroup
		for i := 0; i < opt.NumCPUs; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for job := range jobs {
					minimizers, err := pandora.SketchMinimizers(job.seq, w, k)
					if err != nil {
						continue // short read
					}
					var hits pandora.MinimizerHits
					for _, m := range minimizers {
						for _, rec := range idx.Probe(m.Hash) {
							hit, err := pandora.NewMinimizerHit(job.id, m, rec)
							if err != nil {
								continue
							}
							hits.Add(hit)
						}
					}
					if hits.Len() == 0 {
						continue
					}
					clusters := hits.Cluster(uint32(maxDiff), minClusterSize)
					if len(clusters) > 0 {
						results <- clusters
					}
				}
			}()
		}

		readsPerPrg := make(map[uint32]map[uint32]struct{})
		done := make(chan struct{})
		go func() {
			defer close(done)
			for clusters := range results {
				for _, cluster := range clusters {
					for _, hit := range cluster {
						prg, ok := prgByID[hit.Record.PrgID]
						if !ok || prg.Kmers == nil {
							continue
						}
						prg.Kmers.AddCovg(hit.Record.KmerNodeID, hit.ReadStrand, uint32(maxCovg))
						reads, ok := readsPerPrg[prg.ID]
						if !ok {
							reads = make(map[uint32]struct{})
							readsPerPrg[prg.ID] = reads
						}
						reads[hit.ReadID] = struct{}{}
					}
				}
			}
		}()

		log.Infof("mapping reads from %s", readsFile)
		fastxReader, err := fastx.NewDefaultReader(readsFile)
		checkError(err)
		var numReads uint32
		var totalBases uint64
		for {
			record, err := fastxReader.Read()
			if err != nil {
				if err == io.EOF {
					break
				}
				checkError(err)
			}
			s := make([]byte, len(record.Seq.Seq))
			copy(s, record.Seq.Seq)
			jobs <- readJob{id: numReads, seq: s}
			numReads++
			totalBases += uint64(len(s))
		}
		close(jobs)
		wg.Wait()
		close(results)
		<-done
		log.Infof("%s reads mapped", humanize.Comma(int64(numReads)))

		expDepth := uint32(totalBases / uint64(genomeSize))
		if expDepth < 1 {
			expDepth = 1
		}

		// per-kmer hit probability for the path model
		p := math.Exp(-errorRate * float64(k))

		vcf := pandora.NewVCF()
		vcf.GetSampleIndex(sample)

		var kgDir string
		if outputKG {
			kgDir = filepath.Join(outDir, "kmer_graphs")
			checkError(os.MkdirAll(kgDir, 0755))
		}

		var covered, skipped int
		for _, prg := range prgs {
			reads, ok := readsPerPrg[prg.ID]
			if !ok || len(reads) == 0 {
				continue
			}
			covered++
			mlIDs, _, err := prg.Kmers.FindMaxPath(uint32(len(reads)), p)
			if err != nil {
				log.Warningf("skipping PRG %s: %s", prg.Name, err)
				skipped++
				continue
			}
			mlNodes := make([]*pandora.KmerNode, 0, len(mlIDs))
			kmerPaths := make([]pandora.Path, 0, len(mlIDs))
			for _, id := range mlIDs {
				node := prg.Kmers.Nodes[id]
				mlNodes = append(mlNodes, node)
				kmerPaths = append(kmerPaths, node.Path)
			}
			refPath := prg.RefPath()
			samplePath := prg.NodesAlongKmerPath(kmerPaths)
			prg.BuildVCF(vcf, refPath)
			prg.AddSampleToVCF(vcf, sample, refPath, samplePath, mlNodes)

			if outputKG {
				fh, err := xopen.Wopen(filepath.Join(kgDir, prg.Name+".kg"))
				checkError(err)
				checkError(prg.Kmers.WriteTo(fh))
				checkError(fh.Close())
			}
		}
		log.Infof("%d PRGs covered, %d skipped", covered, skipped)

		if clean {
			for _, prg := range prgs {
				checkError(vcf.CorrectDotAlleles(prg.RefSeq(), prg.Name))
			}
			merged, err := vcf.MergeMultiAllelic(10000)
			checkError(err)
			vcf = merged
		}

		vcfFile := filepath.Join(outDir, "pandora.vcf")
		checkError(vcf.Save(vcfFile))
		log.Infof("VCF saved to %s", vcfFile)

		if genotype {
			vcf.Genotype([]uint32{expDepth}, gtErrorRate, confThreshold,
				uint32(minAlleleCovg), uint32(minTotalCovg), uint32(minDiffCovg),
				minFrac, snpsOnly)
			gtFile := filepath.Join(outDir, "pandora_genotyped.vcf")
			checkError(vcf.Save(gtFile))
			log.Infof("genotyped VCF saved to %s", gtFile)
		}
	}),
}

func init() {
	RootCmd.AddCommand(mapCmd)

	mapCmd.Flags().StringP("prg", "", "", "PRG file (required)")
	mapCmd.Flags().StringP("reads", "", "", "FASTA/Q file of reads, gzipped or plain (required)")
	mapCmd.Flags().StringP("outdir", "o", "pandora", "output directory")
	mapCmd.Flags().IntP("window-size", "w", 14, "minimizer window size")
	mapCmd.Flags().IntP("kmer-size", "k", 15, "kmer size")
	mapCmd.Flags().Float64P("error-rate", "e", 0.11, "estimated sequencing error rate")
	mapCmd.Flags().IntP("genome-size", "g", 5000000, "estimated genome size, for expected depth")
	mapCmd.Flags().IntP("max-diff", "", 250, "maximum gap between hits of one cluster")
	mapCmd.Flags().IntP("min-cluster-size", "", 10, "minimum hits per cluster")
	mapCmd.Flags().IntP("max-covg", "", 300, "per-node coverage cap, 0 for none")
	mapCmd.Flags().StringP("index", "", "", "pre-built index file; sketched in memory when empty")
	mapCmd.Flags().StringP("sample", "", "sample", "sample name for the VCF")
	mapCmd.Flags().BoolP("output-kg", "", false, "dump per-PRG kmer graphs under the output directory")
	mapCmd.Flags().BoolP("illumina", "", false, "reads are Illumina (drops the default error rate to 0.001)")
	mapCmd.Flags().BoolP("clean", "", false, "rewrite dot alleles against each PRG reference and merge multi-allelic sites")
	mapCmd.Flags().BoolP("genotype", "", false, "re-genotype from coverage and write a second VCF")
	mapCmd.Flags().BoolP("snps-only", "", false, "restrict genotyping to single-base sites")
	mapCmd.Flags().Float64P("genotyping-error-rate", "", 0.01, "error rate of the genotyping model")
	mapCmd.Flags().Float64P("confidence-threshold", "", 1, "minimum GT_CONF to keep a call")
	mapCmd.Flags().IntP("min-allele-covg", "", 0, "minimum coverage for an allele to count")
	mapCmd.Flags().IntP("min-total-covg", "", 0, "minimum site coverage to genotype")
	mapCmd.Flags().IntP("min-diff-covg", "", 0, "minimum coverage difference between the top alleles")
	mapCmd.Flags().Float64P("min-allele-fraction-covg", "", 0, "minimum fraction of site coverage per allele")
}
