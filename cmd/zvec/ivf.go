package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zvecio/zvec/internal/bitset"
	"github.com/zvecio/zvec/internal/storage"
	"github.com/zvecio/zvec/pkg/ivf"
	"github.com/zvecio/zvec/pkg/reformer"
	"github.com/zvecio/zvec/pkg/searcher"
)

// vectorSet is the input file shape for ivf build / quantize calibrate:
// parallel keys and vectors arrays, one entry per row.
type vectorSet struct {
	Keys    []uint64    `json:"keys"`
	Vectors [][]float32 `json:"vectors"`
}

func loadVectorSet(path string) (vectorSet, error) {
	var vs vectorSet
	data, err := os.ReadFile(path)
	if err != nil {
		return vs, fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &vs); err != nil {
		return vs, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(vs.Keys) != len(vs.Vectors) {
		return vs, fmt.Errorf("%s: %d keys but %d vectors", path, len(vs.Keys), len(vs.Vectors))
	}
	return vs, nil
}

func centroidsSidecarPath(indexPath string) string {
	return indexPath + ".centroids.json"
}

func newIVFCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ivf",
		Short: "Build and query IVF index images",
	}
	cmd.AddCommand(newIVFBuildCmd(), newIVFSearchCmd())
	return cmd
}

func newIVFBuildCmd() *cobra.Command {
	var (
		metricName       string
		reformerName     string
		numCentroids     int
		blockVectorCount int
		iterations       int
		withFeatures     bool
	)
	cmd := &cobra.Command{
		Use:   "build <input.json> <output.ivf>",
		Short: "Train centroids over an input vector set and emit an on-disk IVF image",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			inPath, outPath := args[0], args[1]

			vs, err := loadVectorSet(inPath)
			if err != nil {
				return err
			}
			if len(vs.Vectors) == 0 {
				return fmt.Errorf("%s: no vectors", inPath)
			}
			dim := len(vs.Vectors[0])

			metric, _, err := ivf.ParseMetric(metricName)
			if err != nil {
				return err
			}

			var centroids [][]float32
			err = logger.LogOperationWithFields("train_centroids", map[string]interface{}{
				"vectors":   len(vs.Vectors),
				"centroids": numCentroids,
			}, func() error {
				var trainErr error
				centroids, trainErr = ivf.TrainCentroids(vs.Vectors, numCentroids, metric, iterations)
				return trainErr
			})
			if err != nil {
				return fmt.Errorf("train centroids: %w", err)
			}
			lists := ivf.AssignRecords(vs.Keys, vs.Vectors, centroids, metric)

			meta := ivf.IndexMeta{
				MetricName:    metricName,
				Element:       ivf.ElementFP32,
				Dim:           dim,
				ReformerName:  reformerName,
				ReformerScale: 1,
			}
			if err := ivf.Build(outPath, ivf.BuildInput{
				Meta:             meta,
				BlockVectorCount: blockVectorCount,
				Lists:            lists,
				WithFeatures:     withFeatures,
			}); err != nil {
				return fmt.Errorf("build: %w", err)
			}

			sidecar, err := json.Marshal(centroids)
			if err != nil {
				return fmt.Errorf("marshal centroids: %w", err)
			}
			if err := os.WriteFile(centroidsSidecarPath(outPath), sidecar, 0644); err != nil {
				return fmt.Errorf("write centroids sidecar: %w", err)
			}

			logger.Info("ivf build complete", map[string]interface{}{
				"output":    outPath,
				"lists":     len(lists),
				"dim":       dim,
				"centroids": len(centroids),
			})
			fmt.Printf("wrote %s (%d lists, dim=%d) and %s\n", outPath, len(lists), dim, centroidsSidecarPath(outPath))
			return nil
		},
	}
	cmd.Flags().StringVar(&metricName, "metric", ivf.MetricEuclidean, "Euclidean, Manhattan, or InnerProduct")
	cmd.Flags().StringVar(&reformerName, "reformer", ivf.ReformerNone, "reformer name to record in the index meta")
	cmd.Flags().IntVar(&numCentroids, "centroids", 16, "number of inverted lists to train")
	cmd.Flags().IntVar(&blockVectorCount, "block-vectors", 32, "vectors per scan block, must be in (0,64)")
	cmd.Flags().IntVar(&iterations, "iterations", 0, "Lloyd iterations, 0 uses the library default")
	cmd.Flags().BoolVar(&withFeatures, "with-features", false, "also emit a dense features segment for exact rescoring")
	return cmd
}

func newIVFSearchCmd() *cobra.Command {
	var (
		query               string
		topk                int
		threshold           float64
		bruteForceThreshold int
		scanRatio           float64
		excludeIDs          string
	)
	cmd := &cobra.Command{
		Use:   "search <index.ivf>",
		Short: "Run one query against an on-disk IVF image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			indexPath := args[0]

			q, err := parseFloatCSV(query)
			if err != nil {
				return fmt.Errorf("--query: %w", err)
			}

			container, err := storage.Open(indexPath)
			if err != nil {
				return fmt.Errorf("open: %w", err)
			}
			var entity *ivf.Entity
			err = logger.LogOperation("load_ivf_entity", func() error {
				var loadErr error
				entity, loadErr = ivf.Load(container)
				return loadErr
			})
			if err != nil {
				return fmt.Errorf("load: %w", err)
			}
			defer entity.Close()

			metric, _, err := ivf.ParseMetric(entity.Meta().MetricName)
			if err != nil {
				return err
			}

			var centroidIdx *searcher.CentroidIndex
			sidecarBytes, err := os.ReadFile(centroidsSidecarPath(indexPath))
			if err == nil {
				var centroids [][]float32
				if err := json.Unmarshal(sidecarBytes, &centroids); err != nil {
					return fmt.Errorf("parse centroids sidecar: %w", err)
				}
				centroidIdx = searcher.NewCentroidIndex(centroids, metric)
			} else {
				logger.Warn("no centroids sidecar found, searching with brute force only", map[string]interface{}{"path": centroidsSidecarPath(indexPath)})
			}

			kind, err := reformer.Select(entity.Meta().ReformerName, entity.Meta().MetricName)
			if err != nil {
				return err
			}
			rf, err := reformer.New(kind, nil)
			if err != nil {
				return fmt.Errorf("this index's reformer needs a trained quantizer plugin, which %q cannot load: %w", "zvec ivf search", err)
			}

			filter, err := parseExcludeFilter(excludeIDs, entity.TotalVectorCount())
			if err != nil {
				return fmt.Errorf("--exclude: %w", err)
			}

			cfg := searcher.Config{BruteForceThreshold: uint32(bruteForceThreshold), ScanRatio: float32(scanRatio)}
			ctx, err := searcher.New(entity, centroidIdx, rf, cfg, topk, float32(threshold), filter)
			if err != nil {
				return fmt.Errorf("new search context: %w", err)
			}

			results, err := ctx.Search(q)
			if err != nil {
				logger.Warn("search returned a partial result", map[string]interface{}{"error": err.Error()})
			}

			stats := ctx.Stats()
			logger.Info("ivf search complete", map[string]interface{}{
				"results":    len(results),
				"scan_count": stats.ScanCount,
				"filtered":   stats.FilteredCount,
			})
			for _, r := range results {
				fmt.Printf("key=%d score=%g\n", r.Key, r.Score)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&query, "query", "", "comma-separated query vector components (required)")
	cmd.Flags().IntVar(&topk, "topk", 10, "number of results to return")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "reject candidates with score above this (0 disables)")
	cmd.Flags().IntVar(&bruteForceThreshold, "brute-force-threshold", 1000, "below this vector count, scan every list")
	cmd.Flags().Float64Var(&scanRatio, "scan-ratio", 0.1, "fraction of inverted lists to visit once above the brute-force threshold")
	cmd.Flags().StringVar(&excludeIDs, "exclude", "", "comma-separated local ids to exclude from the scan (e.g. soft-deleted rows)")
	cmd.MarkFlagRequired("query")
	return cmd
}

// parseExcludeFilter builds a bitset.FixedBitset sized to the entity's
// physical vector count with every id set except the excluded ones, since
// ivf.Filter.Test reports survival, not exclusion. An empty spec returns a
// nil filter so the entity scans unfiltered.
func parseExcludeFilter(spec string, n int) (ivf.Filter, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, nil
	}
	fb := bitset.NewFixedBitset(n)
	for i := 0; i < n; i++ {
		if err := fb.Set(i); err != nil {
			return nil, err
		}
	}
	for _, p := range strings.Split(spec, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", p, err)
		}
		if err := fb.Reset(id); err != nil {
			return nil, fmt.Errorf("id %d: %w", id, err)
		}
	}
	return fb, nil
}

func parseFloatCSV(s string) ([]float32, error) {
	parts := strings.Split(s, ",")
	out := make([]float32, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid component %q: %w", p, err)
		}
		out = append(out, float32(v))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty vector")
	}
	return out, nil
}
