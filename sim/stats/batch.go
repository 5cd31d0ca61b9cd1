package stats

import (
	"fmt"
	"math"
)

// Batch means defaults: 20..40 batches of at least 16 observations, doubling on rebatch.
const (
	DefaultMinNumBatches = 20
	DefaultMinBatchSize  = 16
	DefaultBatchMultiple = 2
)

// BatchStatistic estimates the variance of a single long replication by
// grouping observations into batches and treating the batch means as
// approximately independent observations.
//
// Once MaxNumBatches batch means are held, consecutive groups of BatchMultiple
// means are merged into one, the batch size grows by the same factor, and the
// batch-mean statistic is rebuilt from the merged means. Raw observations are
// never replayed, so memory stays bounded by MaxNumBatches.
type BatchStatistic struct {
	name          string
	minNumBatches int
	minBatchSize  int
	multiple      int
	maxNumBatches int

	batchSize    int
	numInBatch   int
	batchSum     float64
	means        []float64
	numRebatches int

	raw     *Statistic
	batches *Statistic
}

// NewBatchStatistic returns a batch statistic with the given shape.
func NewBatchStatistic(name string, minNumBatches, minBatchSize, multiple int) (*BatchStatistic, error) {
	if minNumBatches < 2 {
		return nil, fmt.Errorf("batch statistic %q: min number of batches must be >= 2, got %d", name, minNumBatches)
	}
	if minBatchSize < 1 {
		return nil, fmt.Errorf("batch statistic %q: min batch size must be >= 1, got %d", name, minBatchSize)
	}
	if multiple < 2 {
		return nil, fmt.Errorf("batch statistic %q: batch multiple must be >= 2, got %d", name, multiple)
	}
	b := &BatchStatistic{
		name:          name,
		minNumBatches: minNumBatches,
		minBatchSize:  minBatchSize,
		multiple:      multiple,
		maxNumBatches: minNumBatches * multiple,
		means:         make([]float64, 0, minNumBatches*multiple),
		raw:           NewStatistic(name),
		batches:       NewStatistic(name + ":batches"),
	}
	b.Reset()
	return b, nil
}

// NewDefaultBatchStatistic returns a batch statistic with the package defaults.
func NewDefaultBatchStatistic(name string) *BatchStatistic {
	b, err := NewBatchStatistic(name, DefaultMinNumBatches, DefaultMinBatchSize, DefaultBatchMultiple)
	if err != nil {
		panic(err)
	}
	return b
}

// Reset discards all observations and batches, keeping the configuration.
func (b *BatchStatistic) Reset() {
	b.batchSize = b.minBatchSize
	b.numInBatch = 0
	b.batchSum = 0
	b.means = b.means[:0]
	b.numRebatches = 0
	b.raw.Reset()
	b.batches.Reset()
}

// Collect adds one raw observation. Missing values are counted by the raw
// statistic and do not contribute to any batch.
func (b *BatchStatistic) Collect(x float64) bool {
	if !b.raw.Collect(x) {
		return false
	}
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return true
	}
	b.batchSum += x
	b.numInBatch++
	if b.numInBatch == b.batchSize {
		b.addBatch(b.batchSum / float64(b.batchSize))
		b.batchSum = 0
		b.numInBatch = 0
	}
	return true
}

func (b *BatchStatistic) addBatch(mean float64) {
	b.means = append(b.means, mean)
	b.batches.Collect(mean)
	if len(b.means) == b.maxNumBatches {
		b.rebatch()
	}
}

// rebatch merges groups of multiple consecutive batch means.
func (b *BatchStatistic) rebatch() {
	k := b.multiple
	merged := b.means[:0]
	for i := 0; i+k <= len(b.means); i += k {
		sum := 0.0
		for _, m := range b.means[i : i+k] {
			sum += m
		}
		merged = append(merged, sum/float64(k))
	}
	b.means = merged
	b.batchSize *= k
	b.numRebatches++
	b.batches.Reset()
	for _, m := range b.means {
		b.batches.Collect(m)
	}
}

// RebatchTo regroups the current batch means into n batches and returns a
// statistic over them. Leading batch means that do not fill a whole group are
// dropped. The receiver is not modified.
func (b *BatchStatistic) RebatchTo(n int) (*Statistic, error) {
	if n < 1 || n > len(b.means) {
		return nil, fmt.Errorf("batch statistic %q: cannot rebatch %d batches into %d", b.name, len(b.means), n)
	}
	k := len(b.means) / n
	skip := len(b.means) - n*k
	out := NewStatistic(b.name + ":rebatched")
	for i := skip; i+k <= len(b.means); i += k {
		sum := 0.0
		for _, m := range b.means[i : i+k] {
			sum += m
		}
		out.Collect(sum / float64(k))
	}
	return out, nil
}

// Name returns the statistic name.
func (b *BatchStatistic) Name() string { return b.name }

// NumBatches returns the number of completed batches currently held.
func (b *BatchStatistic) NumBatches() int { return len(b.means) }

// BatchSize returns the current number of observations per batch.
func (b *BatchStatistic) BatchSize() int { return b.batchSize }

// NumRebatches returns how many times the batches have been merged.
func (b *BatchStatistic) NumRebatches() int { return b.numRebatches }

// MaxNumBatches returns the batch count that triggers rebatching.
func (b *BatchStatistic) MaxNumBatches() int { return b.maxNumBatches }

// BatchMeans returns a copy of the current batch means.
func (b *BatchStatistic) BatchMeans() []float64 {
	out := make([]float64, len(b.means))
	copy(out, b.means)
	return out
}

// Raw returns the statistic over all raw observations.
func (b *BatchStatistic) Raw() *Statistic { return b.raw }

// Batches returns the statistic over the current batch means.
func (b *BatchStatistic) Batches() *Statistic { return b.batches }

// Summary returns the batch-means view with batching metadata.
func (b *BatchStatistic) Summary() BatchSummary {
	return BatchSummary{
		Summary:       b.batches.Summary(),
		NumBatches:    len(b.means),
		BatchSize:     b.batchSize,
		NumRebatches:  b.numRebatches,
		MinNumBatches: b.minNumBatches,
		MaxNumBatches: b.maxNumBatches,
		MinBatchSize:  b.minBatchSize,
		BatchMultiple: b.multiple,
		TotalCount:    b.raw.Count(),
	}
}
