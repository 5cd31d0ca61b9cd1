package sim

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/simkernel/sim/stats"
)

// Response collects observations (waiting times, system times, ...) within a
// replication and the replication averages across the experiment.
type Response struct {
	*Element

	within *stats.Statistic
	across *stats.Statistic
	batch  *stats.BatchStatistic

	stopOnPrecision bool
}

// NewResponse attaches an observation-based response to parent.
func NewResponse(parent *Element, name string) (*Response, error) {
	r := &Response{}
	el, err := NewElement(parent, name, "Response", r)
	if err != nil {
		return nil, err
	}
	r.Element = el
	r.within = stats.NewStatistic(el.name)
	r.across = stats.NewStatistic(el.name + ":across")
	return r, nil
}

// EnableBatching keeps a batch-means statistic over the within-replication
// observations; it reports through the across-replication summary.
func (r *Response) EnableBatching(minNumBatches, minBatchSize, multiple int) error {
	b, err := stats.NewBatchStatistic(r.name, minNumBatches, minBatchSize, multiple)
	if err != nil {
		return err
	}
	r.batch = b
	return nil
}

// SetStoppingRule turns the within-replication statistic off once rule is
// met. With stopReplication set the replication is ended at that point.
func (r *Response) SetStoppingRule(rule stats.StoppingRule, stopReplication bool) error {
	if err := r.within.SetStoppingRule(rule); err != nil {
		return fmt.Errorf("response %s: %w", r.name, err)
	}
	r.stopOnPrecision = stopReplication && rule.Kind != stats.NoStopping
	return nil
}

// Observe records x. NaN and infinite values are counted as missing.
func (r *Response) Observe(x float64) {
	if !r.within.Collect(x) {
		return
	}
	if math.IsNaN(x) || math.IsInf(x, 0) {
		logrus.WithFields(logrus.Fields{
			"response": r.name,
			"value":    x,
		}).Warnf("[t=%12.4f] observation counted as missing", r.Time())
	}
	if r.batch != nil {
		r.batch.Collect(x)
	}
	if r.stopOnPrecision && r.within.Stopped() {
		r.Executive().Stop(fmt.Sprintf("response %s reached its precision target", r.name))
	}
}

// Within returns the within-replication statistic.
func (r *Response) Within() *stats.Statistic { return r.within }

// Across returns the across-replication statistic.
func (r *Response) Across() *stats.Statistic { return r.across }

// Batch returns the batch-means statistic, nil unless batching is enabled.
func (r *Response) Batch() *stats.BatchStatistic { return r.batch }

func (r *Response) BeforeExperiment() error {
	r.across.Reset()
	return nil
}

func (r *Response) BeforeReplication() error {
	r.within.Reset()
	if r.batch != nil {
		r.batch.Reset()
	}
	return nil
}

func (r *Response) WarmUp() {
	r.within.Reset()
	if r.batch != nil {
		r.batch.Reset()
	}
}

func (r *Response) AfterReplication() error {
	if r.within.Count() > 0 {
		r.across.Collect(r.within.Average())
	}
	return nil
}

func (r *Response) ReplicationRecord(rep int) stats.ReplicationRecord {
	return stats.NewReplicationRecord(r.within, rep, r.within.Average())
}

func (r *Response) AcrossReplicationSummary() stats.Summary {
	sum := r.across.Summary()
	if r.batch != nil {
		b := r.batch.Summary()
		sum.Batch = &b
	}
	return sum
}

// TimeWeighted tracks a value that holds between changes (number in queue,
// number busy). Each held value is collected with its holding duration as
// weight, so the replication average is the time-persistent average.
type TimeWeighted struct {
	*Element

	initial    float64
	value      float64
	lastChange float64

	within *stats.Statistic
	across *stats.Statistic
}

// NewTimeWeighted attaches a time-persistent response with the given initial value.
func NewTimeWeighted(parent *Element, name string, initial float64) (*TimeWeighted, error) {
	tw := &TimeWeighted{initial: initial, value: initial}
	el, err := NewElement(parent, name, "TimeWeighted", tw)
	if err != nil {
		return nil, err
	}
	tw.Element = el
	tw.within = stats.NewStatistic(el.name)
	tw.across = stats.NewStatistic(el.name + ":across")
	return tw, nil
}

// Value returns the current value.
func (tw *TimeWeighted) Value() float64 { return tw.value }

// SetValue closes out the previous value's holding period and starts a new one.
func (tw *TimeWeighted) SetValue(v float64) {
	tw.collect()
	tw.value = v
}

// Increment adds d to the current value.
func (tw *TimeWeighted) Increment(d float64) { tw.SetValue(tw.value + d) }

// Decrement subtracts d from the current value.
func (tw *TimeWeighted) Decrement(d float64) { tw.SetValue(tw.value - d) }

// Average returns the time-persistent average so far, including the open period.
func (tw *TimeWeighted) Average() float64 {
	w := tw.Time() - tw.lastChange
	sw := tw.within.SumOfWeights() + w
	if sw <= 0 {
		return math.NaN()
	}
	return (tw.within.WeightedSum() + tw.value*w) / sw
}

func (tw *TimeWeighted) collect() {
	now := tw.Time()
	if w := now - tw.lastChange; w > 0 {
		tw.within.CollectWeighted(tw.value, w)
	}
	tw.lastChange = now
}

// Within returns the within-replication statistic.
func (tw *TimeWeighted) Within() *stats.Statistic { return tw.within }

// Across returns the across-replication statistic.
func (tw *TimeWeighted) Across() *stats.Statistic { return tw.across }

func (tw *TimeWeighted) BeforeExperiment() error {
	tw.across.Reset()
	return nil
}

func (tw *TimeWeighted) BeforeReplication() error {
	tw.within.Reset()
	tw.value = tw.initial
	tw.lastChange = 0
	return nil
}

// WarmUp discards the statistics but keeps the current value.
func (tw *TimeWeighted) WarmUp() {
	tw.within.Reset()
	tw.lastChange = tw.Time()
}

func (tw *TimeWeighted) AfterReplication() error {
	tw.collect()
	if avg := tw.within.WeightedAverage(); !math.IsNaN(avg) {
		tw.across.Collect(avg)
	}
	return nil
}

func (tw *TimeWeighted) ReplicationRecord(rep int) stats.ReplicationRecord {
	return stats.NewReplicationRecord(tw.within, rep, tw.within.WeightedAverage())
}

func (tw *TimeWeighted) AcrossReplicationSummary() stats.Summary {
	return tw.across.Summary()
}

// Counter counts occurrences within a replication; the across-replication
// statistic observes the final count of each replication.
type Counter struct {
	*Element

	value      float64
	increments int64
	across     *stats.Statistic

	limit float64
}

// NewCounter attaches a counter to parent.
func NewCounter(parent *Element, name string) (*Counter, error) {
	c := &Counter{limit: math.Inf(1)}
	el, err := NewElement(parent, name, "Counter", c)
	if err != nil {
		return nil, err
	}
	c.Element = el
	c.across = stats.NewStatistic(el.name + ":across")
	return c, nil
}

// SetCountLimit ends the replication when the count reaches limit.
func (c *Counter) SetCountLimit(limit float64) error {
	if math.IsNaN(limit) || limit <= 0 {
		return configErrorf("count_limit", "must be > 0, got %v", limit)
	}
	c.limit = limit
	return nil
}

// Increment adds n to the count.
func (c *Counter) Increment(n float64) {
	c.value += n
	c.increments++
	if c.value >= c.limit {
		c.Executive().Stop(fmt.Sprintf("counter %s reached limit %g", c.name, c.limit))
	}
}

// Value returns the current count.
func (c *Counter) Value() float64 { return c.value }

// Across returns the across-replication statistic.
func (c *Counter) Across() *stats.Statistic { return c.across }

func (c *Counter) BeforeExperiment() error {
	c.across.Reset()
	return nil
}

func (c *Counter) BeforeReplication() error {
	c.value = 0
	c.increments = 0
	return nil
}

func (c *Counter) WarmUp() {
	c.value = 0
	c.increments = 0
}

func (c *Counter) AfterReplication() error {
	c.across.Collect(c.value)
	return nil
}

func (c *Counter) ReplicationRecord(rep int) stats.ReplicationRecord {
	return stats.ReplicationRecord{
		Replication:          rep,
		Count:                c.increments,
		Average:              c.value,
		Minimum:              c.value,
		Maximum:              c.value,
		WeightedSum:          c.value,
		SumOfWeights:         1,
		WeightedSumOfSquares: c.value * c.value,
		LastValue:            c.value,
		LastWeight:           1,
	}
}

func (c *Counter) AcrossReplicationSummary() stats.Summary {
	return c.across.Summary()
}
