package stats

// ReplicationRecord is the per-replication view of one tracked response,
// shaped for an external persistence layer.
type ReplicationRecord struct {
	ElementID            int     `yaml:"element_id" json:"element_id"`
	ElementName          string  `yaml:"element_name" json:"element_name"`
	Replication          int     `yaml:"replication" json:"replication"`
	Count                int64   `yaml:"count" json:"count"`
	Average              float64 `yaml:"average" json:"average"`
	Minimum              float64 `yaml:"minimum" json:"minimum"`
	Maximum              float64 `yaml:"maximum" json:"maximum"`
	WeightedSum          float64 `yaml:"weighted_sum" json:"weighted_sum"`
	SumOfWeights         float64 `yaml:"sum_of_weights" json:"sum_of_weights"`
	WeightedSumOfSquares float64 `yaml:"weighted_ssq" json:"weighted_ssq"`
	LastValue            float64 `yaml:"last_value" json:"last_value"`
	LastWeight           float64 `yaml:"last_weight" json:"last_weight"`
}

// NewReplicationRecord captures s after replication rep. average is supplied
// by the caller because time-persistent responses report the weighted average.
func NewReplicationRecord(s *Statistic, rep int, average float64) ReplicationRecord {
	return ReplicationRecord{
		Replication:          rep,
		Count:                s.Count(),
		Average:              average,
		Minimum:              s.Min(),
		Maximum:              s.Max(),
		WeightedSum:          s.WeightedSum(),
		SumOfWeights:         s.SumOfWeights(),
		WeightedSumOfSquares: s.WeightedSumOfSquares(),
		LastValue:            s.Last(),
		LastWeight:           s.LastWeight(),
	}
}

// Summary is the across-observation view of a Statistic. At experiment level
// the observations are the per-replication averages.
type Summary struct {
	ElementID       int           `yaml:"element_id" json:"element_id"`
	ElementName     string        `yaml:"element_name" json:"element_name"`
	StatisticName   string        `yaml:"statistic_name" json:"statistic_name"`
	Count           int64         `yaml:"count" json:"count"`
	Average         float64       `yaml:"average" json:"average"`
	StdDev          float64       `yaml:"std_dev" json:"std_dev"`
	StdErr          float64       `yaml:"std_err" json:"std_err"`
	HalfWidth       float64       `yaml:"half_width" json:"half_width"`
	ConfidenceLevel float64       `yaml:"confidence_level" json:"confidence_level"`
	Min             float64       `yaml:"min" json:"min"`
	Max             float64       `yaml:"max" json:"max"`
	Skewness        float64       `yaml:"skewness" json:"skewness"`
	Kurtosis        float64       `yaml:"kurtosis" json:"kurtosis"`
	Lag1Covariance  float64       `yaml:"lag1_cov" json:"lag1_cov"`
	Lag1Correlation float64       `yaml:"lag1_corr" json:"lag1_corr"`
	VonNeumannLag1  float64       `yaml:"von_neumann_lag1" json:"von_neumann_lag1"`
	NumMissing      int64         `yaml:"num_missing" json:"num_missing"`
	Batch           *BatchSummary `yaml:"batch,omitempty" json:"batch,omitempty"`
}

// BatchSummary describes the batch-means view of a single replication.
type BatchSummary struct {
	Summary       `yaml:",inline" json:"summary"`
	NumBatches    int   `yaml:"num_batches" json:"num_batches"`
	BatchSize     int   `yaml:"batch_size" json:"batch_size"`
	NumRebatches  int   `yaml:"num_rebatches" json:"num_rebatches"`
	MinNumBatches int   `yaml:"min_num_batches" json:"min_num_batches"`
	MaxNumBatches int   `yaml:"max_num_batches" json:"max_num_batches"`
	MinBatchSize  int   `yaml:"min_batch_size" json:"min_batch_size"`
	BatchMultiple int   `yaml:"batch_multiple" json:"batch_multiple"`
	TotalCount    int64 `yaml:"total_count" json:"total_count"`
}
