package ingestion

import (
	"sync"

	bloomFilter "github.com/bits-and-blooms/bloom/v3"
	"github.com/janael-pinheiro/device-sync-sdk-golang/pkg/entities"
)

// DuplicateFilter remembers the keys of messages already forwarded so that
// broker redeliveries are not applied twice.
type DuplicateFilter interface {
	Seen(key string) bool
	Add(key string)
}

type noDuplicateFilter struct{}

func (noDuplicateFilter) Seen(string) bool { return false }
func (noDuplicateFilter) Add(string)       {}

// bloomDuplicateFilter may report a false positive with the configured
// probability, never a false negative.
type bloomDuplicateFilter struct {
	mu         sync.Mutex
	filter     *bloomFilter.BloomFilter
	capacity   uint
	resetUsage float64
}

var duplicationFilterMapping = map[bool]func(entities.DuplicationFilterConfig) DuplicateFilter{
	false: func(entities.DuplicationFilterConfig) DuplicateFilter { return noDuplicateFilter{} },
	true:  newBloomDuplicateFilter,
}

// NewDuplicateFilter returns a bloom-backed filter when conf enables one and
// a filter that never reports duplicates otherwise.
func NewDuplicateFilter(conf entities.DuplicationFilterConfig) DuplicateFilter {
	return duplicationFilterMapping[conf.Enabled](conf)
}

func newBloomDuplicateFilter(conf entities.DuplicationFilterConfig) DuplicateFilter {
	return &bloomDuplicateFilter{
		filter:     bloomFilter.NewWithEstimates(conf.Capacity, conf.Probability),
		capacity:   conf.Capacity,
		resetUsage: conf.ResetUsage,
	}
}

func (f *bloomDuplicateFilter) Seen(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.filter.TestString(key)
}

func (f *bloomDuplicateFilter) Add(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetWhenSaturated()
	f.filter.AddString(key)
}

// resetWhenSaturated clears the filter once the estimated number of keys
// reaches resetUsage of the capacity, before false positives climb.
func (f *bloomDuplicateFilter) resetWhenSaturated() {
	usage := float64(f.filter.ApproximatedSize()) / float64(f.capacity)
	if usage >= f.resetUsage {
		f.filter.ClearAll()
	}
}
