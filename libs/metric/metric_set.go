package metric

import (
	"sort"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var (
	ErrMetricLabelExist = errors.New("metric label already exist")
)

// MetricItem - 一个独立的模块对应一个MetricItem，比如consensus、p2p
type MetricItem interface {
	JSONString() string
}

func NewMetricSet() *MetricSet {
	return &MetricSet{
		metrics: make(map[string]MetricItem),
	}
}

// MetricSet is the label -> item registry served by the metrics rpc route.
type MetricSet struct {
	mtx     sync.RWMutex
	metrics map[string]MetricItem
}

// SetMetrics - 根据label设置对应的Metrics，如果有存在的label，则返回error
func (ms *MetricSet) SetMetrics(label string, item MetricItem) error {
	ms.mtx.Lock()
	defer ms.mtx.Unlock()

	if _, existed := ms.metrics[label]; existed {
		return errors.Wrap(ErrMetricLabelExist, label)
	}
	ms.metrics[label] = item
	return nil
}

func (ms *MetricSet) HasMetrics(label string) bool {
	ms.mtx.RLock()
	defer ms.mtx.RUnlock()
	_, existed := ms.metrics[label]
	return existed
}

// GetMetrics returns nil for an unknown label.
func (ms *MetricSet) GetMetrics(label string) MetricItem {
	ms.mtx.RLock()
	defer ms.mtx.RUnlock()
	return ms.metrics[label]
}

// Labels are sorted.
func (ms *MetricSet) Labels() []string {
	ms.mtx.RLock()
	defer ms.mtx.RUnlock()

	keys := make([]string, 0, len(ms.metrics))
	for k := range ms.metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot renders every item, keyed by label. Items that do not render
// valid JSON are kept as strings.
func (ms *MetricSet) Snapshot() map[string]jsoniter.RawMessage {
	ms.mtx.RLock()
	defer ms.mtx.RUnlock()

	res := make(map[string]jsoniter.RawMessage, len(ms.metrics))
	for label, item := range ms.metrics {
		s := item.JSONString()
		if !jsoniter.Valid([]byte(s)) {
			quoted, _ := jsoniter.Marshal(s)
			res[label] = quoted
			continue
		}
		res[label] = jsoniter.RawMessage(s)
	}
	return res
}

func (ms *MetricSet) JSONString() string {
	s, _ := jsoniter.MarshalToString(ms.Snapshot())
	return s
}
