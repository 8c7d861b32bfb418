package rpc

import (
	"fmt"

	rpctypes "github.com/tendermint/tendermint/rpc/jsonrpc/types"
)

type ResultMetrics struct {
	Metrics map[string]string `json:"metrics"`
}

// JSONMetrics returns the item under label, or every item when label is empty.
func JSONMetrics(ctx *rpctypes.Context, label string) (*ResultMetrics, error) {
	result := &ResultMetrics{Metrics: make(map[string]string)}

	var labels []string
	if label != "" {
		labels = []string{label}
	} else {
		labels = env.MetricSet.Labels()
	}

	for _, l := range labels {
		item := env.MetricSet.GetMetrics(l)
		if item == nil {
			return nil, fmt.Errorf("unknown metric label %q", l)
		}
		result.Metrics[l] = item.JSONString()
	}

	return result, nil
}
