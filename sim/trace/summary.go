package trace

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Summary aggregates delivery statistics over a run's records.
type Summary struct {
	Created       int            `yaml:"created"`
	Delivered     int            `yaml:"delivered"`
	DeliveryRatio float64        `yaml:"deliveryRatio"`
	Relayed       int            `yaml:"relayed"`  // completed transfers, deliveries included
	Overhead      float64        `yaml:"overhead"` // (relayed - delivered) / delivered
	Aborted       int            `yaml:"aborted"`
	Expired       int            `yaml:"expired"`
	Contacts      int            `yaml:"contacts"`
	MeanLatency   float64        `yaml:"meanLatency"`
	MaxLatency    float64        `yaml:"maxLatency"`
	LatencyP50    float64        `yaml:"latencyP50"`
	LatencyP90    float64        `yaml:"latencyP90"`
	LatencyP99    float64        `yaml:"latencyP99"`
	MeanHops      float64        `yaml:"meanHops"`
	Drops         map[string]int `yaml:"drops"` // reason → count
}

// Summarize computes aggregate statistics from a record sequence.
// Safe for nil or empty input (returns zero-value fields).
func Summarize(records []Record) *Summary {
	s := &Summary{Drops: make(map[string]int)}
	var latencies []float64
	var hops int
	for _, rec := range records {
		switch rec.Kind {
		case MessageCreated:
			s.Created++
		case MessageDelivered:
			s.Delivered++
			latencies = append(latencies, rec.Time-rec.Created)
			hops += rec.Hops
		case TransferCompleted:
			s.Relayed++
		case TransferAborted:
			s.Aborted++
		case MessageExpired:
			s.Expired++
		case MessageDropped:
			s.Drops[rec.Reason]++
		case ConnectionUp:
			s.Contacts++
		}
	}
	if s.Created > 0 {
		s.DeliveryRatio = float64(s.Delivered) / float64(s.Created)
	}
	if s.Delivered > 0 {
		s.Overhead = float64(s.Relayed-s.Delivered) / float64(s.Delivered)
		s.MeanHops = float64(hops) / float64(s.Delivered)
		sort.Float64s(latencies)
		s.MeanLatency = stat.Mean(latencies, nil)
		s.MaxLatency = latencies[len(latencies)-1]
		s.LatencyP50 = stat.Quantile(0.50, stat.LinInterp, latencies, nil)
		s.LatencyP90 = stat.Quantile(0.90, stat.LinInterp, latencies, nil)
		s.LatencyP99 = stat.Quantile(0.99, stat.LinInterp, latencies, nil)
	}
	return s
}

// DropReasons returns the observed drop reasons, sorted.
func (s *Summary) DropReasons() []string {
	out := make([]string, 0, len(s.Drops))
	for r := range s.Drops {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}
