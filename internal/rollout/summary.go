package rollout

import "gonum.org/v1/gonum/stat"

// Summary aggregates the returns of a batch of episodes.
type Summary struct {
	Episodes   int
	Terminated int
	MeanReturn float64
	StdReturn  float64
	MeanSteps  float64
	Best       float64
	Worst      float64
}

func Summarize(eps []*Episode) Summary {
	var s Summary
	returns := make([]float64, 0, len(eps))
	steps := make([]float64, 0, len(eps))
	for _, ep := range eps {
		if ep == nil {
			continue
		}
		returns = append(returns, ep.Return)
		steps = append(steps, float64(ep.Steps))
		if ep.Terminated {
			s.Terminated++
		}
	}
	s.Episodes = len(returns)
	if s.Episodes == 0 {
		return s
	}

	if s.Episodes == 1 {
		s.MeanReturn = returns[0]
	} else {
		s.MeanReturn, s.StdReturn = stat.MeanStdDev(returns, nil)
	}
	s.MeanSteps = stat.Mean(steps, nil)
	s.Best, s.Worst = returns[0], returns[0]
	for _, r := range returns[1:] {
		s.Best = min(s.Best, r)
		s.Worst = max(s.Worst, r)
	}
	return s
}
