package analysis

const (
	highRiskThreshold   = 0.7
	mediumRiskThreshold = 0.5
	histogramBins       = 10
)

// Summary aggregates a batch's outcomes for dashboards and exports.
// Percentages are in the range 0-100.
type Summary struct {
	Total             int                `json:"total"`
	Analyzed          int                `json:"analyzed"`
	Processing        int                `json:"processing"`
	Errors            int                `json:"errors"`
	Flagged           int                `json:"flagged"`
	NotFlagged        int                `json:"notFlagged"`
	FlaggedRate       float64            `json:"flaggedRate"`
	AvgProcessingTime float64            `json:"avgProcessingTime"`
	AvgProbability0   float64            `json:"avgProbability0"`
	AvgProbability1   float64            `json:"avgProbability1"`
	HighRisk          int                `json:"highRisk"`
	MediumRisk        int                `json:"mediumRisk"`
	LowRisk           int                `json:"lowRisk"`
	Histogram         [histogramBins]int `json:"histogram"`
}

// Summarize computes batch statistics. Error outcomes count toward Errors
// only; processing outcomes toward Processing only.
func Summarize(outcomes []Outcome) Summary {
	s := Summary{Total: len(outcomes)}
	var sumTime, sumP0, sumP1 float64
	for _, o := range outcomes {
		sumTime += o.ProcessingTime
		switch {
		case o.Failed():
			s.Errors++
			continue
		case o.Processing():
			s.Processing++
			continue
		}

		s.Analyzed++
		sumP0 += o.Result.Probability0
		sumP1 += o.Result.Probability1
		if o.Result.PredictedClass == 1 {
			s.Flagged++
		} else {
			s.NotFlagged++
		}

		p1 := o.Result.Probability1
		switch {
		case p1 >= highRiskThreshold:
			s.HighRisk++
		case p1 >= mediumRiskThreshold:
			s.MediumRisk++
		default:
			s.LowRisk++
		}
		s.Histogram[histogramBin(p1)]++
	}

	if s.Total > 0 {
		s.AvgProcessingTime = sumTime / float64(s.Total)
	}
	if s.Analyzed > 0 {
		n := float64(s.Analyzed)
		s.FlaggedRate = float64(s.Flagged) / n * 100
		s.AvgProbability0 = sumP0 / n * 100
		s.AvgProbability1 = sumP1 / n * 100
	} else {
		s.AvgProbability0 = 50
		s.AvgProbability1 = 50
	}
	return s
}

func histogramBin(p float64) int {
	bin := int(p * histogramBins)
	if bin < 0 {
		return 0
	}
	if bin >= histogramBins {
		return histogramBins - 1
	}
	return bin
}
