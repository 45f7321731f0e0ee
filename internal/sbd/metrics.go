package sbd

// ComputeMetrics derives precision, recall, accuracy, F1, TPR and FPR from
// frame counts. Any ratio whose denominator is zero is reported as 0, so a
// video without positives never produces NaN.
func ComputeMetrics(c ConfusionCounts) Metrics {
	var m Metrics
	m.Precision = ratio(c.TP, c.TP+c.FP)
	m.Recall = ratio(c.TP, c.TP+c.FN)
	m.Accuracy = ratio(c.TP+c.TN, c.Total())
	if m.Precision+m.Recall != 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	m.TPR = m.Recall
	if c.TN+c.FP != 0 {
		m.FPR = 1 - ratio(c.TN, c.TN+c.FP)
	}
	return m
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
