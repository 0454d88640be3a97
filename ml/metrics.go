package ml

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
)

// ClassMetrics are the per-class scores of a classification report.
type ClassMetrics struct {
	Label     string  `json:"label"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Report summarises predictions on the held-out partition.
// Confusion[actual][predicted] counts samples.
type Report struct {
	Classes   [2]ClassMetrics `json:"classes"`
	Accuracy  float64         `json:"accuracy"`
	Confusion [2][2]int       `json:"confusion"`
	Total     int             `json:"total"`
}

// Evaluate builds a Report from true and predicted classes.
func Evaluate(yTrue, yPred []int) (Report, error) {
	var report Report
	if len(yTrue) != len(yPred) {
		return report, errors.New("yTrue and yPred size mismatch")
	}
	for i := range yTrue {
		if yTrue[i] < 0 || yTrue[i] > 1 || yPred[i] < 0 || yPred[i] > 1 {
			return report, fmt.Errorf("sample %d: classes must be 0 or 1", i)
		}
		report.Confusion[yTrue[i]][yPred[i]]++
	}
	report.Total = len(yTrue)

	correct := report.Confusion[0][0] + report.Confusion[1][1]
	if report.Total > 0 {
		report.Accuracy = float64(correct) / float64(report.Total)
	}

	for class := 0; class < 2; class++ {
		other := 1 - class
		tp := report.Confusion[class][class]
		fp := report.Confusion[other][class]
		fn := report.Confusion[class][other]

		m := ClassMetrics{Label: DecodePrediction(class), Support: tp + fn}
		if tp+fp > 0 {
			m.Precision = float64(tp) / float64(tp+fp)
		}
		if tp+fn > 0 {
			m.Recall = float64(tp) / float64(tp+fn)
		}
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		report.Classes[class] = m
	}
	return report, nil
}

// String renders the report as a text table followed by the confusion matrix.
func (r Report) String() string {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "class\tprecision\trecall\tf1-score\tsupport\t")
	for _, m := range r.Classes {
		fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.2f\t%d\t\n", m.Label, m.Precision, m.Recall, m.F1, m.Support)
	}
	fmt.Fprintf(w, "accuracy\t\t\t%.2f\t%d\t\n", r.Accuracy, r.Total)
	_ = w.Flush()

	fmt.Fprintf(&sb, "\nconfusion matrix (rows=actual, cols=predicted)\n")
	fmt.Fprintf(&sb, "     %s    %s\n", Rejected, Approved)
	fmt.Fprintf(&sb, "%s  %4d %4d\n", Rejected, r.Confusion[0][0], r.Confusion[0][1])
	fmt.Fprintf(&sb, "%s  %4d %4d\n", Approved, r.Confusion[1][0], r.Confusion[1][1])
	return sb.String()
}
