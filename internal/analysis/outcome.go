package analysis

// ClassProcessing marks an outcome the classifier accepted but has not finished.
const ClassProcessing = -1

// Classification is the structured result extracted from a classifier response.
type Classification struct {
	PredictedClass int     `json:"predictedClass"`
	Probability0   float64 `json:"probability0"`
	Probability1   float64 `json:"probability1"`
}

// Confidence returns the probability of the winning class.
func (c Classification) Confidence() float64 {
	if c.Probability1 > c.Probability0 {
		return c.Probability1
	}
	return c.Probability0
}

// DefaultClassification is returned when a response cannot be parsed.
func DefaultClassification() Classification {
	return Classification{PredictedClass: 0, Probability0: 0.5, Probability1: 0.5}
}

// Outcome is the result of processing one request.
type Outcome struct {
	ID             string         `json:"id"`
	PrimaryText    string         `json:"primaryText,omitempty"`
	SecondaryText  string         `json:"secondaryText,omitempty"`
	Result         Classification `json:"result"`
	RawOutput      string         `json:"rawOutput"`
	ProcessingTime float64        `json:"processingTime"`
	Error          string         `json:"error,omitempty"`
	Attempts       int            `json:"attempts"`
}

// Failed reports whether the outcome carries an error.
func (o Outcome) Failed() bool { return o.Error != "" }

// Processing reports whether the classifier accepted the row without a result.
func (o Outcome) Processing() bool {
	return !o.Failed() && o.Result.PredictedClass == ClassProcessing
}

func newOutcome(req Request) Outcome {
	return Outcome{
		ID:            req.ID,
		PrimaryText:   req.PrimaryText,
		SecondaryText: req.SecondaryText,
	}
}

func errorOutcome(req Request, msg string, seconds float64, attempts int) Outcome {
	o := newOutcome(req)
	o.Result = DefaultClassification()
	o.RawOutput = "Error: " + msg
	o.ProcessingTime = seconds
	o.Error = msg
	o.Attempts = attempts
	return o
}
