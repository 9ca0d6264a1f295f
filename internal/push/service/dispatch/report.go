package dispatch

// Status classifies the outcome of one (instance, channel) attempt.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusSkipped Status = "skipped"
)

// Result is one entry in the dispatch report.
type Result struct {
	Instance string `json:"instance,omitempty"`
	Channel  string `json:"channel,omitempty"`
	Status   Status `json:"status"`
	Error    string `json:"error,omitempty"`
}

// Report aggregates a full dispatch pass. It is always complete: total
// failure across every instance still yields a report, never an error.
type Report struct {
	SuccessCount       int      `json:"success_count"`
	ErrorCount         int      `json:"error_count"`
	TotalInstances     int      `json:"total_instances"`
	ProcessedInstances []string `json:"processed_instances"`
	Results            []Result `json:"results"`
}

func (r *Report) add(res Result) {
	r.Results = append(r.Results, res)
	r.count(res)
}

func (r *Report) count(res Result) {
	switch res.Status {
	case StatusSuccess:
		r.SuccessCount++
	case StatusError:
		r.ErrorCount++
	}
}
