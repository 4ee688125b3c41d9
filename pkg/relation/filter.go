package relation

import (
	"fmt"
	"time"
)

// RunFilter narrows what a relation reference reads during a run.
type RunFilter struct {
	// Empty renders the relation as a zero-row subquery.
	Empty bool
	// SampleStart and SampleEnd bound the event time of sampled rows.
	SampleStart *time.Time
	SampleEnd   *time.Time
}

// RenderWithFilter renders the relation wrapped in the subquery a run filter
// asks for. Sampling needs an event time column; without one the sample is
// ignored.
func (r *Relation) RenderWithFilter(f RunFilter, eventTime string) string {
	rendered := r.Render()
	if f.Empty {
		rendered = fmt.Sprintf("(select * from %s limit 0)", rendered)
	}
	if eventTime == "" {
		return rendered
	}

	var filter string
	switch {
	case f.SampleStart != nil && f.SampleEnd != nil:
		filter = fmt.Sprintf("%s >= '%s' and %s < '%s'", eventTime, isoformat(*f.SampleStart), eventTime, isoformat(*f.SampleEnd))
	case f.SampleEnd != nil:
		filter = fmt.Sprintf("%s < '%s'", eventTime, isoformat(*f.SampleEnd))
	case f.SampleStart != nil:
		filter = fmt.Sprintf("%s >= '%s'", eventTime, isoformat(*f.SampleStart))
	default:
		return rendered
	}
	return fmt.Sprintf("(select * from %s where %s)", rendered, filter)
}

// isoformat renders a naive UTC timestamp, including microseconds only when
// they are non-zero.
func isoformat(t time.Time) string {
	t = t.UTC()
	if t.Nanosecond()/1000 == 0 {
		return t.Format("2006-01-02T15:04:05")
	}
	return t.Format("2006-01-02T15:04:05.000000")
}
