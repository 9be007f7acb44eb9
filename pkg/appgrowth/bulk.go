package appgrowth

import (
	"context"
	"fmt"
	"time"
)

// DefaultBulkPause is the pause between consecutive creations in a bulk run.
const DefaultBulkPause = 500 * time.Millisecond

// BulkRequest asks for every combination of Apps x Countries x Specs. Each
// app id doubles as the segment title.
type BulkRequest struct {
	Apps      []string
	Countries []string
	Specs     []SegmentSpec
	Pause     time.Duration

	// Skip, if set, is asked before each attempt. Skipped names are reported
	// but not submitted.
	Skip func(name string) bool
	// OnResult, if set, is called after each attempt.
	OnResult func(CreateResult)
}

func (r BulkRequest) Total() int {
	return len(r.Apps) * len(r.Countries) * len(r.Specs)
}

type BulkReport struct {
	Total   int      `json:"total"`
	Created []string `json:"created"`
	Failed  []string `json:"failed"`
	Skipped []string `json:"skipped,omitempty"`
}

func (r BulkReport) Summary() string {
	switch {
	case len(r.Created) > 0 && len(r.Failed) == 0:
		return fmt.Sprintf("All %d segments created successfully", len(r.Created))
	case len(r.Created) > 0:
		return fmt.Sprintf("%d/%d segments created. %d failed", len(r.Created), r.Total, len(r.Failed))
	case len(r.Failed) == 0 && len(r.Skipped) > 0:
		return fmt.Sprintf("Nothing to do, %d segments already exist", len(r.Skipped))
	default:
		return "Failed to create any segments"
	}
}

// CreateBulk creates the segments one by one, pausing between requests so
// the remote side is not hammered. Cancelling ctx stops the run; segments
// not yet attempted are left out of the report.
func (sc *SegmentCreator) CreateBulk(ctx context.Context, req BulkRequest) BulkReport {
	pause := req.Pause
	if pause <= 0 {
		pause = DefaultBulkPause
	}

	report := BulkReport{Total: req.Total()}
	first := true

	sc.log.Info().Int("total", report.Total).Msg("Creating segments")

	for _, app := range req.Apps {
		for _, country := range req.Countries {
			for _, spec := range req.Specs {
				name := SegmentName(app, country, spec.Type, spec.Value)
				if req.Skip != nil && req.Skip(name) {
					report.Skipped = append(report.Skipped, name)
					continue
				}

				if !first {
					if err := SleepContext(ctx, pause); err != nil {
						sc.log.Warn().Err(err).Msg("Bulk creation interrupted")
						return report
					}
				}
				first = false

				res := sc.CreateSegment(ctx, SegmentRequest{
					Name:    name,
					Title:   app,
					AppID:   app,
					Country: country,
					Type:    spec.Type,
					Value:   spec.Value,
				})

				if res.Created {
					report.Created = append(report.Created, name)
				} else {
					report.Failed = append(report.Failed, name)
				}

				if req.OnResult != nil {
					req.OnResult(res)
				}
			}
		}
	}

	sc.log.Info().Int("created", len(report.Created)).Int("failed", len(report.Failed)).Msg("Bulk creation finished")

	return report
}
