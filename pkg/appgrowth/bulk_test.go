package appgrowth_test

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"appgrowth-segmenter/pkg/appgrowth"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func bulkRequest() appgrowth.BulkRequest {
	return appgrowth.BulkRequest{
		Apps:      []string{"com.easybrain.sudoku", "com.easybrain.nonogram"},
		Countries: []string{"usa", "DEU"},
		Specs: []appgrowth.SegmentSpec{
			{Type: appgrowth.RetainedAtLeast, Value: 7},
			{Type: appgrowth.ActiveUsers, Value: 0.95},
		},
		Pause: time.Millisecond,
	}
}

func TestSegmentCreator_CreateBulk(t *testing.T) {
	t.Run("partial failure", func(t *testing.T) {
		f := newFakeAppGrowth()
		f.segmentStatus = func(form url.Values) (int, string) {
			if strings.Contains(form.Get("name"), "_DEU_") {
				return http.StatusInternalServerError, "duplicate"
			}
			return http.StatusFound, ""
		}
		s, _, buf := newTestSession(t, f)
		sc := appgrowth.NewSegmentCreator(s, zerolog.New(buf))

		var results []appgrowth.CreateResult
		req := bulkRequest()
		req.OnResult = func(r appgrowth.CreateResult) { results = append(results, r) }

		report := sc.CreateBulk(context.Background(), req)
		require.Equal(t, 8, report.Total)
		require.Len(t, report.Created, 4)
		require.Len(t, report.Failed, 4)
		require.Len(t, results, 8)
		require.Contains(t, report.Created, "bloom_com.easybrain.sudoku_USA_7d")
		require.Contains(t, report.Failed, "bloom_com.easybrain.nonogram_DEU_95")
		require.Equal(t, "4/8 segments created. 4 failed", report.Summary())

		_, _, _, segmentPosts := f.counts()
		require.Equal(t, 8, segmentPosts)
	})

	t.Run("all created", func(t *testing.T) {
		f := newFakeAppGrowth()
		s, _, buf := newTestSession(t, f)
		sc := appgrowth.NewSegmentCreator(s, zerolog.New(buf))

		report := sc.CreateBulk(context.Background(), bulkRequest())
		require.Len(t, report.Created, 8)
		require.Empty(t, report.Failed)
		require.Equal(t, "All 8 segments created successfully", report.Summary())
	})

	t.Run("skip", func(t *testing.T) {
		f := newFakeAppGrowth()
		s, _, buf := newTestSession(t, f)
		sc := appgrowth.NewSegmentCreator(s, zerolog.New(buf))

		req := bulkRequest()
		req.Skip = func(string) bool { return true }

		report := sc.CreateBulk(context.Background(), req)
		require.Len(t, report.Skipped, 8)
		require.Equal(t, "Nothing to do, 8 segments already exist", report.Summary())

		_, _, formGets, _ := f.counts()
		require.Zero(t, formGets)
	})

	t.Run("cancel stops the run", func(t *testing.T) {
		f := newFakeAppGrowth()
		s, _, buf := newTestSession(t, f)
		sc := appgrowth.NewSegmentCreator(s, zerolog.New(buf))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		req := bulkRequest()
		req.Pause = time.Hour
		req.OnResult = func(appgrowth.CreateResult) { cancel() }

		report := sc.CreateBulk(ctx, req)
		require.Len(t, report.Created, 1)
		require.Empty(t, report.Failed)
	})

	t.Run("nothing created", func(t *testing.T) {
		f := newFakeAppGrowth()
		f.formPage = "<html></html>"
		s, _, buf := newTestSession(t, f)
		sc := appgrowth.NewSegmentCreator(s, zerolog.New(buf))

		report := sc.CreateBulk(context.Background(), bulkRequest())
		require.Empty(t, report.Created)
		require.Equal(t, "Failed to create any segments", report.Summary())
	})
}
