package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordFetch(t *testing.T) {
	before := testutil.ToFloat64(FetchTotal.WithLabelValues(OutcomeParse))

	RecordFetch(OutcomeParse, 20*time.Millisecond)

	assert.Equal(t, before+1, testutil.ToFloat64(FetchTotal.WithLabelValues(OutcomeParse)))
}

func TestRecordSync(t *testing.T) {
	failedBefore := testutil.ToFloat64(FeedsTotal.WithLabelValues("failed"))
	okBefore := testutil.ToFloat64(SyncTotal.WithLabelValues("ok"))

	RecordSync("ok", time.Second, 3, 2, 0, 42)

	assert.Equal(t, failedBefore+2, testutil.ToFloat64(FeedsTotal.WithLabelValues("failed")))
	assert.Equal(t, okBefore+1, testutil.ToFloat64(SyncTotal.WithLabelValues("ok")))
	assert.Equal(t, float64(42), testutil.ToFloat64(Articles))
}

func TestSetRefreshing(t *testing.T) {
	SetRefreshing(true)
	assert.Equal(t, float64(1), testutil.ToFloat64(Refreshing))

	SetRefreshing(false)
	assert.Equal(t, float64(0), testutil.ToFloat64(Refreshing))
}
