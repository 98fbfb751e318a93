package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordBulkPriceRow(t *testing.T) {
	before := testutil.ToFloat64(BulkPriceRows.WithLabelValues("copy", "updated"))
	RecordBulkPriceRow("copy", "updated")
	RecordBulkPriceRow("copy", "updated")
	assert.Equal(t, before+2, testutil.ToFloat64(BulkPriceRows.WithLabelValues("copy", "updated")))
}

func TestRecordPricePush(t *testing.T) {
	before := testutil.ToFloat64(PricePushes.WithLabelValues("shopee", "error"))
	RecordPricePush("shopee", "error", time.Now())
	assert.Equal(t, before+1, testutil.ToFloat64(PricePushes.WithLabelValues("shopee", "error")))
}
