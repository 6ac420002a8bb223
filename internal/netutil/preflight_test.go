package netutil_test

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/ashvinar/memory-layer/internal/netutil"
)

// TestPreflightNoopsWhenPortIsFree exercises the common path: nothing is
// listening on the probed port, so Preflight returns immediately without
// waiting out the retry window.
func TestPreflightNoopsWhenPortIsFree(t *testing.T) {
	log := logrus.NewEntry(logrus.New())
	err := netutil.Preflight(context.Background(), 59, log)
	require.NoError(t, err)
}
