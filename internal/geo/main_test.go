package geo

import (
	"os"
	"testing"

	"github.com/gitscout/gitscout/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.Init()
	os.Exit(m.Run())
}
