package output

import (
	"log/slog"

	"github.com/nvandessel/epinet/internal/simulation"
)

// Paths selects which sinks to open. Empty paths are skipped.
type Paths struct {
	Series string
	States string
	Arrow  string
}

// Open opens every configured sink. A sink that cannot be opened is logged
// and skipped; the run proceeds with the rest.
func Open(p Paths, logger *slog.Logger) []simulation.Observer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	var sinks []simulation.Observer
	add := func(kind, path string, open func(string) (simulation.Observer, error)) {
		if path == "" {
			return
		}
		obs, err := open(path)
		if err != nil {
			logger.Warn("output disabled", "kind", kind, "path", path, "error", err)
			return
		}
		logger.Debug("output enabled", "kind", kind, "path", path)
		sinks = append(sinks, obs)
	}
	add("series", p.Series, func(path string) (simulation.Observer, error) { return NewSeriesCSV(path) })
	add("states", p.States, func(path string) (simulation.Observer, error) { return NewStatesCSV(path) })
	add("arrow", p.Arrow, func(path string) (simulation.Observer, error) { return NewArrowSeries(path) })
	return sinks
}
