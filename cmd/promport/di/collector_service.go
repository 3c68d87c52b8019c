package di

import (
	"github.com/samber/do/v2"

	"github.com/omarluq/promport/internal/selfmetrics"
)

// CollectorService wraps the process self-metrics collector.
type CollectorService struct {
	Collector *selfmetrics.Collector
}

// NewCollector creates the self-metrics collector.
func NewCollector(do.Injector) (*CollectorService, error) {
	return &CollectorService{
		Collector: selfmetrics.New(),
	}, nil
}
