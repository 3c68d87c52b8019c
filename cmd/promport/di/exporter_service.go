package di

import (
	"fmt"

	"github.com/samber/do/v2"

	"github.com/omarluq/promport"
)

// ExporterService owns the exporter/writer pair for the process.
type ExporterService struct {
	Exporter *promport.Exporter
	Writer   *promport.Writer
}

// NewExporter creates the exporter pair from the loaded configuration.
// Binding happens here, so an unusable listen address fails container
// initialization instead of surfacing later.
func NewExporter(i do.Injector) (*ExporterService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)
	logSvc := do.MustInvoke[*LoggerService](i)

	exporter, writer, err := promport.New(cfgSvc.Get(), promport.WithLogger(*logSvc.Logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}

	return &ExporterService{
		Exporter: exporter,
		Writer:   writer,
	}, nil
}

// Shutdown implements do.Shutdowner. The endpoint drains in the background;
// in-flight scrapes get the exporter's drain timeout to finish.
func (s *ExporterService) Shutdown() error {
	return s.Exporter.Close()
}
