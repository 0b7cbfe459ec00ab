// Package syncer orchestrates sync runs: it loads the device settings,
// opens an authenticated session, and drives the collector, engines and
// publisher.
package syncer

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/ardhq/biosync/config"
	"github.com/ardhq/biosync/pkg/device"
	"github.com/ardhq/biosync/pkg/events"
	"github.com/ardhq/biosync/pkg/httpclient"
	"github.com/ardhq/biosync/pkg/ingest"
	"github.com/ardhq/biosync/pkg/metrics"
	"github.com/ardhq/biosync/pkg/models"
	"github.com/ardhq/biosync/pkg/reconcile"
	"github.com/ardhq/biosync/pkg/tracing"
)

// SettingsStore loads the device connection settings.
type SettingsStore interface {
	Get(ctx context.Context) (*models.DeviceSettings, error)
}

// EmployeeSource lists employees for back-propagation.
type EmployeeSource interface {
	ListUnlinked(ctx context.Context) ([]models.HrEmployee, error)
}

// Service ties the sync operations together. Callers are expected to
// serialize runs of the same operation; the HTTP layer does this with the
// run lock.
type Service struct {
	cfg        *config.Config
	logger     ectologger.Logger
	http       *httpclient.Client
	collector  *device.Collector
	publisher  *device.Publisher
	reconciler *reconcile.Engine
	ingester   *ingest.Engine
	settings   SettingsStore
	employees  EmployeeSource
	emitter    *events.Emitter
}

func NewService(
	cfg *config.Config,
	logger ectologger.Logger,
	client *httpclient.Client,
	collector *device.Collector,
	publisher *device.Publisher,
	reconciler *reconcile.Engine,
	ingester *ingest.Engine,
	settings SettingsStore,
	employees EmployeeSource,
	emitter *events.Emitter,
) *Service {
	return &Service{
		cfg:        cfg,
		logger:     logger,
		http:       client,
		collector:  collector,
		publisher:  publisher,
		reconciler: reconciler,
		ingester:   ingester,
		settings:   settings,
		employees:  employees,
		emitter:    emitter,
	}
}

// connect loads settings and opens an authenticated device session. The
// stored settings win; config only seeds a fallback before first save.
func (s *Service) connect(ctx context.Context) (*device.Session, *models.DeviceSettings, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		settings = &models.DeviceSettings{
			BaseURL:  s.cfg.DeviceBaseURL,
			Username: s.cfg.DeviceUsername,
			Password: s.cfg.DevicePassword,
		}
	}

	session := device.NewSession(*settings, s.http, s.logger)
	if err := session.Connect(ctx); err != nil {
		return nil, nil, err
	}

	return session, settings, nil
}

// TestConnection verifies the stored settings can authenticate.
func (s *Service) TestConnection(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "syncer.Service.TestConnection")
	defer span.End()

	_, _, err := s.connect(ctx)
	return err
}

// Discover runs employee discovery.
func (s *Service) Discover(ctx context.Context) (models.DiscoveryReport, error) {
	ctx, span := tracing.StartSpan(ctx, "syncer.Service.Discover")
	defer span.End()

	start := time.Now()

	session, _, err := s.connect(ctx)
	if err != nil {
		metrics.RecordSyncRun("discover", "error", time.Since(start).Seconds())
		return models.DiscoveryReport{}, err
	}

	report, err := s.reconciler.Discover(ctx, session)
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordSyncRun("discover", status, time.Since(start).Seconds())

	return report, err
}

// SyncTransactions fetches and ingests punch events for the settings
// reference date (today when unset).
func (s *Service) SyncTransactions(ctx context.Context) (models.IngestReport, error) {
	ctx, span := tracing.StartSpan(ctx, "syncer.Service.SyncTransactions")
	defer span.End()

	settings, err := s.settings.Get(ctx)
	ref := time.Now()
	if err == nil && settings.ReferenceDate != nil {
		ref = *settings.ReferenceDate
	}

	return s.SyncTransactionsAt(ctx, ref)
}

// SyncTransactionsAt fetches and ingests punch events for the month window
// around ref. A truncated fetch still ingests the events that arrived.
func (s *Service) SyncTransactionsAt(ctx context.Context, ref time.Time) (models.IngestReport, error) {
	ctx, span := tracing.StartSpan(ctx, "syncer.Service.SyncTransactionsAt")
	defer span.End()

	start := time.Now()

	session, _, err := s.connect(ctx)
	if err != nil {
		metrics.RecordSyncRun("transactions", "error", time.Since(start).Seconds())
		return models.IngestReport{}, err
	}

	punchEvents, fetchErr := s.collector.FetchTransactions(ctx, session, ref)
	if fetchErr != nil && len(punchEvents) == 0 {
		metrics.RecordSyncRun("transactions", "error", time.Since(start).Seconds())
		return models.IngestReport{}, fetchErr
	}

	report, err := s.ingester.Ingest(ctx, punchEvents)
	if err != nil {
		metrics.RecordSyncRun("transactions", "error", time.Since(start).Seconds())
		return report, err
	}

	if fetchErr != nil {
		report.Notices = append(report.Notices, "punch event fetch stopped early; rerun to pick up the remainder")
		report.Message += " (fetch incomplete)"
	}

	metrics.RecordSyncRun("transactions", "success", time.Since(start).Seconds())
	return report, nil
}

// PublishEmployees pushes every active unlinked HR employee to the device
// service.
func (s *Service) PublishEmployees(ctx context.Context) (models.PublishReport, error) {
	ctx, span := tracing.StartSpan(ctx, "syncer.Service.PublishEmployees")
	defer span.End()

	start := time.Now()

	session, _, err := s.connect(ctx)
	if err != nil {
		metrics.RecordSyncRun("employees", "error", time.Since(start).Seconds())
		return models.PublishReport{}, err
	}

	areas, areasErr := s.collector.FetchAreas(ctx, session)
	if areasErr != nil {
		// publishing can proceed with the default area
		s.logger.WithContext(ctx).WithError(areasErr).Warn("Area fetch incomplete, default area may be used")
	}

	emps, err := s.employees.ListUnlinked(ctx)
	if err != nil {
		metrics.RecordSyncRun("employees", "error", time.Since(start).Seconds())
		return models.PublishReport{}, err
	}

	report := s.publisher.PublishAll(ctx, session, areas, emps)

	if s.emitter != nil {
		for _, result := range report.Results {
			if result.Status == models.PublishStatusPublished {
				s.emitter.EmitEmployeePublished(ctx, result)
			}
		}
	}

	metrics.RecordSyncRun("employees", "success", time.Since(start).Seconds())
	return report, nil
}
