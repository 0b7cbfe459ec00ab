package device

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/ardhq/biosync/pkg/httpclient"
	"github.com/ardhq/biosync/pkg/models"
	"github.com/ardhq/biosync/pkg/progress"
	"github.com/ardhq/biosync/pkg/tracing"
)

const punchTimeLayout = "2006-01-02 15:04:05"

// Collector fetches paginated resources from the device service. Transport
// failures mid-pagination are absorbed: the pages fetched so far are
// returned along with a non-nil error so callers can tell a complete result
// from a truncated one.
type Collector struct {
	http     *httpclient.Client
	logger   ectologger.Logger
	progress progress.Sink
}

func NewCollector(client *httpclient.Client, logger ectologger.Logger, sink progress.Sink) *Collector {
	if sink == nil {
		sink = progress.NewNoopSink()
	}
	return &Collector{
		http:     client,
		logger:   logger,
		progress: sink,
	}
}

// FetchAllPages walks cursor pagination from startURL, accumulating items in
// arrival order until next is absent or a page fails.
func (c *Collector) FetchAllPages(ctx context.Context, session *Session, startURL string, stage string) ([]json.RawMessage, error) {
	ctx, span := tracing.StartSpan(ctx, "device.Collector.FetchAllPages")
	defer span.End()

	var items []json.RawMessage
	next := startURL

	for next != "" {
		resp, err := c.http.Get(ctx, next, session.Headers())
		if err != nil {
			c.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"url":     next,
				"fetched": len(items),
			}).Error("Page fetch failed, stopping pagination")
			return items, fmt.Errorf("page fetch failed after %d items: %w", len(items), err)
		}

		if !resp.IsSuccess() {
			c.logger.WithContext(ctx).WithFields(map[string]any{
				"url":     next,
				"status":  resp.StatusCode,
				"fetched": len(items),
			}).Error("Page fetch returned non-success status, stopping pagination")
			return items, fmt.Errorf("page fetch returned status %d after %d items", resp.StatusCode, len(items))
		}

		var page pageEnvelope
		if err := json.Unmarshal(resp.Body, &page); err != nil {
			c.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"url": next}).Error("Failed to decode page envelope, stopping pagination")
			return items, fmt.Errorf("failed to decode page after %d items: %w", len(items), err)
		}

		items = append(items, page.Data...)

		if page.Count > 0 {
			c.progress.Publish(ctx, stage, len(items)*100/page.Count)
		}

		if page.Next == nil || *page.Next == "" {
			break
		}
		next = *page.Next
	}

	c.progress.Publish(ctx, stage, 100)
	return items, nil
}

// FetchEmployees fetches every enrollment on the device service. Each
// Employee keeps its raw payload for discovery staging.
func (c *Collector) FetchEmployees(ctx context.Context, session *Session) ([]Employee, error) {
	ctx, span := tracing.StartSpan(ctx, "device.Collector.FetchEmployees")
	defer span.End()

	items, fetchErr := c.FetchAllPages(ctx, session, session.BaseURL()+"/personnel/api/employees/", "fetching employees")

	employees := make([]Employee, 0, len(items))
	for _, item := range items {
		var emp Employee
		if err := json.Unmarshal(item, &emp); err != nil {
			c.logger.WithContext(ctx).WithError(err).Warn("Skipping undecodable employee record")
			continue
		}
		emp.Raw = item
		employees = append(employees, emp)
	}

	return employees, fetchErr
}

// FetchAreas fetches the device access zones.
func (c *Collector) FetchAreas(ctx context.Context, session *Session) ([]Area, error) {
	ctx, span := tracing.StartSpan(ctx, "device.Collector.FetchAreas")
	defer span.End()

	items, fetchErr := c.FetchAllPages(ctx, session, session.BaseURL()+"/personnel/api/areas/", "fetching areas")

	areas := make([]Area, 0, len(items))
	for _, item := range items {
		var area Area
		if err := json.Unmarshal(item, &area); err != nil {
			c.logger.WithContext(ctx).WithError(err).Warn("Skipping undecodable area record")
			continue
		}
		areas = append(areas, area)
	}

	return areas, fetchErr
}

// TransactionWindow returns the fetch window for a reference date: the first
// day of its month to the first day of the next month. The extra day past
// month end keeps boundary punches from being missed.
func TransactionWindow(ref time.Time) (time.Time, time.Time) {
	start := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, ref.Location())
	end := start.AddDate(0, 1, 0)
	return start, end
}

// FetchTransactions fetches punch events inside the month window around ref
// and converts them to punch events for ingestion.
func (c *Collector) FetchTransactions(ctx context.Context, session *Session, ref time.Time) ([]models.PunchEvent, error) {
	ctx, span := tracing.StartSpan(ctx, "device.Collector.FetchTransactions")
	defer span.End()

	start, end := TransactionWindow(ref)

	params := url.Values{}
	params.Set("start_time", start.Format(punchTimeLayout))
	params.Set("end_time", end.Format(punchTimeLayout))
	startURL := session.BaseURL() + "/iclock/api/transactions/?" + params.Encode()

	items, fetchErr := c.FetchAllPages(ctx, session, startURL, "fetching transactions")

	events := make([]models.PunchEvent, 0, len(items))
	for _, item := range items {
		var txn Transaction
		if err := json.Unmarshal(item, &txn); err != nil {
			c.logger.WithContext(ctx).WithError(err).Warn("Skipping undecodable transaction record")
			continue
		}

		punchTime, err := time.ParseInLocation(punchTimeLayout, txn.PunchTime, ref.Location())
		if err != nil {
			c.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"transaction_id": txn.ID,
				"punch_time":     txn.PunchTime,
			}).Warn("Skipping transaction with unparseable punch time")
			continue
		}

		events = append(events, models.PunchEvent{
			DeviceCode:    txn.EmpCode,
			TransactionID: fmt.Sprintf("%d", txn.ID),
			PunchTime:     punchTime,
			PunchState:    txn.PunchState,
		})
	}

	return events, fetchErr
}
