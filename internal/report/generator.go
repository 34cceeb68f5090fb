package report

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MarcoGruber/ShiftCore/internal/archive"
	"github.com/MarcoGruber/ShiftCore/internal/storage"
)

const maxNotifyRetries = 3

// Store is the storage surface the generator needs.
type Store interface {
	GetShift(ctx context.Context, id uuid.UUID) (*storage.Shift, error)
	ListEventsByShift(ctx context.Context, shiftID uuid.UUID) ([]storage.Event, error)
	CreateArchive(ctx context.Context, archive *storage.Archive) error
}

// DeliveryOptions carries the transport knobs resolved from settings.
type DeliveryOptions struct {
	Recipients []string
	Format     string
}

// Notifier delivers a finished report to the configured recipients.
// Recipient resolution happens outside the lifecycle engine.
type Notifier interface {
	SendShiftReportNotifications(ctx context.Context, reportArchive *storage.Archive, report ShiftReport, opts DeliveryOptions) error
}

type Options struct {
	AutoSend    bool
	EmailFormat string
	Recipients  []string
	Notes       string
}

type StopReasonCount struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

type AssetReport struct {
	AssetID    uuid.UUID `json:"asset_id"`
	AssetName  string    `json:"asset_name"`
	EventCount int       `json:"event_count"`
	StopCount  int       `json:"stop_count"`
}

// ShiftReport is the derived KPI payload stored in a SHIFT_REPORT
// archive and handed to the notifier.
type ShiftReport struct {
	SchemaVersion  int               `json:"schema_version"`
	ShiftID        uuid.UUID         `json:"shift_id"`
	ShiftName      string            `json:"shift_name"`
	StartTime      time.Time         `json:"start_time"`
	EndTime        *time.Time        `json:"end_time"`
	TotalEvents    int               `json:"total_events"`
	StopEvents     int               `json:"stop_events"`
	TopStopReasons []StopReasonCount `json:"top_stop_reasons"`
	AssetReports   []AssetReport     `json:"asset_reports"`
	Notes          string            `json:"notes,omitempty"`
	GeneratedAt    time.Time         `json:"generated_at"`
}

type Result struct {
	ReportArchive *storage.Archive `json:"reportArchive"`
	Report        ShiftReport      `json:"report"`
	Notified      bool             `json:"notified"`
}

type Generator struct {
	store    Store
	notifier Notifier
	logger   *zap.Logger
}

// NewGenerator creates a report generator. notifier may be nil; the
// report is then archived without delivery.
func NewGenerator(store Store, notifier Notifier, logger *zap.Logger) *Generator {
	return &Generator{
		store:    store,
		notifier: notifier,
		logger:   logger,
	}
}

// GenerateAndArchiveShiftReport derives shift KPIs, persists them as a
// checksummed SHIFT_REPORT archive and, when auto-send is on, hands the
// result to the notifier with retries. Delivery failures are logged and
// reported through Result.Notified, never returned as errors.
func (g *Generator) GenerateAndArchiveShiftReport(ctx context.Context, shiftID uuid.UUID, opts Options) (*Result, error) {
	shift, err := g.store.GetShift(ctx, shiftID)
	if err != nil {
		return nil, fmt.Errorf("failed to load shift %s: %w", shiftID, err)
	}

	events, err := g.store.ListEventsByShift(ctx, shiftID)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}

	report := buildReport(shift, events, opts.Notes)

	data, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}

	reportArchive := &storage.Archive{
		Title:        fmt.Sprintf("Shift Report - %s (%s)", shift.Name, shift.StartTime.Format("2006-01-02")),
		ArchiveType:  storage.ArchiveTypeShiftReport,
		ArchivedData: data,
		DataChecksum: archive.Checksum(data),
		DataSize:     int64(len(data)),
		CreatedBy:    "report-generator",
	}

	if err := g.store.CreateArchive(ctx, reportArchive); err != nil {
		return nil, fmt.Errorf("failed to persist report archive: %w", err)
	}

	result := &Result{
		ReportArchive: reportArchive,
		Report:        report,
	}

	if opts.AutoSend {
		result.Notified = g.deliver(ctx, reportArchive, report, DeliveryOptions{
			Recipients: opts.Recipients,
			Format:     opts.EmailFormat,
		})
	}

	g.logger.Info("Shift report generated",
		zap.String("shift_id", shiftID.String()),
		zap.String("archive_id", reportArchive.ID.String()),
		zap.Int("total_events", report.TotalEvents),
		zap.Bool("notified", result.Notified))

	return result, nil
}

func (g *Generator) deliver(ctx context.Context, reportArchive *storage.Archive, report ShiftReport, opts DeliveryOptions) bool {
	if g.notifier == nil {
		g.logger.Warn("No notifier configured, report delivery skipped")
		return false
	}

	if len(opts.Recipients) == 0 {
		g.logger.Info("No recipients configured, report delivery skipped")
		return false
	}

	operation := func() error {
		return g.notifier.SendShiftReportNotifications(ctx, reportArchive, report, opts)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxNotifyRetries), ctx)

	if err := backoff.Retry(operation, policy); err != nil {
		g.logger.Error("Report delivery failed after retries",
			zap.String("archive_id", reportArchive.ID.String()),
			zap.Int("recipients", len(opts.Recipients)),
			zap.Error(err))
		return false
	}

	return true
}

func buildReport(shift *storage.Shift, events []storage.Event, notes string) ShiftReport {
	assetIndex := make(map[uuid.UUID]int)
	assetReports := make([]AssetReport, 0)
	stopReasons := make(map[string]int)
	stopEvents := 0

	for _, e := range events {
		idx, ok := assetIndex[e.AssetID]
		if !ok {
			idx = len(assetReports)
			assetIndex[e.AssetID] = idx
			assetReports = append(assetReports, AssetReport{
				AssetID:   e.AssetID,
				AssetName: e.AssetName,
			})
		}
		assetReports[idx].EventCount++

		if e.StopReason != "" {
			stopEvents++
			assetReports[idx].StopCount++
			stopReasons[e.StopReason]++
		}
	}

	topReasons := make([]StopReasonCount, 0, len(stopReasons))
	for reason, count := range stopReasons {
		topReasons = append(topReasons, StopReasonCount{Reason: reason, Count: count})
	}
	sort.Slice(topReasons, func(i, j int) bool {
		if topReasons[i].Count != topReasons[j].Count {
			return topReasons[i].Count > topReasons[j].Count
		}
		return topReasons[i].Reason < topReasons[j].Reason
	})
	if len(topReasons) > 5 {
		topReasons = topReasons[:5]
	}

	return ShiftReport{
		SchemaVersion:  1,
		ShiftID:        shift.ID,
		ShiftName:      shift.Name,
		StartTime:      shift.StartTime,
		EndTime:        shift.EndTime,
		TotalEvents:    len(events),
		StopEvents:     stopEvents,
		TopStopReasons: topReasons,
		AssetReports:   assetReports,
		Notes:          notes,
		GeneratedAt:    time.Now().UTC(),
	}
}
