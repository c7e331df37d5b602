// Package report handles community report submission, review and export
package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/kidregistry/internal/errs"
	"github.com/ppiankov/kidregistry/internal/logger"
	"github.com/ppiankov/kidregistry/internal/metrics"
	"github.com/ppiankov/kidregistry/internal/model"
	"github.com/ppiankov/kidregistry/internal/store"
	"github.com/ppiankov/kidregistry/internal/validate"
)

// SubmitResult reports the stored record and, separately, the notification outcome
type SubmitResult struct {
	Report    *model.Report
	Stored    bool
	Notified  bool
	NotifyErr error
}

// Service coordinates validation, storage and notification
type Service struct {
	reports   store.Reports
	validator *validate.Validator
	notifier  Notifier
	policy    model.NotifyPolicy
	metrics   *metrics.Metrics
	log       *logger.Logger
}

// NewService creates a report service. A nil notifier disables notification.
func NewService(reports store.Reports, v *validate.Validator, n Notifier, policy model.NotifyPolicy, m *metrics.Metrics) *Service {
	if v == nil {
		v = validate.New(nil)
	}
	if policy == "" {
		policy = model.NotifyBestEffort
	}
	return &Service{
		reports:   reports,
		validator: v,
		notifier:  n,
		policy:    policy,
		metrics:   m,
		log:       logger.Named("report"),
	}
}

// Submit stores the report first, then notifies. Storage failures are
// StorageUnavailable and skip notification. A notification failure is
// returned as NotificationFailure only under the required policy; under
// best_effort it is carried in the result with a nil error.
func (s *Service) Submit(ctx context.Context, sub model.ReportSubmission) (SubmitResult, error) {
	sub.SuspectName = strings.TrimSpace(sub.SuspectName)
	sub.Location = strings.TrimSpace(sub.Location)
	sub.Description = strings.TrimSpace(sub.Description)
	if err := s.validator.Submission(sub); err != nil {
		return SubmitResult{}, err
	}

	r, err := s.reports.CreateReport(ctx, model.Report{
		SuspectName: sub.SuspectName,
		Location:    sub.Location,
		Description: sub.Description,
		Attachments: sub.Attachments,
		Status:      model.ReportPending,
		ReporterIP:  sub.ReporterIP,
	})
	if err != nil {
		return SubmitResult{}, errs.Storage("create report", err)
	}
	res := SubmitResult{Report: r, Stored: true}
	log := s.log.With().Int64("report_id", r.ID).Logger()

	if s.notifier == nil {
		s.metrics.Report(false)
		log.Info().Msg("report stored")
		return res, nil
	}

	if err := s.notifier.Notify(ctx, r.NotificationPayload()); err != nil {
		res.NotifyErr = err
		s.metrics.Report(false)
		log.Warn().Err(err).Str("policy", string(s.policy)).Msg("report stored, notification failed")
		if s.policy == model.NotifyRequired {
			return res, errs.Notification(err)
		}
		return res, nil
	}
	res.Notified = true
	s.metrics.Report(true)
	log.Info().Msg("report stored and notified")
	return res, nil
}

// Review moves a report to status with a note
func (s *Service) Review(ctx context.Context, id int64, status model.ReportStatus, note string) (*model.Report, error) {
	if !status.Valid() {
		return nil, errs.Invalid("status", fmt.Sprintf("unknown status %q", status))
	}
	cur, err := s.reports.GetReport(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errs.NotFound(fmt.Sprintf("report %d", id))
	}
	if err != nil {
		return nil, errs.Storage("get report", err)
	}
	if !cur.Status.CanTransition(status) {
		return nil, errs.Invalid("status", fmt.Sprintf("cannot move report from %s to %s", cur.Status, status))
	}
	r, err := s.reports.UpdateReport(ctx, id, status, strings.TrimSpace(note))
	if err != nil {
		return nil, errs.Storage("update report", err)
	}
	s.log.Info().Int64("report_id", id).Str("status", string(status)).Msg("report reviewed")
	return r, nil
}

// List returns reports with status, or all when status is empty
func (s *Service) List(ctx context.Context, status model.ReportStatus) ([]model.Report, error) {
	if status != "" && !status.Valid() {
		return nil, errs.Invalid("status", fmt.Sprintf("unknown status %q", status))
	}
	rs, err := s.reports.ListReports(ctx, status)
	if err != nil {
		return nil, errs.Storage("list reports", err)
	}
	return rs, nil
}

// Export writes every report with one of statuses (all when empty) as a
// workbook, loading each status concurrently. It returns the row count.
func (s *Service) Export(ctx context.Context, w io.Writer, statuses ...model.ReportStatus) (int, error) {
	if len(statuses) == 0 {
		statuses = model.ReportStatuses
	}
	for _, st := range statuses {
		if !st.Valid() {
			return 0, errs.Invalid("status", fmt.Sprintf("unknown status %q", st))
		}
	}

	parts := make([][]model.Report, len(statuses))
	g, gctx := errgroup.WithContext(ctx)
	for i, st := range statuses {
		g.Go(func() error {
			rs, err := s.reports.ListReports(gctx, st)
			if err != nil {
				return errs.Storage("list reports", err)
			}
			parts[i] = rs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	seen := make(map[int64]bool)
	var all []model.Report
	for _, rs := range parts {
		for _, r := range rs {
			if !seen[r.ID] {
				seen[r.ID] = true
				all = append(all, r)
			}
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})

	if err := WriteWorkbook(w, all); err != nil {
		return 0, err
	}
	s.log.Info().Int("reports", len(all)).Msg("reports exported")
	return len(all), nil
}
