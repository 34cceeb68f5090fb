package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/MarcoGruber/ShiftCore/internal/config"
	"github.com/MarcoGruber/ShiftCore/internal/report"
	"github.com/MarcoGruber/ShiftCore/internal/storage"
)

// EmailNotifier delivers shift reports over SMTP.
type EmailNotifier struct {
	cfg    config.SMTPConfig
	logger *zap.Logger
}

func NewEmailNotifier(cfg config.SMTPConfig, logger *zap.Logger) *EmailNotifier {
	return &EmailNotifier{
		cfg:    cfg,
		logger: logger,
	}
}

// SendShiftReportNotifications sends one summary mail to all recipients.
func (n *EmailNotifier) SendShiftReportNotifications(ctx context.Context, reportArchive *storage.Archive, rep report.ShiftReport, opts report.DeliveryOptions) error {
	msg := mail.NewMsg()

	if err := msg.From(n.cfg.From); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(opts.Recipients...); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}

	msg.Subject(fmt.Sprintf("Shift Report: %s (%s)",
		rep.ShiftName, rep.StartTime.Format("2006-01-02")))

	if strings.EqualFold(opts.Format, "html") {
		msg.SetBodyString(mail.TypeTextHTML, renderHTML(rep))
	} else {
		msg.SetBodyString(mail.TypeTextPlain, renderText(rep))
	}

	client, err := mail.NewClient(n.cfg.Host,
		mail.WithPort(n.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(n.cfg.Username),
		mail.WithPassword(n.cfg.Password),
	)
	if err != nil {
		return fmt.Errorf("failed to create mail client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send report mail: %w", err)
	}

	n.logger.Info("Shift report mail sent",
		zap.String("archive_id", reportArchive.ID.String()),
		zap.Int("recipients", len(opts.Recipients)))

	return nil
}

func renderText(rep report.ShiftReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Shift Report: %s\n", rep.ShiftName)
	fmt.Fprintf(&b, "Start: %s\n", rep.StartTime.Format("2006-01-02 15:04"))
	if rep.EndTime != nil {
		fmt.Fprintf(&b, "End: %s\n", rep.EndTime.Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(&b, "Total events: %d\n", rep.TotalEvents)
	fmt.Fprintf(&b, "Stop events: %d\n", rep.StopEvents)

	if len(rep.TopStopReasons) > 0 {
		b.WriteString("\nTop stop reasons:\n")
		for _, r := range rep.TopStopReasons {
			fmt.Fprintf(&b, "  %s: %d\n", r.Reason, r.Count)
		}
	}

	if len(rep.AssetReports) > 0 {
		b.WriteString("\nPer asset:\n")
		for _, a := range rep.AssetReports {
			fmt.Fprintf(&b, "  %s: %d events, %d stops\n", a.AssetName, a.EventCount, a.StopCount)
		}
	}

	if rep.Notes != "" {
		fmt.Fprintf(&b, "\nNotes: %s\n", rep.Notes)
	}

	return b.String()
}

func renderHTML(rep report.ShiftReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "<h2>Shift Report: %s</h2>", rep.ShiftName)
	fmt.Fprintf(&b, "<p>Start: %s</p>", rep.StartTime.Format("2006-01-02 15:04"))
	if rep.EndTime != nil {
		fmt.Fprintf(&b, "<p>End: %s</p>", rep.EndTime.Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(&b, "<p>Total events: %d<br>Stop events: %d</p>", rep.TotalEvents, rep.StopEvents)

	if len(rep.AssetReports) > 0 {
		b.WriteString("<table border=\"1\" cellpadding=\"4\"><tr><th>Asset</th><th>Events</th><th>Stops</th></tr>")
		for _, a := range rep.AssetReports {
			fmt.Fprintf(&b, "<tr><td>%s</td><td>%d</td><td>%d</td></tr>", a.AssetName, a.EventCount, a.StopCount)
		}
		b.WriteString("</table>")
	}

	if rep.Notes != "" {
		fmt.Fprintf(&b, "<p>Notes: %s</p>", rep.Notes)
	}

	return b.String()
}
