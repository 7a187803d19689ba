package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/pscheid92/stockpulse/internal/domain"
	"github.com/pscheid92/stockpulse/internal/inventory"
)

// maxDigestLines caps each digest section; the remainder is summarised as a count.
const maxDigestLines = 20

// DigestResult counts the outcome of one SendDigests run.
type DigestResult struct {
	Sent    int
	Skipped int
	Failed  int
}

// BuildDigest renders the user's critical, below-threshold and expiring-soon
// materials as plain text. It returns an empty string when nothing needs attention.
func (s *Service) BuildDigest(ctx context.Context, userID uuid.UUID) (string, error) {
	today := s.today()
	materials, err := s.materials.List(ctx, userID, domain.MaterialFilter{Today: today, SoonDays: inventory.SoonDays})
	if err != nil {
		return "", mapError(err, "failed to list materials")
	}

	rows := inventory.ClassifyAll(materials, today)

	var critical, low, expiring []inventory.Row
	for _, r := range rows {
		switch {
		case r.Critical:
			critical = append(critical, r)
		case r.BelowThreshold:
			low = append(low, r)
		case r.ExpiryStatus == inventory.ExpirySoon:
			expiring = append(expiring, r)
		}
	}
	if len(critical)+len(low)+len(expiring) == 0 {
		return "", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Inventory digest for %s\n", today.Format("2006-01-02"))
	writeDigestSection(&b, "Critical", critical, func(r inventory.Row) string {
		if r.ExpiryStatus == inventory.ExpiryExpired {
			return fmt.Sprintf("%s: expired %d days ago", r.Name, -*r.DaysUntilExpiry)
		}
		return fmt.Sprintf("%s: out of stock", r.Name)
	})
	writeDigestSection(&b, "Below threshold", low, func(r inventory.Row) string {
		return fmt.Sprintf("%s: %s of %s %s", r.Name,
			inventory.FormatQuantity(r.CurrentQuantity), inventory.FormatQuantity(r.MinThreshold), r.Unit.Label())
	})
	writeDigestSection(&b, "Expiring soon", expiring, func(r inventory.Row) string {
		return fmt.Sprintf("%s: expires in %d days", r.Name, *r.DaysUntilExpiry)
	})
	return strings.TrimRight(b.String(), "\n"), nil
}

func writeDigestSection(b *strings.Builder, title string, rows []inventory.Row, line func(inventory.Row) string) {
	if len(rows) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s (%d)\n", title, len(rows))
	for i, r := range rows {
		if i == maxDigestLines {
			fmt.Fprintf(b, "... and %d more\n", len(rows)-maxDigestLines)
			break
		}
		b.WriteString("- " + line(r) + "\n")
	}
}

// SendDigests delivers a digest to every user with a notification chat. A failure
// for one user is logged and does not stop the others.
func (s *Service) SendDigests(ctx context.Context) (DigestResult, error) {
	var result DigestResult
	if s.notifier == nil {
		return result, nil
	}

	users, err := s.users.ListNotifiable(ctx)
	if err != nil {
		return result, mapError(err, "failed to list notifiable users")
	}

	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if u.NotifyChatID == nil {
			result.Skipped++
			continue
		}

		outcome := s.sendDigest(ctx, u)
		switch outcome {
		case "sent":
			result.Sent++
		case "empty":
			result.Skipped++
		default:
			result.Failed++
		}
		if s.metrics != nil {
			s.metrics.DigestMessagesSent.WithLabelValues(outcome).Inc()
		}
	}

	slog.InfoContext(ctx, "Digest run finished",
		"sent", result.Sent,
		"skipped", result.Skipped,
		"failed", result.Failed,
	)
	return result, nil
}

func (s *Service) sendDigest(ctx context.Context, u domain.User) string {
	text, err := s.BuildDigest(ctx, u.ID)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to build digest", "user_id", u.ID, "error", err)
		return "error"
	}
	if text == "" {
		return "empty"
	}
	if err := s.notifier.Send(ctx, *u.NotifyChatID, text); err != nil {
		slog.ErrorContext(ctx, "Failed to send digest", "user_id", u.ID, "error", err)
		return "error"
	}
	return "sent"
}
