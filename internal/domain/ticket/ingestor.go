package ticket

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"

	"jdcportal/internal/domain/notification"
	"jdcportal/internal/mail"
)

// Notifier is the slice of the notification service the ingestor uses.
type Notifier interface {
	NotifySector(ctx context.Context, sector string, t notification.Type, title, message, link string) (string, error)
	NotifyAdmins(ctx context.Context, t notification.Type, title, message, link string) (string, error)
}

type IngestResult struct {
	Fetched int `json:"fetched"`
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

type Ingestor struct {
	repo     *Repository
	mailbox  mail.Mailbox
	notifier Notifier
	sectors  []sectorPattern
	query    string
	max      int64
}

func NewIngestor(repo *Repository, mailbox mail.Mailbox, notifier Notifier, sectors []string, query string, max int64) *Ingestor {
	return &Ingestor{
		repo:     repo,
		mailbox:  mailbox,
		notifier: notifier,
		sectors:  compileSectors(sectors),
		query:    query,
		max:      max,
	}
}

// Ingest turns unread mails into tickets. A message already ingested is only
// marked read again, so a retried run never duplicates tickets.
func (in *Ingestor) Ingest(ctx context.Context) (IngestResult, error) {
	var res IngestResult

	session, err := in.mailbox.Open(ctx)
	if err != nil {
		return res, err
	}
	msgs, err := session.ListUnread(ctx, in.query, in.max)
	if err != nil {
		return res, err
	}
	res.Fetched = len(msgs)

	for _, m := range msgs {
		created, err := in.ingestOne(ctx, session, m)
		if err != nil {
			res.Failed++
			log.Printf("mail-ingestion message=%s err=%v", m.ID, err)
			continue
		}
		if created {
			res.Created++
		} else {
			res.Skipped++
		}
	}

	if res.Failed > 0 {
		return res, fmt.Errorf("mail ingestion: %d of %d messages failed", res.Failed, res.Fetched)
	}
	return res, nil
}

func (in *Ingestor) ingestOne(ctx context.Context, session mail.Session, m mail.Message) (bool, error) {
	exists, err := in.repo.ExistsByMessageID(ctx, m.ID)
	if err != nil {
		return false, err
	}

	if !exists {
		t := &Ticket{
			MessageID:  m.ID,
			Sector:     detectSector(in.sectors, m.Subject, m.Snippet),
			Subject:    m.Subject,
			From:       m.From,
			Snippet:    m.Snippet,
			ReceivedAt: m.ReceivedAt,
		}
		switch err := in.repo.Create(ctx, t); {
		case errors.Is(err, ErrDuplicateMessage):
			exists = true
		case err != nil:
			return false, err
		default:
			in.notify(ctx, t)
		}
	}

	if err := session.MarkRead(ctx, m.ID); err != nil {
		return false, err
	}
	return !exists, nil
}

func (in *Ingestor) notify(ctx context.Context, t *Ticket) {
	if in.notifier == nil {
		return
	}
	title := "Nouveau ticket SAP"
	link := "/tickets?sector=" + t.Sector

	var err error
	if t.Sector == "" {
		_, err = in.notifier.NotifyAdmins(ctx, notification.TypeWarning, title, t.Subject, "/tickets")
	} else {
		_, err = in.notifier.NotifySector(ctx, t.Sector, notification.TypeWarning, title, t.Subject, link)
	}
	if err != nil {
		log.Printf("mail-ingestion notify ticket=%s err=%v", t.ID, err)
	}
}

type sectorPattern struct {
	name string
	re   *regexp.Regexp
}

func compileSectors(sectors []string) []sectorPattern {
	out := make([]sectorPattern, 0, len(sectors))
	for _, s := range sectors {
		if s == "" {
			continue
		}
		out = append(out, sectorPattern{
			name: s,
			re:   regexp.MustCompile(`(?i)(^|[^\pL\pN])` + regexp.QuoteMeta(s) + `($|[^\pL\pN])`),
		})
	}
	return out
}

// DetectSector returns the first configured sector named as a word in one of
// texts, keeping the configured casing. No match yields "".
func DetectSector(sectors []string, texts ...string) string {
	return detectSector(compileSectors(sectors), texts...)
}

func detectSector(patterns []sectorPattern, texts ...string) string {
	for _, text := range texts {
		for _, p := range patterns {
			if p.re.MatchString(text) {
				return p.name
			}
		}
	}
	return ""
}
