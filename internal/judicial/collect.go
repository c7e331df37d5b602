package judicial

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ppiankov/kidregistry/internal/errs"
	"github.com/ppiankov/kidregistry/internal/extract/adapters"
	"github.com/ppiankov/kidregistry/internal/logger"
	"github.com/ppiankov/kidregistry/internal/model"
	"github.com/ppiankov/kidregistry/internal/worker"
)

// Collector turns the change list into raw records for the judicial adapter
type Collector struct {
	client       *Client
	window       Window
	maxDocuments int
	log          *logger.Logger
}

// NewCollector wires a client and window
func NewCollector(client *Client, window Window, maxDocuments int) *Collector {
	return &Collector{
		client:       client,
		window:       window,
		maxDocuments: maxDocuments,
		log:          logger.Named("judicial"),
	}
}

// Collect lists recent judgments, fetches each one and emits one record per
// defendant of every child-related judgment. Documents that fail to load are
// returned in failed; the run continues. Outside the service window nothing
// is fetched unless force is set.
func (c *Collector) Collect(ctx context.Context, pacer worker.Pacer, force bool) (records []model.RawRecord, failed []error, err error) {
	const source = "judicial"
	if !force {
		if err := c.window.Check(); err != nil {
			return nil, nil, errs.Unavailable(source, err)
		}
	}
	if !c.client.Configured() {
		return nil, nil, errs.Unavailable(source, ErrNoCredentials)
	}
	if pacer == nil {
		pacer = worker.NoPacing
	}

	if err := pacer.Wait(ctx); err != nil {
		return nil, nil, errs.FromFetch(source, err)
	}
	days, err := c.client.JList(ctx)
	if err != nil {
		return nil, nil, errs.FromFetch(source, err)
	}

	var jids []string
	for _, day := range days {
		jids = append(jids, day.List...)
	}
	if c.maxDocuments > 0 && len(jids) > c.maxDocuments {
		c.log.Info().Int("listed", len(jids)).Int("max", c.maxDocuments).Msg("truncating judgment list")
		jids = jids[:c.maxDocuments]
	}

	related := 0
	for _, jid := range jids {
		if err := pacer.Wait(ctx); err != nil {
			return records, failed, errs.FromFetch(source, err)
		}
		doc, err := c.client.JDoc(ctx, jid)
		if err != nil {
			if ctx.Err() != nil {
				return records, failed, errs.FromFetch(source, ctx.Err())
			}
			c.log.Warn().Str("jid", jid).Err(err).Msg("judgment fetch failed")
			failed = append(failed, errs.Malformed(source, fmt.Errorf("%s: %w", jid, err)))
			continue
		}
		if !IsChildRelated(doc.Title, doc.Full.Content) {
			continue
		}
		related++
		records = append(records, Records(jid, doc)...)
	}

	c.log.Info().Int("judgments", len(jids)).Int("child_related", related).Int("records", len(records)).Msg("judicial collection done")
	return records, failed, nil
}

// Records fans a judgment out into one raw record per defendant
func Records(jid string, doc *Document) []model.RawRecord {
	if doc.JID != "" {
		jid = doc.JID
	}
	names := Defendants(doc.Full.Content)
	out := make([]model.RawRecord, 0, len(names))
	for _, name := range names {
		out = append(out, model.RawRecord{
			adapters.JudicialJID:        jid,
			adapters.JudicialTitle:      doc.Title,
			adapters.JudicialDate:       doc.Date,
			adapters.JudicialDefendant:  name,
			adapters.JudicialDefendants: strconv.Itoa(len(names)),
			adapters.JudicialContent:    doc.Full.Content,
		})
	}
	return out
}
