package vod

import (
	"context"
	"fmt"
	"strings"

	"github.com/937bb/937cms-sub001/pkg/models"
)

// Mode selects how the pager moves through the table.
type Mode string

const (
	// ModeOffset re-issues LIMIT/OFFSET with offset += page size. Rows
	// inserted or deleted mid-run can be skipped or visited twice, so the
	// table must be quiescent while a run is active.
	ModeOffset Mode = "offset"
	// ModeKeyset continues from the last id seen and is immune to that drift.
	ModeKeyset Mode = "keyset"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeOffset:
		return ModeOffset, nil
	case ModeKeyset:
		return ModeKeyset, nil
	}
	return "", fmt.Errorf("unknown pagination mode %q", s)
}

// Reader is the page source a Pager walks. *Repo implements it.
type Reader interface {
	PageByOffset(ctx context.Context, limit, offset int) ([]models.LegacyVideo, error)
	PageAfter(ctx context.Context, afterID int64, limit int) ([]models.LegacyVideo, error)
}

type PagerOptions struct {
	PageSize int
	// Limit is the row total captured when the run started; paging stops
	// once the offset reaches it.
	Limit int
	Mode  Mode
}

// Pager hands out consecutive pages ordered by video id. It only moves
// forward; start over with a new Pager.
type Pager struct {
	reader Reader
	opts   PagerOptions
	offset int
	lastID int64
	pages  int
	done   bool
}

func NewPager(r Reader, opts PagerOptions) *Pager {
	if opts.Mode == "" {
		opts.Mode = ModeOffset
	}
	return &Pager{reader: r, opts: opts}
}

// Next returns the next page. ok is false once paging is finished; a page
// error also ends paging.
func (p *Pager) Next(ctx context.Context) (page []models.LegacyVideo, ok bool, err error) {
	if p.done || p.opts.PageSize <= 0 || p.offset >= p.opts.Limit {
		p.done = true
		return nil, false, nil
	}

	switch p.opts.Mode {
	case ModeKeyset:
		page, err = p.reader.PageAfter(ctx, p.lastID, p.opts.PageSize)
	default:
		page, err = p.reader.PageByOffset(ctx, p.opts.PageSize, p.offset)
	}
	if err != nil {
		p.done = true
		return nil, false, err
	}
	if len(page) == 0 {
		p.done = true
		return nil, false, nil
	}

	p.pages++
	p.offset += p.opts.PageSize
	p.lastID = page[len(page)-1].ID
	return page, true, nil
}

// Offset is the row offset the next page would start at.
func (p *Pager) Offset() int { return p.offset }

// Pages is how many non-empty pages have been returned.
func (p *Pager) Pages() int { return p.pages }
