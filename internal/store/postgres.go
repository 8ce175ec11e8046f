package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/oss377/maneBot/core/logger"
	"github.com/oss377/maneBot/internal/registrant"
)

const registrantColumns = `chat_id, lang, step, name, email, phone, location, payment, approved,
	payment_pending_since, last_reminder_sent_at, feeling_before, feeling_after, invited_by,
	other_registrations, partial_email, active_other, created_at, updated_at`

// registrantRow mirrors the registrants table.
type registrantRow struct {
	ChatID         int64         `db:"chat_id"`
	Lang           string        `db:"lang"`
	Step           string        `db:"step"`
	Name           string        `db:"name"`
	Email          string        `db:"email"`
	Phone          string        `db:"phone"`
	Location       string        `db:"location"`
	Payment        string        `db:"payment"`
	Approved       bool          `db:"approved"`
	PendingSince   sql.NullTime  `db:"payment_pending_since"`
	LastReminderAt sql.NullTime  `db:"last_reminder_sent_at"`
	FeelingBefore  string        `db:"feeling_before"`
	FeelingAfter   string        `db:"feeling_after"`
	InvitedBy      sql.NullInt64 `db:"invited_by"`
	Others         string        `db:"other_registrations"`
	PartialEmail   string        `db:"partial_email"`
	ActiveOther    sql.NullInt32 `db:"active_other"`
	CreatedAt      time.Time     `db:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at"`
}

func toRow(r *registrant.Registrant) (registrantRow, error) {
	others := r.Others
	if others == nil {
		others = []registrant.SubRegistration{}
	}
	raw, err := json.Marshal(others)
	if err != nil {
		return registrantRow{}, fmt.Errorf("encode other registrations: %w", err)
	}
	row := registrantRow{
		ChatID:        r.ID,
		Lang:          string(r.Lang),
		Step:          string(r.Step),
		Name:          r.Profile.Name,
		Email:         r.Profile.Email,
		Phone:         r.Profile.Phone,
		Location:      r.Profile.Location,
		Payment:       r.Payment,
		Approved:      r.Approved,
		FeelingBefore: r.FeelingBefore,
		FeelingAfter:  r.FeelingAfter,
		Others:        string(raw),
		PartialEmail:  r.PartialEmail,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.PendingSince != nil {
		row.PendingSince = sql.NullTime{Time: *r.PendingSince, Valid: true}
	}
	if r.LastReminderAt != nil {
		row.LastReminderAt = sql.NullTime{Time: *r.LastReminderAt, Valid: true}
	}
	if r.InvitedBy != 0 {
		row.InvitedBy = sql.NullInt64{Int64: r.InvitedBy, Valid: true}
	}
	if r.ActiveOther != nil {
		row.ActiveOther = sql.NullInt32{Int32: int32(*r.ActiveOther), Valid: true}
	}
	return row, nil
}

func fromRow(row registrantRow) (*registrant.Registrant, error) {
	step, err := registrant.ParseStep(row.Step)
	if err != nil {
		return nil, err
	}
	r := &registrant.Registrant{
		ID:   row.ChatID,
		Lang: registrant.Lang(row.Lang),
		Step: step,
		Profile: registrant.Profile{
			Name:     row.Name,
			Email:    row.Email,
			Phone:    row.Phone,
			Location: row.Location,
		},
		Payment:       row.Payment,
		Approved:      row.Approved,
		FeelingBefore: row.FeelingBefore,
		FeelingAfter:  row.FeelingAfter,
		InvitedBy:     row.InvitedBy.Int64,
		PartialEmail:  row.PartialEmail,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
	if row.PendingSince.Valid {
		t := row.PendingSince.Time
		r.PendingSince = &t
	}
	if row.LastReminderAt.Valid {
		t := row.LastReminderAt.Time
		r.LastReminderAt = &t
	}
	if row.ActiveOther.Valid {
		v := int(row.ActiveOther.Int32)
		r.ActiveOther = &v
	}
	if len(row.Others) > 0 {
		if err := json.Unmarshal([]byte(row.Others), &r.Others); err != nil {
			return nil, fmt.Errorf("decode other registrations of %d: %w", row.ChatID, err)
		}
	}
	return r, nil
}

// Postgres is the PostgreSQL-backed Store. Update and Mutate lock rows with
// SELECT ... FOR UPDATE inside a transaction.
type Postgres struct {
	db *sqlx.DB
}

var _ Store = (*Postgres)(nil)

// NewPostgres wraps an open connection pool.
func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Find(ctx context.Context, id int64) (*registrant.Registrant, error) {
	var row registrantRow
	err := p.db.GetContext(ctx, &row, `SELECT `+registrantColumns+` FROM registrants WHERE chat_id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find registrant %d: %w", id, err)
	}
	return fromRow(row)
}

func (p *Postgres) FindMany(ctx context.Context, q Query) ([]*registrant.Registrant, error) {
	where, args := buildWhere(q)
	var rows []registrantRow
	query := `SELECT ` + registrantColumns + ` FROM registrants` + where + ` ORDER BY created_at, chat_id`
	if err := p.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("find registrants: %w", err)
	}
	out := make([]*registrant.Registrant, 0, len(rows))
	for _, row := range rows {
		r, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (p *Postgres) FindByClaimToken(ctx context.Context, token string) (*registrant.Registrant, int, error) {
	if token == "" {
		return nil, -1, ErrNotFound
	}
	needle, err := json.Marshal([]map[string]string{{"claim_token": token}})
	if err != nil {
		return nil, -1, err
	}
	var row registrantRow
	err = p.db.GetContext(ctx, &row,
		`SELECT `+registrantColumns+` FROM registrants WHERE other_registrations @> $1::jsonb LIMIT 1`,
		string(needle))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, -1, ErrNotFound
	}
	if err != nil {
		return nil, -1, fmt.Errorf("find claim token: %w", err)
	}
	r, err := fromRow(row)
	if err != nil {
		return nil, -1, err
	}
	idx := r.TokenIndex(token)
	if idx < 0 {
		return nil, -1, ErrNotFound
	}
	return r, idx, nil
}

func (p *Postgres) FindByPhone(ctx context.Context, phone string) (*registrant.Registrant, error) {
	if phone == "" {
		return nil, ErrNotFound
	}
	var row registrantRow
	err := p.db.GetContext(ctx, &row,
		`SELECT `+registrantColumns+` FROM registrants WHERE phone = $1 ORDER BY chat_id LIMIT 1`, phone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find by phone: %w", err)
	}
	return fromRow(row)
}

func (p *Postgres) Save(ctx context.Context, r *registrant.Registrant) error {
	if err := r.Validate(); err != nil {
		return err
	}
	c := r.Clone()
	c.UpdatedAt = time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = c.UpdatedAt
	}
	return upsert(ctx, p.db, c)
}

func (p *Postgres) Delete(ctx context.Context, id int64) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM registrants WHERE chat_id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete registrant %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) Count(ctx context.Context, q Query) (int, error) {
	where, args := buildWhere(q)
	var n int
	if err := p.db.GetContext(ctx, &n, `SELECT count(*) FROM registrants`+where, args...); err != nil {
		return 0, fmt.Errorf("count registrants: %w", err)
	}
	return n, nil
}

func (p *Postgres) Update(ctx context.Context, id int64, upsertMissing bool, fn func(*registrant.Registrant) error) (*registrant.Registrant, error) {
	recs, err := p.Mutate(ctx, []int64{id}, upsertMissing, func(rs []*registrant.Registrant) error {
		return fn(rs[0])
	})
	if err != nil {
		return nil, err
	}
	return recs[0], nil
}

func (p *Postgres) Mutate(ctx context.Context, ids []int64, upsertMissing bool, fn MutateFunc) (out []*registrant.Registrant, err error) {
	if err := distinct(ids); err != nil {
		return nil, err
	}
	start := time.Now()
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	if upsertMissing {
		// Placeholders make the subsequent FOR UPDATE see every id.
		for _, id := range ids {
			if _, err = tx.ExecContext(ctx,
				`INSERT INTO registrants (chat_id, created_at, updated_at) VALUES ($1, $2, $2) ON CONFLICT (chat_id) DO NOTHING`,
				id, now); err != nil {
				return nil, fmt.Errorf("ensure registrant %d: %w", id, err)
			}
		}
	}

	locked := append([]int64(nil), ids...)
	sort.Slice(locked, func(i, j int) bool { return locked[i] < locked[j] })
	var rows []registrantRow
	if err = tx.SelectContext(ctx, &rows,
		`SELECT `+registrantColumns+` FROM registrants WHERE chat_id = ANY($1) ORDER BY chat_id FOR UPDATE`,
		pq.Array(locked)); err != nil {
		return nil, fmt.Errorf("lock registrants: %w", err)
	}
	byID := make(map[int64]*registrant.Registrant, len(rows))
	for _, row := range rows {
		r, convErr := fromRow(row)
		if convErr != nil {
			err = convErr
			return nil, err
		}
		byID[r.ID] = r
	}

	work := make([]*registrant.Registrant, len(ids))
	for i, id := range ids {
		r, ok := byID[id]
		if !ok {
			err = fmt.Errorf("%w: %d", ErrNotFound, id)
			return nil, err
		}
		work[i] = r
	}

	if err = fn(work); err != nil {
		return nil, err
	}

	for i, r := range work {
		r.ID = ids[i]
		r.UpdatedAt = now
		if err = r.Validate(); err != nil {
			return nil, fmt.Errorf("store: registrant %d: %w", r.ID, err)
		}
		if err = upsert(ctx, tx, r); err != nil {
			return nil, err
		}
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	logger.Debug(ctx, logger.CompStore, "mutate",
		slog.String("status", "ok"),
		slog.Int("count", len(work)),
		slog.Duration("duration", logger.Took(start)),
	)
	out = make([]*registrant.Registrant, len(work))
	for i, r := range work {
		out[i] = r.Clone()
	}
	return out, nil
}

func upsert(ctx context.Context, ext sqlx.ExtContext, r *registrant.Registrant) error {
	row, err := toRow(r)
	if err != nil {
		return err
	}
	_, err = sqlx.NamedExecContext(ctx, ext, `
		INSERT INTO registrants (`+registrantColumns+`)
		VALUES (:chat_id, :lang, :step, :name, :email, :phone, :location, :payment, :approved,
			:payment_pending_since, :last_reminder_sent_at, :feeling_before, :feeling_after, :invited_by,
			:other_registrations, :partial_email, :active_other, :created_at, :updated_at)
		ON CONFLICT (chat_id) DO UPDATE SET
			lang = EXCLUDED.lang,
			step = EXCLUDED.step,
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			location = EXCLUDED.location,
			payment = EXCLUDED.payment,
			approved = EXCLUDED.approved,
			payment_pending_since = EXCLUDED.payment_pending_since,
			last_reminder_sent_at = EXCLUDED.last_reminder_sent_at,
			feeling_before = EXCLUDED.feeling_before,
			feeling_after = EXCLUDED.feeling_after,
			invited_by = EXCLUDED.invited_by,
			other_registrations = EXCLUDED.other_registrations,
			partial_email = EXCLUDED.partial_email,
			active_other = EXCLUDED.active_other,
			updated_at = EXCLUDED.updated_at`, row)
	if err != nil {
		return fmt.Errorf("upsert registrant %d: %w", r.ID, err)
	}
	return nil
}

// Sub-registration predicates evaluated over the JSONB array.
const (
	subAwaitingProof = `coalesce(e->>'payment', '') = '' AND NOT coalesce((e->>'approved')::boolean, false)`
	subAwaitingOK    = `coalesce(e->>'payment', '') <> '' AND NOT coalesce((e->>'approved')::boolean, false)`
)

func existsSub(cond string) string {
	return `EXISTS (SELECT 1 FROM jsonb_array_elements(other_registrations) e WHERE ` + cond + `)`
}

func buildWhere(q Query) (string, []any) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if q.Named != nil {
		if *q.Named {
			conds = append(conds, `name <> ''`)
		} else {
			conds = append(conds, `name = ''`)
		}
	}
	if q.InStep {
		conds = append(conds, `step <> ''`)
	}
	if q.Approved != nil {
		conds = append(conds, `approved = `+arg(*q.Approved))
	}
	if q.PendingBefore != nil {
		p := arg(*q.PendingBefore)
		conds = append(conds, `((payment = '' AND NOT approved AND payment_pending_since < `+p+`) OR `+
			existsSub(subAwaitingProof+` AND (e->>'payment_pending_since')::timestamptz < `+p)+`)`)
	}
	if q.RemindedSince != nil {
		p := arg(*q.RemindedSince)
		conds = append(conds, `(last_reminder_sent_at >= `+p+` OR `+
			existsSub(`(e->>'last_reminder_sent_at')::timestamptz >= `+p)+`)`)
	}
	if q.AwaitingApproval {
		conds = append(conds, `((payment <> '' AND NOT approved) OR `+existsSub(subAwaitingOK)+`)`)
	}
	if q.MissingFeeling {
		conds = append(conds, `(feeling_before = '' OR feeling_after = '')`)
	}
	if q.HasFeeling {
		conds = append(conds, `(feeling_before <> '' OR feeling_after <> '')`)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
