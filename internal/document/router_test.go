package document

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"approval-workflow/internal/domain"
	"approval-workflow/internal/errors"
	"approval-workflow/internal/workflow"
	"approval-workflow/redis"

	"github.com/alicebob/miniredis/v2"
	redisLib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func subjects(docs []domain.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Subject
	}
	return out
}

func TestRouter_InboxPagination(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for i := 0; i < 12; i++ {
		f.submitted(t, domain.VariantActivity, fmt.Sprintf("Event %02d", i), nil)
	}

	page, err := f.svc.ListMailbox(ctx, f.bem, MailboxQuery{Kind: KindInbox, Page: 3, PerPage: 5})
	require.NoError(t, err)
	assert.Len(t, page.Data, 2)
	assert.Equal(t, DocumentsMeta{Total: 12, CurrentPage: 3, PerPage: 5, TotalPage: 3}, page.Meta)

	// newest submission first
	first, err := f.svc.ListMailbox(ctx, f.bem, MailboxQuery{Kind: KindInbox, PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"Event 11", "Event 10"}, subjects(first.Data))

	// out of range page sizes fall back to the default
	def, err := f.svc.ListMailbox(ctx, f.bem, MailboxQuery{Kind: KindInbox, PerPage: 1000})
	require.NoError(t, err)
	assert.Equal(t, DefaultPerPage, def.Meta.PerPage)
	assert.Len(t, def.Data, DefaultPerPage)
}

func TestRouter_Filters(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.submitted(t, domain.VariantActivity, "Charity Run", nil)
	f.submitted(t, domain.VariantReport, "Charity Report", nil)
	f.submitted(t, domain.VariantLetter, "Room booking", nil)

	tests := []struct {
		name string
		q    MailboxQuery
		want []string
	}{
		{"search is case insensitive", MailboxQuery{Kind: KindInbox, Search: "charity"}, []string{"Charity Report", "Charity Run"}},
		{"variant", MailboxQuery{Kind: KindInbox, Variant: domain.VariantLetter}, []string{"Room booking"}},
		{"search and variant", MailboxQuery{Kind: KindInbox, Search: "CHARITY", Variant: domain.VariantActivity}, []string{"Charity Run"}},
		{"status narrows", MailboxQuery{Kind: KindInbox, Status: domain.StateApproved}, []string{}},
		{"no match", MailboxQuery{Kind: KindInbox, Search: "zzz"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.ListMailbox(ctx, f.bem, tt.q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, subjects(got.Data))
			assert.Equal(t, int64(len(tt.want)), got.Meta.Total)
		})
	}

	// dema does not review reports
	got, err := f.svc.ListMailbox(ctx, f.dema, MailboxQuery{Kind: KindInbox, Search: "charity"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Charity Run"}, subjects(got.Data))
}

func TestRouter_InboxAndArchiveAreExclusive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pending := f.submitted(t, domain.VariantActivity, "Pending", nil)
	decided := f.submitted(t, domain.VariantActivity, "Decided", nil)
	_, err := f.svc.Approve(ctx, decided.ID, f.bem, "")
	require.NoError(t, err)
	revised := f.submitted(t, domain.VariantActivity, "Revised", nil)
	_, err = f.svc.RequestRevision(ctx, revised.ID, f.bem, "more detail")
	require.NoError(t, err)

	inbox, err := f.svc.ListMailbox(ctx, f.bem, MailboxQuery{Kind: KindInbox})
	require.NoError(t, err)
	archive, err := f.svc.ListMailbox(ctx, f.bem, MailboxQuery{Kind: KindArchive})
	require.NoError(t, err)

	assert.Equal(t, []string{"Pending"}, subjects(inbox.Data))
	assert.Equal(t, []string{"Decided"}, subjects(archive.Data))
	assert.Equal(t, pending.ID, inbox.Data[0].ID)

	// the author's outbox holds all three
	outbox, err := f.svc.ListMailbox(ctx, f.authorX, MailboxQuery{Kind: KindOutbox})
	require.NoError(t, err)
	assert.Len(t, outbox.Data, 3)
}

func TestRouter_DraftsStayInOutbox(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	draft := f.create(t, domain.VariantActivity, "Draft", nil)
	_, err := f.svc.UploadCover(ctx, draft.ID, f.authorX, "covers/draft.png")
	require.NoError(t, err)

	for _, kind := range []MailboxKind{KindInbox, KindCover, KindArchive} {
		got, err := f.svc.ListMailbox(ctx, f.admin, MailboxQuery{Kind: kind})
		require.NoError(t, err)
		assert.Empty(t, got.Data, string(kind))
	}

	own, err := f.svc.ListMailbox(ctx, f.authorX, MailboxQuery{Kind: KindOutbox})
	require.NoError(t, err)
	assert.Equal(t, []string{"Draft"}, subjects(own.Data))

	// once submitted the pending cover shows up for the cover reviewer
	_, err = f.svc.Submit(ctx, draft.ID, f.authorX)
	require.NoError(t, err)
	covers, err := f.svc.ListMailbox(ctx, f.bem, MailboxQuery{Kind: KindCover})
	require.NoError(t, err)
	assert.Equal(t, []string{"Draft"}, subjects(covers.Data))
}

func TestRouter_OutboxPermissions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.create(t, domain.VariantReport, "Draft report", nil)
	f.submitted(t, domain.VariantReport, "Sent report", nil)

	_, err := f.svc.ListMailbox(ctx, f.memberY, MailboxQuery{Kind: KindOutbox, OrgID: &f.orgX})
	assertCode(t, err, errors.CodePermissionDenied)

	_, err = f.svc.ListMailbox(ctx, f.bem, MailboxQuery{Kind: KindOutbox})
	assertCode(t, err, errors.CodePermissionDenied)

	viaAdmin, err := f.svc.ListMailbox(ctx, f.admin, MailboxQuery{Kind: KindOutbox, OrgID: &f.orgX})
	require.NoError(t, err)
	assert.Equal(t, []string{"Sent report"}, subjects(viaAdmin.Data))

	own, err := f.svc.ListMailbox(ctx, f.authorX, MailboxQuery{Kind: KindOutbox, OrgID: &f.orgX})
	require.NoError(t, err)
	assert.Len(t, own.Data, 2)
}

func TestRouter_RejectsUnknownKindAndInvisibleActors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.ListMailbox(ctx, f.bem, MailboxQuery{Kind: "trash"})
	assertCode(t, err, errors.CodeValidation)

	_, err = f.svc.ListMailbox(ctx, &domain.Actor{}, MailboxQuery{Kind: KindInbox})
	assertCode(t, err, errors.CodePermissionDenied)
}

func TestRouter_ScopeMatchesGate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	gate := workflow.NewGate(workflow.DefaultPolicy())
	f.submitted(t, domain.VariantActivity, "A", nil)
	f.submitted(t, domain.VariantReport, "R", nil)
	f.submitted(t, domain.VariantLetter, "L", nil)
	f.submitted(t, domain.VariantLetter, "LY", &f.orgY)

	for _, a := range []*domain.Actor{f.admin, f.bem, f.dema, f.reviewY} {
		inbox, err := f.svc.ListMailbox(ctx, a, MailboxQuery{Kind: KindInbox})
		require.NoError(t, err)
		for _, doc := range inbox.Data {
			assert.True(t, gate.Can(a, workflow.ActionApprove, &doc), doc.Subject)
		}
	}
}

func newRedisCache(t *testing.T) (*redis.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redisLib.NewClient(&redisLib.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return redis.NewCache(client, nil), mr
}

func cachedListings(mr *miniredis.Miniredis) int {
	n := 0
	for _, k := range mr.Keys() {
		if strings.HasPrefix(k, "mailbox:") && k != mailboxVersionKey {
			n++
		}
	}
	return n
}

func TestRouter_CachedListingIsInvalidatedByTransitions(t *testing.T) {
	ctx := context.Background()
	cache, mr := newRedisCache(t)
	repo := NewMemoryRepository()
	f := newFixtureWithRepo(t, repo, cache)
	doc := f.submitted(t, domain.VariantActivity, "Cached", nil)

	first, err := f.svc.ListMailbox(ctx, f.bem, MailboxQuery{Kind: KindInbox})
	require.NoError(t, err)
	require.Len(t, first.Data, 1)
	require.Eventually(t, func() bool { return cachedListings(mr) == 1 }, time.Second, 10*time.Millisecond)

	// a write that bypasses the service is not seen while the listing is cached
	sneaky := doc.Clone()
	sneaky.Subject = "Changed underneath"
	require.NoError(t, repo.Commit(ctx, workflow.Guard{Track: domain.TrackDocument, State: string(doc.State), Scope: workflow.ScopePayload}, sneaky, nil))
	again, err := f.svc.ListMailbox(ctx, f.bem, MailboxQuery{Kind: KindInbox})
	require.NoError(t, err)
	assert.Equal(t, []string{"Cached"}, subjects(again.Data))

	_, err = f.svc.Approve(ctx, doc.ID, f.bem, "")
	require.NoError(t, err)

	after, err := f.svc.ListMailbox(ctx, f.bem, MailboxQuery{Kind: KindInbox})
	require.NoError(t, err)
	assert.Empty(t, after.Data)
	archive, err := f.svc.ListMailbox(ctx, f.bem, MailboxQuery{Kind: KindArchive})
	require.NoError(t, err)
	assert.Equal(t, []string{"Changed underneath"}, subjects(archive.Data))
}

func TestRouter_CacheKeyDependsOnActorGrants(t *testing.T) {
	bem := &domain.Actor{GlobalRoles: []string{workflow.RoleBEMAdmin}}
	dema := &domain.Actor{ID: bem.ID, GlobalRoles: []string{workflow.RoleDEMAAdmin}}
	assert.NotEqual(t, actorFingerprint(bem), actorFingerprint(dema))

	q := normalizeQuery(MailboxQuery{Kind: KindInbox})
	assert.NotEqual(t, queryHash(q), queryHash(normalizeQuery(MailboxQuery{Kind: KindInbox, Search: "x"})))
}
