package coordinator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"formautofill/dom/htmldom"
	"formautofill/models"
	"formautofill/oracle"
	"formautofill/utils"
)

const challengePage = `<html><body>
<form id="contact">
	<label for="email">Email</label><input id="email" name="email" type="email">
	<label for="phone">Phone</label><input id="phone" name="phone" type="tel">
</form>
<div class="g-recaptcha"></div>
</body></html>`

// fakePage serves successive snapshots, repeating the last one, and records
// what the pipeline asks it to apply.
type fakePage struct {
	url       string
	snapshots []string
	broken    bool

	failures map[string]error
	// hang makes Apply wait for its context, like a page that stopped
	// responding mid-replay.
	hang bool

	applied atomic.Int32
	cleared int
	closed  atomic.Bool
}

func (p *fakePage) Snapshot(context.Context) (*htmldom.Document, error) {
	if p.broken || len(p.snapshots) == 0 {
		return nil, errors.New("target closed")
	}
	src := p.snapshots[0]
	if len(p.snapshots) > 1 {
		p.snapshots = p.snapshots[1:]
	}
	return htmldom.Parse(p.url, src)
}

func (p *fakePage) Apply(ctx context.Context, _ *htmldom.Document, summary models.FillSummary, _ string) map[string]error {
	p.applied.Add(1)
	if p.hang {
		<-ctx.Done()
		failed := make(map[string]error)
		for _, r := range summary.Results {
			failed[r.Target] = ctx.Err()
		}
		return failed
	}
	return p.failures
}

func (p *fakePage) ClearHighlights(context.Context, string) (int, error) {
	return p.cleared, nil
}

func (p *fakePage) Close() error {
	p.closed.Store(true)
	return nil
}

func openLive(t *testing.T, page *fakePage) (*Registry, *Session) {
	t.Helper()
	reg := NewRegistry(nil, nil, utils.NewNopLogger())
	s, err := reg.OpenPage(context.Background(), page, "p1")
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close(s.ID) })
	return reg, s
}

func autofillSession(f *fixture, s *Session) (res *Result, err error) {
	s.Do(func() { res, err = f.coord.AutofillSession(context.Background(), s, "") })
	return res, err
}

func TestAutofillSession_MirrorsOntoPage(t *testing.T) {
	f := newFixture(t, nil, nil, DefaultOptions())
	page := &fakePage{url: "https://shop.example.com/contact", snapshots: []string{contactPage}}
	_, s := openLive(t, page)

	res, err := autofillSession(f, s)

	require.NoError(t, err)
	assert.Equal(t, 2, res.Summary.FilledFields)
	assert.EqualValues(t, 1, page.applied.Load())
	assert.Equal(t, "ada@example.com", s.Doc.ElementByID("email").Value())
}

func TestAutofillSession_ChallengeAppearsAfterOpen(t *testing.T) {
	f := newFixture(t, nil, nil, DefaultOptions())
	page := &fakePage{url: "https://shop.example.com/contact", snapshots: []string{contactPage, challengePage}}
	_, s := openLive(t, page)

	res, err := autofillSession(f, s)

	require.ErrorIs(t, err, ErrChallengeDetected)
	assert.Equal(t, StateAborted, res.State)
	assert.Equal(t, models.FillSummary{}, res.Summary)
	assert.Zero(t, page.applied.Load(), "nothing may reach the page")
	assert.Empty(t, s.Doc.ElementByID("email").Value())
}

func TestAutofillSession_MirrorFailuresCountAsFailed(t *testing.T) {
	f := newFixture(t, nil, nil, DefaultOptions())
	page := &fakePage{
		url:       "https://shop.example.com/contact",
		snapshots: []string{contactPage},
		failures:  map[string]error{"#email": errors.New("element is detached")},
	}
	_, s := openLive(t, page)

	res, err := autofillSession(f, s)

	require.NoError(t, err)
	assert.Equal(t, 2, res.Summary.TotalFields)
	assert.Equal(t, 1, res.Summary.FilledFields)
	assert.Equal(t, 1, res.Summary.FailedFields)
	for _, r := range res.Summary.Results {
		if r.Target != "#email" {
			assert.True(t, r.Success)
			continue
		}
		assert.False(t, r.Success)
		assert.ErrorIs(t, r.Err, ErrMirrorFailed)
		assert.Contains(t, r.Error, "detached")
	}
	assert.False(t, s.Doc.ElementByID("email").HasClass(DefaultHighlightClass))
	assert.True(t, s.Doc.ElementByID("phone").HasClass(DefaultHighlightClass))
}

func TestAutofillSession_MirrorRunsWithinFillTimeout(t *testing.T) {
	opts := DefaultOptions()
	opts.FillTimeout = 20 * time.Millisecond
	f := newFixture(t, nil, nil, opts)
	page := &fakePage{url: "https://shop.example.com/contact", snapshots: []string{contactPage}, hang: true}
	_, s := openLive(t, page)

	start := time.Now()
	res, err := autofillSession(f, s)

	require.ErrorIs(t, err, ErrFillTimeout)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, StateAborted, res.State)
	assert.Equal(t, models.FillSummary{}, res.Summary)
}

func TestAutofillSession_PageGone(t *testing.T) {
	f := newFixture(t, nil, nil, DefaultOptions())
	page := &fakePage{url: "https://shop.example.com/contact", snapshots: []string{contactPage}}
	_, s := openLive(t, page)
	page.broken = true

	res, err := autofillSession(f, s)

	require.ErrorIs(t, err, ErrPageUnavailable)
	assert.Equal(t, StateAborted, res.State)
	assert.Equal(t, "Could not read the live page.", Message(err))
}

func TestDetectSession_SeesCurrentPage(t *testing.T) {
	f := newFixture(t, nil, nil, DefaultOptions())
	page := &fakePage{
		url:       "https://shop.example.com/contact",
		snapshots: []string{`<html><body><p>Loading</p></body></html>`, contactPage},
	}
	_, s := openLive(t, page)

	var containers []models.Container
	var err error
	s.Do(func() { containers, err = f.coord.DetectSession(context.Background(), s) })

	require.NoError(t, err)
	require.Len(t, containers, 1)
	assert.Equal(t, "#contact", containers[0].Selector)
	assert.NotNil(t, s.Doc.ElementByID("email"))
}

func TestClearSessionHighlights_CountsLivePage(t *testing.T) {
	f := newFixture(t, nil, nil, DefaultOptions())
	page := &fakePage{url: "https://shop.example.com/contact", snapshots: []string{contactPage}, cleared: 3}
	_, s := openLive(t, page)

	n, err := f.coord.ClearSessionHighlights(context.Background(), s)

	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestRegistry_CloseClosesPage(t *testing.T) {
	page := &fakePage{url: "https://shop.example.com/contact", snapshots: []string{contactPage}}
	reg, s := openLive(t, page)

	assert.True(t, s.Live())
	assert.True(t, reg.Close(s.ID))
	assert.True(t, page.closed.Load())
}

// lingeringFiller ignores the deadline for a while, like a field whose
// write is still in flight when the fill times out.
type lingeringFiller struct {
	lag      time.Duration
	finished atomic.Bool
}

func (f *lingeringFiller) Fill(ctx context.Context, _ []models.FieldMapping) (models.FillSummary, error) {
	<-ctx.Done()
	time.Sleep(f.lag)
	f.finished.Store(true)
	return models.FillSummary{TotalFields: 1, FilledFields: 1}, ctx.Err()
}

func TestAutofill_TimeoutWaitsForFiller(t *testing.T) {
	defer goleak.VerifyNone(t)

	opts := DefaultOptions()
	opts.FillTimeout = 10 * time.Millisecond
	filler := &lingeringFiller{lag: 50 * time.Millisecond}
	f := newFixture(t, nil, filler, opts)
	doc := htmldom.MustParse("https://shop.example.com/contact", contactPage)

	_, err := f.coord.Autofill(context.Background(), doc, "p1")

	require.ErrorIs(t, err, ErrFillTimeout)
	assert.True(t, filler.finished.Load(), "the filler must be done before Autofill returns")
}

func TestRegistry_ClassifiesDiscoveredContainers(t *testing.T) {
	classifier := oracle.NewClassifier(failingProvider{}, oracle.DefaultClassificationOptions(), utils.NewNopLogger())
	reg := NewRegistry(nil, classifier, utils.NewNopLogger())
	doc := htmldom.MustParse("https://example.com", `<html><body><div id="root"></div></body></html>`)
	s := reg.Open(doc, "")

	_, err := doc.Insert(doc.ElementByID("root"), `<form id="late"><h2>Contact us</h2><input name="email" type="email"><textarea name="message"></textarea></form>`)
	require.NoError(t, err)
	require.Len(t, s.Discovered(), 1)

	assert.Eventually(t, func() bool {
		return s.Discovered()[0].Classification != nil
	}, time.Second, 5*time.Millisecond)
	assert.True(t, s.Discovered()[0].Classification.Fallback)
	assert.True(t, reg.Close(s.ID))
}

func TestAutofill_QuestionBlockHighlightsAnswerControl(t *testing.T) {
	f := newFixture(t, nil, nil, DefaultOptions())
	ctx := context.Background()
	_, err := f.domains.Learn(ctx, "forms.example.com", "#q1", "personal.email")
	require.NoError(t, err)
	doc := htmldom.MustParse("https://forms.example.com/survey", `<html><body><div role="main">
		<div role="listitem" id="q1"><div class="title">Email</div><input type="text" id="a1"></div>
	</div></body></html>`)

	res, err := f.coord.Autofill(ctx, doc, "p1")

	require.NoError(t, err)
	assert.Equal(t, 1, res.Summary.FilledFields)
	assert.Equal(t, "ada@example.com", doc.ElementByID("a1").Value())
	assert.True(t, doc.ElementByID("a1").HasClass(DefaultHighlightClass))
	assert.False(t, doc.ElementByID("q1").HasClass(DefaultHighlightClass))
}
