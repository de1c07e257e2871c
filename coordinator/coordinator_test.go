package coordinator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formautofill/detector"
	"formautofill/dom/htmldom"
	"formautofill/executor"
	"formautofill/mapper"
	"formautofill/models"
	"formautofill/oracle"
	"formautofill/store"
	"formautofill/utils"
)

const contactPage = `<html><body>
<form id="contact">
	<label for="email">Email</label><input id="email" name="email" type="email">
	<label for="phone">Phone</label><input id="phone" name="phone" type="tel">
</form>
</body></html>`

type fixture struct {
	coord    *Coordinator
	profiles *store.ProfileStore
	domains  *store.DomainMappingStore
}

func testProfile() *models.Profile {
	return &models.Profile{
		ID:   "p1",
		Name: "Ada",
		Personal: models.PersonalInfo{
			FirstName: "Ada",
			Email:     "ada@example.com",
			Phone:     "555-0100",
			Country:   "usa",
		},
	}
}

func newFixture(t *testing.T, classifier Classifier, filler Filler, opts Options) *fixture {
	t.Helper()
	logger := utils.NewNopLogger()
	kv := store.NewMemoryKV(0)
	profiles := store.NewProfileStore(kv, logger)
	domains := store.NewDomainMappingStore(kv)
	require.NoError(t, profiles.Save(context.Background(), testProfile()))

	if filler == nil {
		filler = executor.New(logger)
	}
	coord := New(Deps{
		Detector:   detector.New(logger),
		Classifier: classifier,
		Mapper:     mapper.New(nil, logger),
		Filler:     filler,
		Profiles:   profiles,
		Domains:    domains,
		Logger:     logger,
	}, opts)
	return &fixture{coord: coord, profiles: profiles, domains: domains}
}

func TestAutofill_FillsContactForm(t *testing.T) {
	f := newFixture(t, nil, nil, DefaultOptions())
	doc := htmldom.MustParse("https://shop.example.com/contact", contactPage)

	res, err := f.coord.Autofill(context.Background(), doc, "p1")

	require.NoError(t, err)
	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, 2, res.Summary.TotalFields)
	assert.Equal(t, 2, res.Summary.FilledFields)
	assert.Equal(t, 0, res.Summary.FailedFields)
	assert.Equal(t, 0, res.Summary.SkippedFields)

	email := doc.ElementByID("email")
	assert.Equal(t, "ada@example.com", email.Value())
	assert.Equal(t, "555-0100", doc.ElementByID("phone").Value())
	assert.True(t, email.HasClass(DefaultHighlightClass))
	assert.Equal(t, []string{"input", "change", "blur"}, doc.EventTypes(email))
}

func TestAutofill_SelectMatchesCaseInsensitively(t *testing.T) {
	f := newFixture(t, nil, nil, DefaultOptions())
	doc := htmldom.MustParse("https://jobs.example.com/apply", `<html><body><form>
		<label for="country">Country</label>
		<select id="country" name="country">
			<option value="">Pick one</option>
			<option value="USA">USA</option>
			<option value="CAN">Canada</option>
		</select>
	</form></body></html>`)

	res, err := f.coord.Autofill(context.Background(), doc, "p1")

	require.NoError(t, err)
	assert.Equal(t, 1, res.Summary.FilledFields)
	assert.Equal(t, "USA", doc.ElementByID("country").Value())
}

func TestAutofill_ChallengeAbortsBeforeFilling(t *testing.T) {
	f := newFixture(t, nil, nil, DefaultOptions())
	doc := htmldom.MustParse("https://shop.example.com/contact", `<html><body>
		<form id="contact"><input id="email" name="email" type="email"><input name="phone" type="tel"></form>
		<div class="g-recaptcha"></div>
	</body></html>`)

	res, err := f.coord.Autofill(context.Background(), doc, "p1")

	require.ErrorIs(t, err, ErrChallengeDetected)
	assert.Equal(t, StateAborted, res.State)
	assert.Equal(t, models.FillSummary{}, res.Summary)
	assert.Empty(t, doc.ElementByID("email").Value())
	assert.Empty(t, doc.Events())
	assert.Contains(t, Message(err), "CAPTCHA")
}

func TestAutofill_ChallengeMarkerInID(t *testing.T) {
	f := newFixture(t, nil, nil, DefaultOptions())
	doc := htmldom.MustParse("https://shop.example.com/", `<html><body>
		<form><input name="email"><input name="phone"></form>
		<div id="cf-turnstile-widget"></div>
	</body></html>`)

	_, err := f.coord.Autofill(context.Background(), doc, "p1")

	assert.ErrorIs(t, err, ErrChallengeDetected)
}

type failingProvider struct{}

func (failingProvider) Name() string { return "failing" }

func (failingProvider) Complete(context.Context, string, oracle.CompletionOptions) (string, error) {
	return "", errors.New("connection refused")
}

func TestAutofill_ClassifierFailureFallsBack(t *testing.T) {
	classifier := oracle.NewClassifier(failingProvider{}, oracle.DefaultClassificationOptions(), utils.NewNopLogger())
	f := newFixture(t, classifier, nil, DefaultOptions())
	doc := htmldom.MustParse("https://jobs.example.com/apply", `<html><body>
		<form id="job"><h2>Apply for this job</h2>
			<input name="email" type="email">
			<input name="resume" type="file">
		</form>
	</body></html>`)

	res, err := f.coord.Autofill(context.Background(), doc, "p1")

	require.NoError(t, err)
	require.Len(t, res.Containers, 1)
	cl := res.Containers[0].Classification
	require.NotNil(t, cl)
	assert.True(t, cl.Fallback)
	assert.True(t, cl.IsJobApplication)
	assert.True(t, cl.RequiresResume)
	assert.InDelta(t, oracle.FallbackConfidence, cl.Confidence, 1e-9)
	assert.Equal(t, 1, res.Summary.FilledFields)
	assert.Equal(t, 1, res.Summary.TotalFields, "the resume upload has no profile value")
}

type slowFiller struct{ delay time.Duration }

func (s slowFiller) Fill(ctx context.Context, _ []models.FieldMapping) (models.FillSummary, error) {
	select {
	case <-time.After(s.delay):
		return models.FillSummary{TotalFields: 1, FilledFields: 1}, nil
	case <-ctx.Done():
		return models.FillSummary{TotalFields: 1, FilledFields: 1}, ctx.Err()
	}
}

func TestAutofill_FillTimeout(t *testing.T) {
	opts := DefaultOptions()
	opts.FillTimeout = 20 * time.Millisecond
	f := newFixture(t, nil, slowFiller{delay: time.Second}, opts)
	doc := htmldom.MustParse("https://shop.example.com/contact", contactPage)

	res, err := f.coord.Autofill(context.Background(), doc, "p1")

	require.ErrorIs(t, err, ErrFillTimeout)
	assert.Equal(t, StateAborted, res.State)
	assert.Equal(t, models.FillSummary{}, res.Summary)
	assert.Equal(t, "Autofill timed out.", Message(err))
}

func TestAutofill_Aborts(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		html    string
		profile string
		want    error
	}{
		{name: "system page", url: "chrome://settings", html: contactPage, profile: "p1", want: ErrRestrictedURL},
		{name: "no forms", url: "https://example.com", html: `<html><body><p>Hello</p></body></html>`, profile: "p1", want: ErrNoForms},
		{name: "no active profile", url: "https://example.com", html: contactPage, want: ErrNoActiveProfile},
		{name: "unknown profile", url: "https://example.com", html: contactPage, profile: "ghost", want: ErrProfileNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil, nil, DefaultOptions())
			doc := htmldom.MustParse(tt.url, tt.html)

			res, err := f.coord.Autofill(context.Background(), doc, tt.profile)

			require.ErrorIs(t, err, tt.want)
			assert.Equal(t, StateAborted, res.State)
			assert.Zero(t, res.Summary.FilledFields)
		})
	}
}

func TestAutofill_DomainMappingOverridesAndIsTouched(t *testing.T) {
	f := newFixture(t, nil, nil, DefaultOptions())
	ctx := context.Background()
	_, err := f.domains.Learn(ctx, "shop.example.com", "#phone", "personal.firstName")
	require.NoError(t, err)
	before, err := f.domains.Get(ctx, "shop.example.com")
	require.NoError(t, err)

	fixed := time.UnixMilli(before.LastUsed).Add(time.Hour)
	f.coord.now = func() time.Time { return fixed }
	doc := htmldom.MustParse("https://shop.example.com/contact", contactPage)

	res, err := f.coord.Autofill(ctx, doc, "p1")

	require.NoError(t, err)
	assert.Equal(t, "Ada", doc.ElementByID("phone").Value())
	for _, m := range res.Mappings {
		if m.Field.Selector == "#phone" {
			assert.Equal(t, models.MappingDomain, m.Source)
		}
	}
	after, err := f.domains.Get(ctx, "shop.example.com")
	require.NoError(t, err)
	assert.Equal(t, fixed.UnixMilli(), after.LastUsed)
}

func TestClearHighlights(t *testing.T) {
	f := newFixture(t, nil, nil, DefaultOptions())
	doc := htmldom.MustParse("https://shop.example.com/contact", contactPage)
	_, err := f.coord.Autofill(context.Background(), doc, "p1")
	require.NoError(t, err)

	assert.Equal(t, 2, f.coord.ClearHighlights(doc))
	assert.Equal(t, 0, f.coord.ClearHighlights(doc))
	assert.False(t, doc.ElementByID("email").HasClass(DefaultHighlightClass))
}

func TestFillableFields_DedupesAndDropsWrappingQuestionBlocks(t *testing.T) {
	doc := htmldom.MustParse("https://example.com", `<html><body>
		<div id="q1" role="listitem"><div role="heading">Email</div><input id="email" name="email"></div>
		<div id="q2" role="listitem"><div role="heading">Why us?</div></div>
	</body></html>`)
	email := detector.NewField(doc, doc.ElementByID("email"))
	q1 := models.Field{Element: doc.ElementByID("q1"), Selector: "#q1", QuestionBlock: true}
	q2 := models.Field{Element: doc.ElementByID("q2"), Selector: "#q2", QuestionBlock: true}
	containers := []models.Container{
		{Source: models.SourceQuestionBlock, Fields: []models.Field{q1, q2}},
		{Source: models.SourceImplicit, Fields: []models.Field{email}},
		{Source: models.SourceExplicit, Fields: []models.Field{email}},
	}

	fields := FillableFields(containers)

	require.Len(t, fields, 2)
	assert.Equal(t, "#q2", fields[0].Selector)
	assert.Equal(t, email.Selector, fields[1].Selector)
}

func TestDispatch(t *testing.T) {
	f := newFixture(t, nil, nil, DefaultOptions())
	reg := NewRegistry(nil, nil, utils.NewNopLogger())
	s := reg.Open(htmldom.MustParse("https://shop.example.com/contact", contactPage), "")
	defer reg.Close(s.ID)
	ctx := context.Background()

	resp := f.coord.Dispatch(ctx, s, Command{Action: ActionTriggerAutofill})
	assert.False(t, resp.Success)
	assert.Equal(t, "No active profile", resp.Error)

	resp = f.coord.Dispatch(ctx, s, Command{Action: ActionSetActiveProfile, ProfileID: "ghost"})
	assert.False(t, resp.Success)
	assert.Equal(t, "Profile not found", resp.Error)

	resp = f.coord.Dispatch(ctx, s, Command{Action: ActionSetActiveProfile, ProfileID: "p1"})
	require.True(t, resp.Success)
	resp = f.coord.Dispatch(ctx, s, Command{Action: ActionGetActiveProfile})
	assert.Equal(t, map[string]string{"profileId": "p1"}, resp.Data)

	resp = f.coord.Dispatch(ctx, s, Command{Action: ActionDetectForms})
	assert.Equal(t, map[string]int{"count": 1}, resp.Data)

	resp = f.coord.Dispatch(ctx, s, Command{Action: ActionTriggerAutofill})
	require.True(t, resp.Success, resp.Error)
	summary, ok := resp.Data.(models.FillSummary)
	require.True(t, ok)
	assert.Equal(t, 2, summary.FilledFields)

	resp = f.coord.Dispatch(ctx, s, Command{Action: ActionClearHighlights})
	assert.Equal(t, map[string]int{"cleared": 2}, resp.Data)

	resp = f.coord.Dispatch(ctx, s, Command{Action: "reboot"})
	assert.False(t, resp.Success)
	assert.Equal(t, "Unknown command", resp.Error)
}

func TestRegistry_ObservesInsertedForms(t *testing.T) {
	reg := NewRegistry(detector.New(utils.NewNopLogger()), nil, utils.NewNopLogger())
	doc := htmldom.MustParse("https://example.com", `<html><body><div id="root"></div></body></html>`)
	s := reg.Open(doc, "p1")

	_, err := doc.Insert(doc.ElementByID("root"), `<form id="late"><input name="email"></form>`)
	require.NoError(t, err)
	require.Len(t, s.Discovered(), 1)
	assert.Equal(t, "#late", s.Discovered()[0].Selector)

	got, ok := reg.Get(s.ID)
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Len(t, reg.List(), 1)

	assert.True(t, reg.Close(s.ID))
	assert.False(t, reg.Close(s.ID))
	_, err = doc.Insert(doc.ElementByID("root"), `<form id="later"><input name="x"></form>`)
	require.NoError(t, err)
	assert.Len(t, s.Discovered(), 1)
}

func TestCheckURL(t *testing.T) {
	for _, u := range []string{"chrome://extensions", "chrome-extension://abc/popup.html", "edge://flags", "about:blank", "moz-extension://x"} {
		assert.ErrorIs(t, CheckURL(u), ErrRestrictedURL, u)
	}
	assert.NoError(t, CheckURL("https://jobs.example.com"))
	assert.NoError(t, CheckURL("file:///tmp/form.html"))
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "Storage quota exceeded. Please delete unused profiles.", Message(store.ErrQuotaExceeded))
	assert.Equal(t, "Invalid profile data", Message(store.ErrInvalidProfile))
	assert.Equal(t, "Autofill failed.", Message(errors.New("db exploded")))
	assert.Empty(t, Message(nil))
}
