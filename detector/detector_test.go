package detector

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formautofill/dom"
	"formautofill/dom/htmldom"
	"formautofill/models"
	"formautofill/utils"
)

func newDetector() *Detector {
	return New(utils.NewNopLogger())
}

func TestClassifyKind(t *testing.T) {
	doc := htmldom.MustParse("https://example.com", `<html><body>
		<div id="ce" contenteditable="true"></div>
		<div id="ce-off" contenteditable="false"></div>
		<div id="tb" role="textbox"></div>
		<div id="cb" role="combobox"></div>
		<div id="rg" role="radiogroup"></div>
		<textarea id="ta"></textarea>
		<select id="s"><option>a</option></select>
		<select id="ms" multiple><option>a</option></select>
		<input id="email" type="email">
		<input id="tel" type="TEL">
		<input id="check" type="checkbox">
		<input id="radio" type="radio">
		<input id="date" type="date">
		<input id="file" type="file">
		<input id="hidden" type="hidden">
		<input id="search" type="search">
		<input id="number" type="number">
		<input id="plain">
		<input id="color" type="color">
		<input id="role-wins" type="checkbox" role="textbox">
		<span id="span"></span>
	</body></html>`)

	tests := map[string]models.FieldKind{
		"ce":        models.KindTextarea,
		"ce-off":    models.KindUnknown,
		"tb":        models.KindText,
		"cb":        models.KindText,
		"rg":        models.KindRadio,
		"ta":        models.KindTextarea,
		"s":         models.KindSelect,
		"ms":        models.KindMultiSelect,
		"email":     models.KindEmail,
		"tel":       models.KindTel,
		"check":     models.KindCheckbox,
		"radio":     models.KindRadio,
		"date":      models.KindDate,
		"file":      models.KindFile,
		"hidden":    models.KindHidden,
		"search":    models.KindText,
		"number":    models.KindText,
		"plain":     models.KindText,
		"color":     models.KindText,
		"role-wins": models.KindText,
		"span":      models.KindUnknown,
	}

	for id, want := range tests {
		t.Run(id, func(t *testing.T) {
			el := doc.ElementByID(id)
			require.NotNil(t, el)
			assert.Equal(t, want, ClassifyKind(el))
		})
	}
}

func TestFindLabel(t *testing.T) {
	long := strings.Repeat("lorem ipsum ", 30)

	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "explicit for",
			html: `<label for="f">First   Name</label><div><input id="f"></div>`,
			want: "First Name",
		},
		{
			name: "wrapping label",
			html: `<label>Email <input id="f"></label>`,
			want: "Email",
		},
		{
			name: "empty explicit label falls through",
			html: `<label for="f"> </label><input id="f" aria-label="Fallback">`,
			want: "Fallback",
		},
		{
			name: "aria label",
			html: `<input id="f" aria-label="  Phone ">`,
			want: "Phone",
		},
		{
			name: "aria labelledby",
			html: `<span id="l1">Zip</span><span id="l2">Code</span><input id="f" aria-labelledby="l1 l2">`,
			want: "Zip Code",
		},
		{
			name: "ancestor text",
			html: `<div><p>City</p><div><input id="f"><button>Go</button></div></div>`,
			want: "City",
		},
		{
			name: "previous sibling",
			html: `<div>` + long + `<span>Country</span><input id="f"></div>`,
			want: "Country",
		},
		{
			name: "nothing",
			html: `<input id="f">`,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := htmldom.MustParse("https://example.com", "<html><body>"+tt.html+"</body></html>")
			el := doc.ElementByID("f")
			require.NotNil(t, el)
			assert.Equal(t, tt.want, FindLabel(doc, el))
		})
	}
}

func TestDetect_ExplicitForm(t *testing.T) {
	doc := htmldom.MustParse("https://example.com/signup", `<html><body>
		<form id="signup">
			<p>Create   your account</p>
			<input name="email" type="email" required>
			<input name="phone" type="tel" pattern="[0-9]+">
			<input type="hidden" name="csrf" value="x">
			<input type="submit" value="Go">
			<button>Send</button>
			<script>var tracking = 1;</script>
		</form>
	</body></html>`)

	containers := newDetector().Detect(doc)
	require.Len(t, containers, 1)

	c := containers[0]
	assert.Equal(t, models.SourceExplicit, c.Source)
	assert.Equal(t, "#signup", c.Selector)
	assert.Equal(t, "Create your account", c.ContextText)
	require.Len(t, c.Fields, 2)

	assert.Equal(t, models.KindEmail, c.Fields[0].Kind)
	assert.Equal(t, `input[name="email"]`, c.Fields[0].Selector)
	assert.True(t, c.Fields[0].Attributes.Required)
	assert.Equal(t, models.KindTel, c.Fields[1].Kind)
	assert.Equal(t, "[0-9]+", c.Fields[1].Attributes.Pattern)
}

func TestDetect_QuestionBlocks(t *testing.T) {
	doc := htmldom.MustParse("https://forms.example.com", `<html><body>
		<div role="main" id="main">
			<div role="listitem" data-item-id="1"><div class="title">What is your email? *</div></div>
			<div role="listitem" data-item-id="2"><div class="title">Tell us about yourself</div><textarea></textarea></div>
		</div>
	</body></html>`)

	containers := newDetector().Detect(doc)
	require.Len(t, containers, 1)

	c := containers[0]
	assert.Equal(t, models.SourceQuestionBlock, c.Source)
	assert.Equal(t, "#main", c.Selector)
	require.Len(t, c.Fields, 2)

	assert.True(t, c.Fields[0].QuestionBlock)
	assert.Equal(t, "What is your email? *", c.Fields[0].Attributes.Label)
	assert.Equal(t, models.KindEmail, c.Fields[0].Kind)
	assert.True(t, c.Fields[0].Attributes.Required)

	assert.Equal(t, "Tell us about yourself", c.Fields[1].Attributes.Label)
	assert.Equal(t, models.KindTextarea, c.Fields[1].Kind)
	assert.False(t, c.Fields[1].Attributes.Required)
}

func TestDetect_QuestionBlocksSkipWrappers(t *testing.T) {
	doc := htmldom.MustParse("https://forms.example.com", `<html><body>
		<div class="form-items">
			<div class="question"><label>Name</label></div>
			<div class="question"><label>Phone</label></div>
		</div>
	</body></html>`)

	containers := newDetector().QuestionBlocks(doc)
	require.Len(t, containers, 1)
	require.Len(t, containers[0].Fields, 2)
	assert.Equal(t, "Name", containers[0].Fields[0].Attributes.Label)
	assert.Equal(t, "Phone", containers[0].Fields[1].Attributes.Label)
	assert.Equal(t, "body", containers[0].Selector)
}

func TestDetect_ImplicitClusters(t *testing.T) {
	doc := htmldom.MustParse("https://example.com", `<html><body>
		<div class="contact-field-group" id="contact">
			<h2>Contact us</h2>
			<input name="fullName">
			<input name="email" type="email">
		</div>
		<div id="search"><input name="q" placeholder="Search"></div>
	</body></html>`)

	containers := newDetector().Detect(doc)
	require.Len(t, containers, 1)

	c := containers[0]
	assert.Equal(t, models.SourceImplicit, c.Source)
	assert.Equal(t, "#contact", c.Selector)
	assert.Equal(t, "Contact us", c.ContextText)
	assert.Len(t, c.Fields, 2)
}

func TestDetect_ImplicitNeverBelowMinimum(t *testing.T) {
	doc := htmldom.MustParse("https://example.com", `<html><body>
		<div class="field"><input name="a"></div>
		<div data-widget="x"><input name="b"></div>
		<div><div><input name="c"></div></div>
		<div role="group"><input name="d"><select name="e"><option>1</option></select></div>
	</body></html>`)

	for _, c := range newDetector().Detect(doc) {
		if c.Source == models.SourceImplicit {
			assert.GreaterOrEqual(t, len(c.Fields), 2, c.Selector)
		}
	}
}

func TestDetect_BareInputsFallBackToBody(t *testing.T) {
	doc := htmldom.MustParse("https://example.com", `<html><body><input name="a"><input name="b"></body></html>`)

	containers := newDetector().ImplicitClusters(doc, doc.QueryAll(candidateSelector))
	require.Len(t, containers, 1)
	assert.Equal(t, "body", containers[0].Selector)
	assert.Len(t, containers[0].Fields, 2)
}

func TestContextText_Truncates(t *testing.T) {
	doc := htmldom.MustParse("https://example.com", `<html><body><div id="c">`+
		strings.Repeat("word ", 400)+`<style>.x{}</style><select><option>hidden option</option></select></div></body></html>`)

	text := ContextText(doc.ElementByID("c"))
	assert.Len(t, []rune(text), 1000)
	assert.NotContains(t, text, "hidden option")
	assert.NotContains(t, text, "  ")
}

func TestSelectorsRelocateElements(t *testing.T) {
	doc := htmldom.MustParse("https://example.com", `<html><body>
		<div><p>intro</p></div>
		<form>
			<input id="1st.name">
			<input name='say "hi"'>
			<input type="radio" name="gender" value="f">
			<input type="radio" name="gender" value="m">
			<textarea></textarea>
			<textarea></textarea>
		</form>
	</body></html>`)

	containers := newDetector().ExplicitForms(doc, doc.QueryAll("form"))
	require.Len(t, containers, 1)
	assert.Equal(t, "body > form:nth-of-type(1)", containers[0].Selector)
	require.Len(t, containers[0].Fields, 6)

	for _, f := range containers[0].Fields {
		found := doc.Query(f.Selector)
		require.NotNil(t, found, f.Selector)
		assert.Equal(t, f.Element, found, f.Selector)
	}
	assert.Equal(t, `input[name="gender"][value="m"]`, containers[0].Fields[3].Selector)
	assert.Equal(t, "body > form:nth-of-type(1) > textarea:nth-of-type(2)", containers[0].Fields[5].Selector)
}

func TestObserve(t *testing.T) {
	doc := htmldom.MustParse("https://example.com", `<html><body><div id="root"></div></body></html>`)
	root := doc.ElementByID("root")

	var got []models.Container
	sub := newDetector().Observe(doc, func(c models.Container) {
		got = append(got, c)
	})

	_, err := doc.Insert(root, `<form id="late"><input name="email"></form>`)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.SourceExplicit, got[0].Source)
	assert.Equal(t, "#late", got[0].Selector)

	_, err = doc.Insert(root, `<div class="survey"><input name="a"><input name="b"></div>`)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, models.SourceImplicit, got[1].Source)
	assert.Len(t, got[1].Fields, 2)

	// Growing an already reported container must not re-fire.
	survey := doc.Query(".survey")
	require.NotNil(t, survey)
	_, err = doc.Insert(survey, `<input name="c">`)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	// A lone input is not a form.
	_, err = doc.Insert(root, `<div class="field"><input name="solo"></div>`)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	sub.Cancel()
	_, err = doc.Insert(root, `<form id="ignored"><input name="x"></form>`)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestObserve_DoesNotRescanQuestionBlocks(t *testing.T) {
	doc := htmldom.MustParse("https://example.com", `<html><body><div id="root"></div></body></html>`)

	var got []models.Container
	sub := newDetector().Observe(doc, func(c models.Container) { got = append(got, c) })
	defer sub.Cancel()

	_, err := doc.Insert(doc.ElementByID("root"), `<div role="listitem"><div class="title">Name</div></div>`)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestObserve_KnowsExistingContainers(t *testing.T) {
	doc := htmldom.MustParse("https://example.com", `<html><body>
		<form id="signup"><input name="email"></form>
		<div class="survey" id="survey"><input name="a"><input name="b"></div>
	</body></html>`)

	var got []models.Container
	sub := newDetector().Observe(doc, func(c models.Container) { got = append(got, c) })
	defer sub.Cancel()

	_, err := doc.Insert(doc.ElementByID("survey"), `<input name="c">`)
	require.NoError(t, err)
	_, err = doc.Insert(doc.ElementByID("signup"), `<input name="phone">`)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = doc.Insert(doc.Body(), `<form id="late"><input name="x"></form>`)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "#late", got[0].Selector)
}

var _ dom.Document = (*htmldom.Document)(nil)
