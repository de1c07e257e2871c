// Package coordinator runs the detect, map and fill pipeline for one page.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"formautofill/detector"
	"formautofill/dom"
	"formautofill/dom/htmldom"
	"formautofill/models"
	"formautofill/store"
	"formautofill/utils"
)

// State is a pipeline stage.
type State string

const (
	StateIdle        State = "idle"
	StateDetecting   State = "detecting"
	StateClassifying State = "classifying"
	StateMapping     State = "mapping"
	StateFilling     State = "filling"
	StateDone        State = "done"
	StateAborted     State = "aborted"
)

const (
	DefaultFillTimeout    = 5 * time.Second
	DefaultHighlightClass = "form-autofill-filled"

	classifyConcurrency = 3
)

// DefaultChallengeMarkers are class or id substrings that identify bot challenges.
var DefaultChallengeMarkers = []string{"captcha", "cf-turnstile", "cf-challenge"}

type Classifier interface {
	Classify(ctx context.Context, c models.Container) models.Classification
}

type Mapper interface {
	Map(ctx context.Context, fields []models.Field, profile *models.Profile, domain *models.DomainMapping) []models.FieldMapping
}

type Filler interface {
	Fill(ctx context.Context, mappings []models.FieldMapping) (models.FillSummary, error)
}

type ProfileReader interface {
	Get(ctx context.Context, id string) (*models.Profile, error)
}

type DomainMappings interface {
	Get(ctx context.Context, domain string) (*models.DomainMapping, error)
	Save(ctx context.Context, m *models.DomainMapping) error
}

type Options struct {
	FillTimeout      time.Duration
	HighlightClass   string
	ChallengeMarkers []string
	// Classify enables the optional classification stage.
	Classify bool
}

func DefaultOptions() Options {
	return Options{
		FillTimeout:      DefaultFillTimeout,
		HighlightClass:   DefaultHighlightClass,
		ChallengeMarkers: DefaultChallengeMarkers,
		Classify:         true,
	}
}

// Result is everything one autofill run produced.
type Result struct {
	State      State                 `json:"state"`
	Containers []models.Container    `json:"containers"`
	Mappings   []models.FieldMapping `json:"mappings"`
	Summary    models.FillSummary    `json:"summary"`
}

type Coordinator struct {
	detector   *detector.Detector
	classifier Classifier
	mapper     Mapper
	filler     Filler
	profiles   ProfileReader
	domains    DomainMappings
	opts       Options
	logger     *utils.Logger
	now        func() time.Time
}

type Deps struct {
	Detector   *detector.Detector
	Classifier Classifier
	Mapper     Mapper
	Filler     Filler
	Profiles   ProfileReader
	Domains    DomainMappings
	Logger     *utils.Logger
}

func New(deps Deps, opts Options) *Coordinator {
	logger := deps.Logger
	if logger == nil {
		logger = utils.GlobalLogger()
	}
	det := deps.Detector
	if det == nil {
		det = detector.New(logger)
	}
	if opts.FillTimeout <= 0 {
		opts.FillTimeout = DefaultFillTimeout
	}
	if opts.HighlightClass == "" {
		opts.HighlightClass = DefaultHighlightClass
	}
	if opts.ChallengeMarkers == nil {
		opts.ChallengeMarkers = DefaultChallengeMarkers
	}
	return &Coordinator{
		detector:   det,
		classifier: deps.Classifier,
		mapper:     deps.Mapper,
		filler:     deps.Filler,
		profiles:   deps.Profiles,
		domains:    deps.Domains,
		opts:       opts,
		logger:     logger.Named("coordinator"),
		now:        time.Now,
	}
}

// run tracks the state of one invocation.
type run struct {
	c      *Coordinator
	result *Result
}

func (r *run) enter(s State) {
	r.c.logger.Debug("pipeline state", map[string]interface{}{"from": r.result.State, "to": s})
	r.result.State = s
}

func (r *run) abort(err error) (*Result, error) {
	r.enter(StateAborted)
	r.result.Summary = models.FillSummary{}
	r.c.logger.Warn("autofill aborted", map[string]interface{}{"error": err.Error()})
	return r.result, err
}

// Autofill detects the forms on doc, maps them against the profile and fills
// them. On any abort the returned summary is empty and err says why.
func (c *Coordinator) Autofill(ctx context.Context, doc dom.Document, profileID string) (*Result, error) {
	return c.autofill(ctx, doc, profileID, nil)
}

// AutofillSession runs Autofill on a session, defaulting to its active
// profile. A live session is snapshotted again first, so detection and the
// challenge guard see the page as it is now, and the fill is mirrored onto
// the page within the fill timeout. Callers hold the session through Do.
func (c *Coordinator) AutofillSession(ctx context.Context, s *Session, profileID string) (*Result, error) {
	if profileID == "" {
		profileID = s.ActiveProfile()
	}
	if err := s.refresh(ctx); err != nil {
		r := &run{c: c, result: &Result{State: StateIdle}}
		return r.abort(err)
	}
	var mirror mirrorFunc
	if s.page != nil {
		mirror = c.mirrorTo(s.page, s.Doc)
	}
	return c.autofill(ctx, s.Doc, profileID, mirror)
}

// DetectSession runs Detect on the current content of a session.
func (c *Coordinator) DetectSession(ctx context.Context, s *Session) ([]models.Container, error) {
	if err := s.refresh(ctx); err != nil {
		return nil, err
	}
	return c.Detect(ctx, s.Doc), nil
}

// ClearSessionHighlights removes the fill marker from the session document
// and from its live page. The count is taken from the live page when there
// is one.
func (c *Coordinator) ClearSessionHighlights(ctx context.Context, s *Session) (int, error) {
	n := c.ClearHighlights(s.Doc)
	if s.page == nil {
		return n, nil
	}
	return s.page.ClearHighlights(ctx, c.opts.HighlightClass)
}

// mirrorFunc copies a finished fill somewhere else and returns the summary
// with whatever could not be copied counted as failed.
type mirrorFunc func(ctx context.Context, summary models.FillSummary) models.FillSummary

func (c *Coordinator) mirrorTo(page Page, doc *htmldom.Document) mirrorFunc {
	return func(ctx context.Context, summary models.FillSummary) models.FillSummary {
		failed := page.Apply(ctx, doc, summary, c.opts.HighlightClass)
		for i := range summary.Results {
			r := &summary.Results[i]
			err, ok := failed[r.Target]
			if !ok || !r.Success {
				continue
			}
			r.Success = false
			r.Err = fmt.Errorf("%w: %v", ErrMirrorFailed, err)
			r.Error = r.Err.Error()
			summary.FilledFields--
			summary.FailedFields++
		}
		return summary
	}
}

func (c *Coordinator) autofill(ctx context.Context, doc dom.Document, profileID string, mirror mirrorFunc) (*Result, error) {
	r := &run{c: c, result: &Result{State: StateIdle}}

	if err := CheckURL(doc.URL()); err != nil {
		return r.abort(err)
	}

	r.enter(StateDetecting)
	containers := c.detector.Detect(doc)
	r.result.Containers = containers
	if marker := c.findChallenge(doc); marker != "" {
		return r.abort(fmt.Errorf("%w: %s", ErrChallengeDetected, marker))
	}
	if len(containers) == 0 {
		return r.abort(ErrNoForms)
	}

	if c.classifier != nil && c.opts.Classify {
		r.enter(StateClassifying)
		c.classifyAll(ctx, containers)
	}

	r.enter(StateMapping)
	profile, err := c.loadProfile(ctx, profileID)
	if err != nil {
		return r.abort(err)
	}
	domain := c.loadDomainMapping(ctx, doc.URL())
	mappings := c.mapper.Map(ctx, FillableFields(containers), profile, domain)
	r.result.Mappings = mappings

	r.enter(StateFilling)
	summary, err := c.fill(ctx, mappings, mirror)
	if err != nil {
		return r.abort(err)
	}
	r.result.Summary = summary
	c.highlight(summary)

	r.enter(StateDone)
	c.logger.Info("autofill complete", map[string]interface{}{
		"url":        doc.URL(),
		"containers": len(containers),
		"mapped":     len(mappings),
		"filled":     summary.FilledFields,
		"skipped":    summary.SkippedFields,
		"failed":     summary.FailedFields,
	})
	return r.result, nil
}

// Detect runs detection and classification without mapping or filling.
func (c *Coordinator) Detect(ctx context.Context, doc dom.Document) []models.Container {
	containers := c.detector.Detect(doc)
	if c.classifier != nil && c.opts.Classify {
		c.classifyAll(ctx, containers)
	}
	return containers
}

func (c *Coordinator) classifyAll(ctx context.Context, containers []models.Container) {
	var g errgroup.Group
	g.SetLimit(classifyConcurrency)
	for i := range containers {
		g.Go(func() error {
			cl := c.classifier.Classify(ctx, containers[i])
			containers[i].Classification = &cl
			return nil
		})
	}
	_ = g.Wait()
}

func (c *Coordinator) loadProfile(ctx context.Context, id string) (*models.Profile, error) {
	if id == "" {
		return nil, ErrNoActiveProfile
	}
	p, err := c.profiles.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && p == nil) {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load profile %s: %w", id, err)
	}
	return p, nil
}

// loadDomainMapping returns the override table for the page host and marks
// it used. Store problems only cost the overrides.
func (c *Coordinator) loadDomainMapping(ctx context.Context, pageURL string) *models.DomainMapping {
	if c.domains == nil {
		return nil
	}
	host := hostOf(pageURL)
	m, err := c.domains.Get(ctx, host)
	if err != nil {
		c.logger.Warn("domain mapping unavailable", map[string]interface{}{"domain": host, "error": err.Error()})
		return nil
	}
	if m == nil {
		return nil
	}
	m.LastUsed = c.now().UnixMilli()
	if err := c.domains.Save(ctx, m); err != nil {
		c.logger.Warn("failed to update domain mapping", map[string]interface{}{"domain": host, "error": err.Error()})
	}
	return m
}

type fillOutcome struct {
	summary models.FillSummary
	err     error
}

// fill races the filler, and the mirror when there is one, against the fill
// timeout. A timeout discards whatever was done so far. The filler stops at
// the next field boundary once cancelled, and fill waits for it so nothing
// touches the document after fill returns.
func (c *Coordinator) fill(ctx context.Context, mappings []models.FieldMapping, mirror mirrorFunc) (models.FillSummary, error) {
	fillCtx, cancel := context.WithTimeout(ctx, c.opts.FillTimeout)
	defer cancel()

	done := make(chan fillOutcome, 1)
	go func() {
		s, err := c.filler.Fill(fillCtx, mappings)
		if err == nil && mirror != nil {
			s = mirror(fillCtx, s)
			err = fillCtx.Err()
		}
		done <- fillOutcome{s, err}
	}()

	var out fillOutcome
	select {
	case out = <-done:
	case <-fillCtx.Done():
		<-done
		out.err = fillCtx.Err()
	}

	switch {
	case out.err == nil:
		return out.summary, nil
	case ctx.Err() != nil:
		return models.FillSummary{}, ctx.Err()
	case errors.Is(out.err, context.DeadlineExceeded):
		return models.FillSummary{}, fmt.Errorf("%w after %s", ErrFillTimeout, c.opts.FillTimeout)
	}
	return models.FillSummary{}, out.err
}

// findChallenge returns the first denylisted marker found in any class or id.
func (c *Coordinator) findChallenge(doc dom.Document) string {
	for _, el := range doc.QueryAll("[class], [id]") {
		for _, attr := range []string{"class", "id"} {
			v, _ := el.Attr(attr)
			v = strings.ToLower(v)
			if v == "" {
				continue
			}
			for _, marker := range c.opts.ChallengeMarkers {
				if strings.Contains(v, marker) {
					return marker
				}
			}
		}
	}
	return ""
}

func (c *Coordinator) highlight(summary models.FillSummary) {
	for _, r := range summary.Results {
		if r.Success && r.Control != nil {
			r.Control.AddClass(c.opts.HighlightClass)
		}
	}
}

// ClearHighlights removes the fill marker from every element and returns
// how many were cleared.
func (c *Coordinator) ClearHighlights(doc dom.Document) int {
	marked := doc.QueryAll("." + c.opts.HighlightClass)
	for _, el := range marked {
		el.RemoveClass(c.opts.HighlightClass)
	}
	return len(marked)
}

// FillableFields flattens containers into one field list. An element found by
// several strategies is kept once, and question blocks wrapping a control that
// another container already reported are dropped.
func FillableFields(containers []models.Container) []models.Field {
	seen := make(map[dom.Element]bool)
	var controls []dom.Element
	for _, c := range containers {
		for _, f := range c.Fields {
			if !f.QuestionBlock && f.Element != nil {
				controls = append(controls, f.Element)
			}
		}
	}

	var out []models.Field
	for _, c := range containers {
		for _, f := range c.Fields {
			if f.Element == nil || seen[f.Element] {
				continue
			}
			if f.QuestionBlock && wrapsAny(f.Element, controls) {
				continue
			}
			seen[f.Element] = true
			out = append(out, f)
		}
	}
	return out
}

func wrapsAny(block dom.Element, controls []dom.Element) bool {
	for _, el := range controls {
		if block.Contains(el) {
			return true
		}
	}
	return false
}
