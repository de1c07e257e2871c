package coordinator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"formautofill/detector"
	"formautofill/dom"
	"formautofill/dom/htmldom"
	"formautofill/models"
	"formautofill/utils"
)

// Page is a live page mirrored by a session. The pipeline never works on
// the page itself: it runs on a fresh Snapshot, and Apply copies the filled
// snapshot state back, returning the targets it could not update.
type Page interface {
	Snapshot(ctx context.Context) (*htmldom.Document, error)
	Apply(ctx context.Context, doc *htmldom.Document, summary models.FillSummary, highlightClass string) map[string]error
	ClearHighlights(ctx context.Context, class string) (int, error)
	Close() error
}

// Session is the state of one page the host is working on: the document
// and the profile chosen for it. It replaces any process-wide active profile.
type Session struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"createdAt"`

	// Doc is the working document. For a live session it is replaced by a
	// new snapshot before every pipeline run, so read it under Do.
	Doc *htmldom.Document `json:"-"`

	// doc serializes work on Doc; the document itself is not safe for
	// concurrent use.
	doc sync.Mutex

	page       Page
	observe    func(*htmldom.Document) dom.Subscription
	classifier Classifier

	ctx     context.Context
	cancel  context.CancelFunc
	pending sync.WaitGroup

	mu            sync.RWMutex
	activeProfile string
	discovered    []models.Container
	watch         dom.Subscription
	closed        bool
}

func (s *Session) ActiveProfile() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeProfile
}

func (s *Session) SetActiveProfile(id string) {
	s.mu.Lock()
	s.activeProfile = id
	s.mu.Unlock()
}

// Live reports whether the session mirrors a browser page.
func (s *Session) Live() bool {
	return s.page != nil
}

// Do runs fn with exclusive access to the session document.
func (s *Session) Do(fn func()) {
	s.doc.Lock()
	defer s.doc.Unlock()
	fn()
}

// Discovered returns containers reported by the live observer since the
// session was opened.
func (s *Session) Discovered() []models.Container {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Container(nil), s.discovered...)
}

// record keeps an inserted container and classifies it in the background,
// off the mutation notification path.
func (s *Session) record(c models.Container) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	idx := len(s.discovered)
	s.discovered = append(s.discovered, c)
	if s.classifier == nil {
		s.mu.Unlock()
		return
	}
	s.pending.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.pending.Done()
		cl := s.classifier.Classify(s.ctx, c)
		s.mu.Lock()
		s.discovered[idx].Classification = &cl
		s.mu.Unlock()
	}()
}

// refresh replaces Doc with a new snapshot of the live page and moves the
// observer onto it. It is a no-op for sessions without a page. Callers hold
// the session through Do.
func (s *Session) refresh(ctx context.Context) error {
	if s.page == nil {
		return nil
	}
	doc, err := s.page.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPageUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watch != nil {
		s.watch.Cancel()
		s.watch = nil
	}
	s.Doc = doc
	if !s.closed {
		s.watch = s.observe(doc)
	}
	return nil
}

// Close stops observing the document, waits for pending classifications and
// closes the live page, if any.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.watch != nil {
		s.watch.Cancel()
		s.watch = nil
	}
	s.mu.Unlock()

	s.cancel()
	s.pending.Wait()
	if s.page != nil {
		return s.page.Close()
	}
	return nil
}

// Registry holds open sessions by id.
type Registry struct {
	mu         sync.RWMutex
	sessions   map[string]*Session
	detector   *detector.Detector
	classifier Classifier
	logger     *utils.Logger
}

// NewRegistry returns an empty registry. Containers the observer finds are
// classified with classifier when it is not nil.
func NewRegistry(det *detector.Detector, classifier Classifier, logger *utils.Logger) *Registry {
	if logger == nil {
		logger = utils.GlobalLogger()
	}
	if det == nil {
		det = detector.New(logger)
	}
	return &Registry{
		sessions:   make(map[string]*Session),
		detector:   det,
		classifier: classifier,
		logger:     logger.Named("sessions"),
	}
}

// Open registers a session for doc and starts observing it for inserted forms.
func (r *Registry) Open(doc *htmldom.Document, activeProfile string) *Session {
	s := r.newSession(doc, nil, activeProfile)
	r.add(s)
	return s
}

// OpenPage registers a session mirroring a live page, starting from a
// snapshot of its current content.
func (r *Registry) OpenPage(ctx context.Context, page Page, activeProfile string) (*Session, error) {
	doc, err := page.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPageUnavailable, err)
	}
	s := r.newSession(doc, page, activeProfile)
	r.add(s)
	return s, nil
}

func (r *Registry) newSession(doc *htmldom.Document, page Page, activeProfile string) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:            uuid.NewString(),
		URL:           doc.URL(),
		CreatedAt:     time.Now(),
		Doc:           doc,
		page:          page,
		classifier:    r.classifier,
		ctx:           ctx,
		cancel:        cancel,
		activeProfile: activeProfile,
	}
	s.observe = func(d *htmldom.Document) dom.Subscription {
		return r.detector.Observe(d, s.record)
	}
	s.watch = s.observe(doc)
	return s
}

func (r *Registry) add(s *Session) {
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Close removes and closes a session. It reports whether the session existed.
func (r *Registry) Close(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		if err := s.Close(); err != nil {
			r.logger.Warn("page close failed", map[string]interface{}{"session": id, "error": err.Error()})
		}
	}
	return ok
}

// List returns open sessions, oldest first.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
