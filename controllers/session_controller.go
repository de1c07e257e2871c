package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"formautofill/app"
	"formautofill/coordinator"
	"formautofill/dom/htmldom"
	"formautofill/models"
	"formautofill/utils"
)

type SessionController struct {
	app *app.App
}

func NewSessionController(a *app.App) *SessionController {
	return &SessionController{app: a}
}

// CreateSessionRequest opens a session on posted HTML, or on a live page
// loaded from URL when HTML is empty.
type CreateSessionRequest struct {
	URL           string `json:"url"`
	HTML          string `json:"html"`
	ActiveProfile string `json:"activeProfile"`
}

type SessionView struct {
	ID            string    `json:"id"`
	URL           string    `json:"url"`
	CreatedAt     time.Time `json:"createdAt"`
	ActiveProfile string    `json:"activeProfile"`
	Live          bool      `json:"live"`
	Discovered    int       `json:"discovered"`
}

type InsertRequest struct {
	Parent string `json:"parent"`
	HTML   string `json:"html" binding:"required"`
}

type ActiveProfileRequest struct {
	ProfileID string `json:"profileId"`
}

type AutofillRequest struct {
	ProfileID string `json:"profileId"`
}

type FormsResponse struct {
	Count      int                `json:"count"`
	Containers []models.Container `json:"containers"`
	Fillable   []models.Field     `json:"fillable"`
}

func (c *SessionController) view(s *coordinator.Session) SessionView {
	return SessionView{
		ID:            s.ID,
		URL:           s.URL,
		CreatedAt:     s.CreatedAt,
		ActiveProfile: s.ActiveProfile(),
		Live:          s.Live(),
		Discovered:    len(s.Discovered()),
	}
}

func (c *SessionController) session(ctx *gin.Context) (*coordinator.Session, bool) {
	s, ok := c.app.Sessions.Get(ctx.Param("id"))
	if !ok {
		utils.NotFoundError(ctx, "Session not found")
	}
	return s, ok
}

func (c *SessionController) Create(ctx *gin.Context) {
	var req CreateSessionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.ValidationError(ctx, err)
		return
	}
	if req.HTML == "" && req.URL == "" {
		utils.BadRequestError(ctx, "Either html or url is required", nil)
		return
	}
	if err := coordinator.CheckURL(req.URL); err != nil {
		respondError(ctx, err)
		return
	}

	var s *coordinator.Session
	if req.HTML != "" {
		doc, err := htmldom.Parse(req.URL, req.HTML)
		if err != nil {
			utils.BadRequestError(ctx, "Invalid HTML", err)
			return
		}
		s = c.app.Sessions.Open(doc, req.ActiveProfile)
	} else {
		var err error
		s, err = c.app.OpenLive(ctx.Request.Context(), req.URL, req.ActiveProfile)
		if err != nil {
			utils.LogError("failed to open live page", err, map[string]interface{}{"url": req.URL})
			utils.ErrorResponseWithCode(ctx, http.StatusBadGateway, "Could not open page", nil)
			return
		}
	}

	utils.LogInfo("session opened", map[string]interface{}{"session": s.ID, "url": s.URL})
	utils.SuccessResponse(ctx, http.StatusCreated, "Session opened", c.view(s))
}

func (c *SessionController) List(ctx *gin.Context) {
	sessions := c.app.Sessions.List()
	views := make([]SessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, c.view(s))
	}
	utils.SuccessResponse(ctx, http.StatusOK, "Sessions retrieved", views)
}

func (c *SessionController) Get(ctx *gin.Context) {
	s, ok := c.session(ctx)
	if !ok {
		return
	}
	utils.SuccessResponse(ctx, http.StatusOK, "Session retrieved", c.view(s))
}

// HTML returns the current markup of the session document, fills included.
func (c *SessionController) HTML(ctx *gin.Context) {
	s, ok := c.session(ctx)
	if !ok {
		return
	}
	var out string
	var err error
	s.Do(func() { out, err = s.Doc.HTML() })
	if err != nil {
		utils.InternalServerError(ctx, "Failed to render document", err)
		return
	}
	ctx.Data(http.StatusOK, "text/html; charset=utf-8", []byte(out))
}

func (c *SessionController) Delete(ctx *gin.Context) {
	if !c.app.Sessions.Close(ctx.Param("id")) {
		utils.NotFoundError(ctx, "Session not found")
		return
	}
	utils.SuccessResponse(ctx, http.StatusOK, "Session closed", nil)
}

// Insert appends an HTML fragment to the session document, the way a page
// script would. Forms it adds are reported by the observer. Live sessions
// follow their page and take no fragments.
func (c *SessionController) Insert(ctx *gin.Context) {
	s, ok := c.session(ctx)
	if !ok {
		return
	}
	if s.Live() {
		utils.BadRequestError(ctx, "Live sessions follow their page; fragments can only be inserted into posted documents", nil)
		return
	}
	var req InsertRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.ValidationError(ctx, err)
		return
	}

	var inserted int
	var err error
	found := true
	s.Do(func() {
		parent := s.Doc.Body()
		if req.Parent != "" {
			parent = s.Doc.Query(req.Parent)
		}
		if parent == nil {
			found = false
			return
		}
		added, insertErr := s.Doc.Insert(parent, req.HTML)
		inserted, err = len(added), insertErr
	})
	if !found {
		utils.NotFoundError(ctx, "Parent element not found")
		return
	}
	if err != nil {
		utils.BadRequestError(ctx, "Invalid fragment", err)
		return
	}
	utils.SuccessResponse(ctx, http.StatusOK, "Fragment inserted", gin.H{
		"inserted":   inserted,
		"discovered": len(s.Discovered()),
	})
}

func (c *SessionController) Autofill(ctx *gin.Context) {
	s, ok := c.session(ctx)
	if !ok {
		return
	}
	var req AutofillRequest
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			utils.ValidationError(ctx, err)
			return
		}
	}
	var result *coordinator.Result
	var err error
	s.Do(func() { result, err = c.app.Coordinator.AutofillSession(ctx.Request.Context(), s, req.ProfileID) })
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.SuccessResponse(ctx, http.StatusOK, "Autofill complete", result)
}

func (c *SessionController) GetActiveProfile(ctx *gin.Context) {
	s, ok := c.session(ctx)
	if !ok {
		return
	}
	resp := c.app.Coordinator.Dispatch(ctx.Request.Context(), s, coordinator.Command{Action: coordinator.ActionGetActiveProfile})
	utils.SuccessResponse(ctx, http.StatusOK, "Active profile retrieved", resp.Data)
}

// SetActiveProfile selects the profile used when autofill names none. An
// empty id clears the selection.
func (c *SessionController) SetActiveProfile(ctx *gin.Context) {
	s, ok := c.session(ctx)
	if !ok {
		return
	}
	var req ActiveProfileRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.ValidationError(ctx, err)
		return
	}
	if req.ProfileID != "" {
		if _, err := c.app.Profiles.Require(ctx.Request.Context(), req.ProfileID); err != nil {
			respondError(ctx, err)
			return
		}
	}
	s.SetActiveProfile(req.ProfileID)
	utils.SuccessResponse(ctx, http.StatusOK, "Active profile updated", gin.H{"profileId": req.ProfileID})
}

func (c *SessionController) Forms(ctx *gin.Context) {
	s, ok := c.session(ctx)
	if !ok {
		return
	}
	var containers []models.Container
	var err error
	s.Do(func() { containers, err = c.app.Coordinator.DetectSession(ctx.Request.Context(), s) })
	if err != nil {
		respondError(ctx, err)
		return
	}
	if containers == nil {
		containers = []models.Container{}
	}
	utils.SuccessResponse(ctx, http.StatusOK, "Forms detected", FormsResponse{
		Count:      len(containers),
		Containers: containers,
		Fillable:   coordinator.FillableFields(containers),
	})
}

func (c *SessionController) ClearHighlights(ctx *gin.Context) {
	s, ok := c.session(ctx)
	if !ok {
		return
	}
	var cleared int
	var err error
	s.Do(func() { cleared, err = c.app.Coordinator.ClearSessionHighlights(ctx.Request.Context(), s) })
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.SuccessResponse(ctx, http.StatusOK, "Highlights cleared", gin.H{"cleared": cleared})
}

// Command runs one host command and replies with the bare command response.
func (c *SessionController) Command(ctx *gin.Context) {
	s, ok := c.session(ctx)
	if !ok {
		return
	}
	var cmd coordinator.Command
	if err := ctx.ShouldBindJSON(&cmd); err != nil {
		utils.ValidationError(ctx, err)
		return
	}

	var resp coordinator.Response
	s.Do(func() { resp = c.app.Coordinator.Dispatch(ctx.Request.Context(), s, cmd) })
	ctx.JSON(http.StatusOK, resp)
}
