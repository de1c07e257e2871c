package controllers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"formautofill/models"
	"formautofill/parsers"
	"formautofill/store"
	"formautofill/utils"
)

const (
	maxResumeSize   = 5 << 20
	docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

type ProfileController struct {
	profiles *store.ProfileStore
	archive  *store.S3Archive
}

// NewProfileController builds the controller; archive may be nil, which
// disables S3 exports.
func NewProfileController(profiles *store.ProfileStore, archive *store.S3Archive) *ProfileController {
	return &ProfileController{profiles: profiles, archive: archive}
}

func (c *ProfileController) List(ctx *gin.Context) {
	profiles, err := c.profiles.List(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.SuccessResponse(ctx, http.StatusOK, "Profiles retrieved", profiles)
}

func (c *ProfileController) Get(ctx *gin.Context) {
	p, err := c.profiles.Require(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.SuccessResponse(ctx, http.StatusOK, "Profile retrieved", p)
}

func (c *ProfileController) Create(ctx *gin.Context) {
	var p models.Profile
	if err := ctx.ShouldBindJSON(&p); err != nil {
		utils.ValidationError(ctx, err)
		return
	}
	p.CreatedAt = 0
	if err := c.profiles.Save(ctx.Request.Context(), &p); err != nil {
		respondError(ctx, err)
		return
	}
	utils.SuccessResponse(ctx, http.StatusCreated, "Profile created", p)
}

func (c *ProfileController) Update(ctx *gin.Context) {
	id := ctx.Param("id")
	existing, err := c.profiles.Require(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, err)
		return
	}

	var p models.Profile
	if err := ctx.ShouldBindJSON(&p); err != nil {
		utils.ValidationError(ctx, err)
		return
	}
	p.ID = id
	p.CreatedAt = existing.CreatedAt
	if err := c.profiles.Save(ctx.Request.Context(), &p); err != nil {
		respondError(ctx, err)
		return
	}
	utils.SuccessResponse(ctx, http.StatusOK, "Profile updated", p)
}

func (c *ProfileController) Delete(ctx *gin.Context) {
	id := ctx.Param("id")
	found, err := c.profiles.Exists(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	if !found {
		utils.NotFoundError(ctx, "Profile not found")
		return
	}
	if err := c.profiles.Delete(ctx.Request.Context(), id); err != nil {
		respondError(ctx, err)
		return
	}
	utils.SuccessResponse(ctx, http.StatusOK, "Profile deleted", nil)
}

// Export returns a profile as JSON text, or as a Word document with
// ?format=docx. With ?archive=s3 the export is uploaded and a download link
// returned instead.
func (c *ProfileController) Export(ctx *gin.Context) {
	id := ctx.Param("id")
	var body []byte
	var contentType, ext string

	switch format := ctx.DefaultQuery("format", "json"); format {
	case "json":
		text, err := c.profiles.ExportAsText(ctx.Request.Context(), id)
		if err != nil {
			respondError(ctx, err)
			return
		}
		body, contentType, ext = []byte(text), "application/json", "json"
	case "docx":
		p, err := c.profiles.Require(ctx.Request.Context(), id)
		if err != nil {
			respondError(ctx, err)
			return
		}
		var buf bytes.Buffer
		if err := utils.WriteProfileDocx(p, &buf); err != nil {
			utils.InternalServerError(ctx, "Failed to generate document", err)
			return
		}
		body, contentType, ext = buf.Bytes(), docxContentType, "docx"
	default:
		utils.BadRequestError(ctx, "Unsupported export format", fmt.Errorf("format %q", format))
		return
	}

	name := id + "." + ext
	if ctx.Query("archive") == "s3" {
		if c.archive == nil {
			utils.ServiceUnavailableError(ctx, "S3 archive is not configured")
			return
		}
		url, err := c.archive.Upload(ctx.Request.Context(), name, body, contentType)
		if err != nil {
			utils.InternalServerError(ctx, "Failed to archive export", err)
			return
		}
		utils.SuccessResponse(ctx, http.StatusOK, "Export archived", gin.H{"url": url})
		return
	}

	ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	ctx.Data(http.StatusOK, contentType, body)
}

// Import saves a profile from its exported JSON text.
func (c *ProfileController) Import(ctx *gin.Context) {
	text, err := ctx.GetRawData()
	if err != nil {
		utils.BadRequestError(ctx, "Failed to read request body", err)
		return
	}
	p, err := c.profiles.ImportFromText(ctx.Request.Context(), string(text))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.SuccessResponse(ctx, http.StatusCreated, "Profile imported", p)
}

// FromResume builds a profile from an uploaded resume (txt, docx or pdf).
func (c *ProfileController) FromResume(ctx *gin.Context) {
	fh, err := ctx.FormFile("resume")
	if err != nil {
		utils.BadRequestError(ctx, "Resume file is required", err)
		return
	}
	if fh.Size > maxResumeSize {
		utils.ErrorResponseWithCode(ctx, http.StatusRequestEntityTooLarge, "Resume file is too large", nil)
		return
	}
	f, err := fh.Open()
	if err != nil {
		utils.BadRequestError(ctx, "Failed to read resume", err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxResumeSize))
	if err != nil {
		utils.BadRequestError(ctx, "Failed to read resume", err)
		return
	}

	text, err := parsers.ExtractText(ctx.Request.Context(), fh.Filename, data)
	if errors.Is(err, parsers.ErrUnsupportedFormat) {
		utils.BadRequestError(ctx, "Unsupported resume format", err)
		return
	}
	if err != nil {
		utils.UnprocessableError(ctx, "Could not read resume text")
		utils.LogWarn("resume extraction failed", map[string]interface{}{"file": fh.Filename, "error": err.Error()})
		return
	}
	p, err := parsers.ParseResume(text)
	if err != nil {
		utils.UnprocessableError(ctx, "Resume is empty")
		return
	}
	if name := ctx.PostForm("name"); name != "" {
		p.Name = name
	}
	if err := c.profiles.Save(ctx.Request.Context(), p); err != nil {
		respondError(ctx, err)
		return
	}
	utils.SuccessResponse(ctx, http.StatusCreated, "Profile created from resume", p)
}

// EnsureDefault creates the sample profile when no profile exists yet.
func (c *ProfileController) EnsureDefault(ctx *gin.Context) {
	p, created, err := c.profiles.EnsureDefault(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	if created {
		utils.SuccessResponse(ctx, http.StatusCreated, "Default profile created", p)
		return
	}
	utils.SuccessResponse(ctx, http.StatusOK, "Profiles already exist", p)
}
