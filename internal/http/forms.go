package http

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/flashshelf/internal/addbook"
)

const (
	defaultMaxUploadBytes = 10 << 20

	// nginx convention for a client that went away mid-request.
	statusClientClosedRequest = 499
)

// FormsController exposes add-book forms. Each form lives server-side and is
// addressed by id; closing it cancels its lookups and suggestions.
type FormsController struct {
	forms          FormRegistry
	maxUploadBytes int64
}

func NewFormsController(forms FormRegistry, maxUploadBytes int64) *FormsController {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &FormsController{forms: forms, maxUploadBytes: maxUploadBytes}
}

// form resolves :id or responds 404.
func (fc *FormsController) form(c *gin.Context) (*addbook.Form, bool) {
	form, ok := fc.forms.Get(c.Param("id"))
	if !ok {
		respondNotFound(c, "form")
		return nil, false
	}
	return form, true
}

// respondFormError maps form errors onto status codes.
func respondFormError(c *gin.Context, err error, op string) {
	switch {
	case errors.Is(err, addbook.ErrFormClosed):
		c.JSON(http.StatusGone, ErrorResponse{Error: "form closed", Code: "form_closed"})
	case errors.Is(err, addbook.ErrNotScanning):
		respondConflict(c, "scanner is not active", "not_scanning")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		log.Printf("[forms] %s abandoned: %v", op, err)
		c.Status(statusClientClosedRequest)
	default:
		respondInternalError(c, err, op)
	}
}

func (fc *FormsController) Open(c *gin.Context) {
	form := fc.forms.Open()
	c.JSON(http.StatusCreated, form.State())
}

func (fc *FormsController) Get(c *gin.Context) {
	form, ok := fc.form(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, form.State())
}

type formPatchRequest struct {
	addbook.Patch
	Mode           *addbook.Mode `json:"mode"`
	DismissMessage bool          `json:"dismiss_message"`
}

// Patch edits fields, switches mode and/or dismisses the current message.
func (fc *FormsController) Patch(c *gin.Context) {
	form, ok := fc.form(c)
	if !ok {
		return
	}

	var req formPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}

	if req.DismissMessage {
		form.DismissMessage()
	}
	if req.Mode != nil {
		if _, err := form.SetMode(*req.Mode); err != nil {
			if errors.Is(err, addbook.ErrFormClosed) {
				respondFormError(c, err, "set mode")
				return
			}
			respondBadRequest(c, err.Error())
			return
		}
	}
	state, err := form.SetFields(req.Patch)
	if err != nil {
		respondFormError(c, err, "set fields")
		return
	}
	c.JSON(http.StatusOK, state)
}

func (fc *FormsController) Close(c *gin.Context) {
	if !fc.forms.Close(c.Param("id")) {
		respondNotFound(c, "form")
		return
	}
	c.Status(http.StatusNoContent)
}

func (fc *FormsController) Lookup(c *gin.Context) {
	form, ok := fc.form(c)
	if !ok {
		return
	}
	state, err := form.Lookup(c.Request.Context())
	if err != nil {
		respondFormError(c, err, "lookup")
		return
	}
	c.JSON(http.StatusOK, state)
}

func (fc *FormsController) StartScan(c *gin.Context) {
	form, ok := fc.form(c)
	if !ok {
		return
	}
	state, err := form.StartScan()
	if err != nil {
		respondFormError(c, err, "start scan")
		return
	}
	c.JSON(http.StatusOK, state)
}

func (fc *FormsController) StopScan(c *gin.Context) {
	form, ok := fc.form(c)
	if !ok {
		return
	}
	state, err := form.StopScan()
	if err != nil {
		respondFormError(c, err, "stop scan")
		return
	}
	c.JSON(http.StatusOK, state)
}

type detectRequest struct {
	Code string `json:"code" binding:"required"`
}

type detectResponse struct {
	Accepted bool          `json:"accepted"`
	State    addbook.State `json:"state"`
}

// Detect receives a code decoded by the client's camera scanner.
func (fc *FormsController) Detect(c *gin.Context) {
	form, ok := fc.form(c)
	if !ok {
		return
	}

	var req detectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "code is required")
		return
	}

	state, accepted, err := form.Detect(c.Request.Context(), req.Code)
	if err != nil {
		respondFormError(c, err, "detect")
		return
	}
	c.JSON(http.StatusOK, detectResponse{Accepted: accepted, State: state})
}

// UploadCover accepts a multipart "file" field.
func (fc *FormsController) UploadCover(c *gin.Context) {
	form, ok := fc.form(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, fc.maxUploadBytes)
	header, err := c.FormFile("file")
	if err != nil {
		respondBadRequest(c, "file is required")
		return
	}
	file, err := header.Open()
	if err != nil {
		respondBadRequest(c, "unreadable file")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	state, err := form.UploadCover(c.Request.Context(), header.Filename, contentType, file)
	if err != nil {
		respondFormError(c, err, "upload cover")
		return
	}
	c.JSON(http.StatusOK, state)
}

type submitResponse struct {
	Saved bool          `json:"saved"`
	State addbook.State `json:"state"`
}

// Submit saves the book. An empty title answers 200 with saved=false.
func (fc *FormsController) Submit(c *gin.Context) {
	form, ok := fc.form(c)
	if !ok {
		return
	}
	state, saved, err := form.Submit(c.Request.Context())
	if err != nil {
		respondFormError(c, err, "submit")
		return
	}
	c.JSON(http.StatusOK, submitResponse{Saved: saved, State: state})
}
