package handlers

import (
	"io"
	"net/http"

	"lexdraft-backend/models"
	"lexdraft-backend/render"
	"lexdraft-backend/service"

	"github.com/gin-gonic/gin"
)

// maxAudioBytes caps voice uploads; recordings past this are rejected
// before any model call.
const maxAudioBytes = 10 << 20

// ComplaintHandler handles HTTP requests for the complaint pipeline.
type ComplaintHandler struct {
	complaints *service.ComplaintService
	renderer   *render.Renderer
}

// NewComplaintHandler creates a new complaint handler.
func NewComplaintHandler(complaints *service.ComplaintService, renderer *render.Renderer) *ComplaintHandler {
	return &ComplaintHandler{
		complaints: complaints,
		renderer:   renderer,
	}
}

// ProcessComplaintRequest represents the request body for a typed grievance.
type ProcessComplaintRequest struct {
	Text           string `json:"text" binding:"required"`
	OutputLanguage string `json:"output_language"`
}

// complaintResponse is the JSON shape of a completed pipeline run.
type complaintResponse struct {
	Rejected         bool                `json:"rejected"`
	Message          string              `json:"message,omitempty"`
	OriginalText     string              `json:"original_text,omitempty"`
	DetectedLanguage string              `json:"detected_language,omitempty"`
	OutputLanguage   string              `json:"output_language,omitempty"`
	Sections         []models.IPCSection `json:"sections,omitempty"`
	Complaint        string              `json:"complaint,omitempty"`
	DraftFailed      bool                `json:"draft_failed,omitempty"`
	PDFAvailable     bool                `json:"pdf_available"`
}

// ProcessComplaint handles POST /api/complaints
func (h *ComplaintHandler) ProcessComplaint(c *gin.Context) {
	var req ProcessComplaintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": err.Error(),
			},
		})
		return
	}

	h.runPipeline(c, service.ProcessComplaintRequest{
		Text:           req.Text,
		OutputLanguage: req.OutputLanguage,
	})
}

// ProcessVoiceComplaint handles POST /api/complaints/voice
// Expects a multipart form with an "audio" file (WAV) and an optional
// "output_language" field.
func (h *ComplaintHandler) ProcessVoiceComplaint(c *gin.Context) {
	fileHeader, err := c.FormFile("audio")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "MISSING_AUDIO",
				"message": "audio file is required",
			},
		})
		return
	}
	if fileHeader.Size > maxAudioBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "AUDIO_TOO_LARGE",
				"message": "audio recording exceeds the size limit",
			},
		})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_AUDIO",
				"message": err.Error(),
			},
		})
		return
	}
	defer f.Close()

	audio, err := io.ReadAll(io.LimitReader(f, maxAudioBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_AUDIO",
				"message": err.Error(),
			},
		})
		return
	}

	h.runPipeline(c, service.ProcessComplaintRequest{
		Audio:          audio,
		OutputLanguage: c.PostForm("output_language"),
	})
}

func (h *ComplaintHandler) runPipeline(c *gin.Context, req service.ProcessComplaintRequest) {
	result, err := h.complaints.ProcessComplaint(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "PIPELINE_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	if result.Rejected {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data": complaintResponse{
				Rejected:         true,
				Message:          "This tool is for Indian legal queries only.",
				OriginalText:     result.OriginalText,
				DetectedLanguage: result.DetectedLanguage,
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": complaintResponse{
			OriginalText:     result.OriginalText,
			DetectedLanguage: result.DetectedLanguage,
			OutputLanguage:   result.Draft.Language,
			Sections:         result.Sections,
			Complaint:        result.Draft.Text,
			DraftFailed:      service.IsDraftError(result.Draft.Text),
			PDFAvailable:     result.PDFError == nil,
		},
	})
}

// ExportComplaintRequest represents the request body for artifact export.
type ExportComplaintRequest struct {
	Complaint string `json:"complaint" binding:"required"`
}

// ExportComplaint handles POST /api/complaints/export?format=txt|pdf
// Export is stateless: the client resubmits the complaint text and the
// renderer recomputes the artifact.
func (h *ComplaintHandler) ExportComplaint(c *gin.Context) {
	var req ExportComplaintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": err.Error(),
			},
		})
		return
	}

	format := c.DefaultQuery("format", "pdf")
	switch format {
	case "txt":
		c.Header("Content-Disposition", `attachment; filename="legal_complaint.txt"`)
		c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(req.Complaint))

	case "pdf":
		doc, err := h.renderer.Render(req.Complaint)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "RENDER_FAILED",
					"message": err.Error(),
				},
			})
			return
		}
		c.Header("Content-Disposition", `attachment; filename="legal_complaint.pdf"`)
		c.Data(http.StatusOK, "application/pdf", doc.PDF)

	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_FORMAT",
				"message": "format must be txt or pdf",
			},
		})
	}
}
