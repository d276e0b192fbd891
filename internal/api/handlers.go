package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/credence-dev/credence/internal/jobs"
	"github.com/credence-dev/credence/internal/pipeline"
	"github.com/credence-dev/credence/internal/worker"
)

// maxImageBytes bounds uploads to the image predictor.
const maxImageBytes = 10 << 20

// AnalyzeRequest is the body of POST /api/analyze.
type AnalyzeRequest struct {
	URL       string `json:"url" binding:"required"`
	SessionID string `json:"sessionId"`
}

// AnalyzeTextRequest is the body of POST /api/analyze/text.
type AnalyzeTextRequest struct {
	Text      string `json:"text" binding:"required"`
	Title     string `json:"title"`
	SessionID string `json:"sessionId"`
}

// ExtensionAnalyzeRequest accepts either a page URL or its raw text.
type ExtensionAnalyzeRequest struct {
	URL       string `json:"url"`
	Text      string `json:"text"`
	Title     string `json:"title"`
	SessionID string `json:"sessionId"`
}

// VerifyRequest is the legacy verification contract: raw content with
// optional source metadata.
type VerifyRequest struct {
	Content   string `json:"content"`
	URL       string `json:"url"`
	Title     string `json:"title"`
	RequestID string `json:"request_id"`
}

// JobRequest is the body of POST /api/jobs.
type JobRequest struct {
	URL       string `json:"url"`
	Text      string `json:"text"`
	Title     string `json:"title"`
	SessionID string `json:"sessionId"`
}

// JobResponse is the async contract's response shape, for both the enqueue
// acknowledgement and status polls.
type JobResponse struct {
	RequestID string        `json:"requestId,omitempty"`
	PollURL   string        `json:"pollUrl,omitempty"`
	Status    string        `json:"status"`
	Attempts  int           `json:"attempts,omitempty"`
	Result    *pipeline.Web `json:"result,omitempty"`
	Error     string        `json:"error,omitempty"`
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	out, err := s.analyzer.AnalyzeURL(c.Request.Context(), req.URL, req.SessionID)
	if err != nil {
		s.renderAnalysisError(c, err)
		return
	}
	c.JSON(http.StatusOK, pipeline.FormatWeb(out))
}

func (s *Server) handleAnalyzeText(c *gin.Context) {
	var req AnalyzeTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	out, err := s.analyzer.AnalyzeText(c.Request.Context(), req.Text, req.Title, req.SessionID)
	if err != nil {
		s.renderAnalysisError(c, err)
		return
	}
	c.JSON(http.StatusOK, pipeline.FormatWeb(out))
}

func (s *Server) handleExtensionAnalyze(c *gin.Context) {
	var req ExtensionAnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var (
		out *pipeline.Outcome
		err error
	)
	switch {
	case strings.TrimSpace(req.URL) != "":
		out, err = s.analyzer.AnalyzeURL(c.Request.Context(), req.URL, req.SessionID)
	case strings.TrimSpace(req.Text) != "":
		out, err = s.analyzer.AnalyzeText(c.Request.Context(), req.Text, req.Title, req.SessionID)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "url or text is required"})
		return
	}
	if err != nil {
		s.renderAnalysisError(c, err)
		return
	}
	c.JSON(http.StatusOK, pipeline.FormatExtension(out))
}

// handleVerify serves the flat legacy shape. Content takes precedence;
// a URL alone is analyzed by fetch.
func (s *Server) handleVerify(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var (
		out *pipeline.Outcome
		err error
	)
	switch {
	case strings.TrimSpace(req.Content) != "":
		out, err = s.analyzer.AnalyzeText(c.Request.Context(), req.Content, req.Title, req.RequestID)
	case strings.TrimSpace(req.URL) != "":
		out, err = s.analyzer.AnalyzeURL(c.Request.Context(), req.URL, req.RequestID)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "content or url is required"})
		return
	}
	if err != nil {
		s.renderAnalysisError(c, err)
		return
	}
	c.JSON(http.StatusOK, pipeline.FormatFlat(out))
}

func (s *Server) handleEnqueueJob(c *gin.Context) {
	var req JobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	input := jobs.Input{URL: req.URL, Text: req.Text, Title: req.Title, SessionID: req.SessionID}

	if s.jobs == nil {
		s.runSync(c, input)
		return
	}

	ticket, err := s.jobs.Enqueue(input)
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, JobResponse{
			RequestID: ticket.RequestID,
			PollURL:   ticket.PollURL,
			Status:    string(jobs.StatePending),
		})
	case errors.Is(err, jobs.ErrEmptyInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, worker.ErrQueueFull):
		s.logger.Warn().Msg("job queue saturated, analyzing synchronously")
		s.runSync(c, input)
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (s *Server) handleJobStatus(c *gin.Context) {
	if s.jobs == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "async jobs are not enabled"})
		return
	}

	record, err := s.jobs.Status(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	resp := JobResponse{
		RequestID: record.RequestID,
		Status:    string(record.State),
		Attempts:  record.Attempts,
		Error:     record.Error,
	}
	if record.Outcome != nil {
		web := pipeline.FormatWeb(record.Outcome)
		resp.Result = &web
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handlePredictImage(c *gin.Context) {
	if s.predictor == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "image prediction is not available"})
		return
	}

	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return
	}
	if file.Size > maxImageBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image exceeds the size limit"})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer func() { _ = src.Close() }()

	data, err := io.ReadAll(io.LimitReader(src, maxImageBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	prediction := s.predictor.PredictImage(c.Request.Context(), file.Filename, data)
	if prediction == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "prediction unavailable"})
		return
	}
	c.JSON(http.StatusOK, prediction)
}

// runSync executes the analysis inline, the fallback when the async layer
// is saturated or disabled.
func (s *Server) runSync(c *gin.Context, input jobs.Input) {
	var (
		out *pipeline.Outcome
		err error
	)
	switch {
	case strings.TrimSpace(input.URL) != "":
		out, err = s.analyzer.AnalyzeURL(c.Request.Context(), input.URL, input.SessionID)
	case strings.TrimSpace(input.Text) != "":
		out, err = s.analyzer.AnalyzeText(c.Request.Context(), input.Text, input.Title, input.SessionID)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": jobs.ErrEmptyInput.Error()})
		return
	}
	if err != nil {
		s.renderAnalysisError(c, err)
		return
	}

	web := pipeline.FormatWeb(out)
	c.JSON(http.StatusOK, JobResponse{Status: string(jobs.StateCompleted), Result: &web})
}

// renderAnalysisError maps the pipeline error taxonomy onto status codes:
// client-correctable parse failures are 422, everything else 500.
func (s *Server) renderAnalysisError(c *gin.Context, err error) {
	var perr *pipeline.ParseError
	if errors.As(err, &perr) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
