package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/KaramelBytes/datachat-cli/internal/analysis"
	"github.com/KaramelBytes/datachat-cli/internal/parser"
	"github.com/KaramelBytes/datachat-cli/internal/prompt"
	"github.com/KaramelBytes/datachat-cli/internal/session"
	"github.com/KaramelBytes/datachat-cli/internal/table"
)

// HealthHandler reports liveness.
func (s *Server) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "sessions": s.Len()})
}

// SuggestionsHandler lists the suggested questions, 1-based.
func (s *Server) SuggestionsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"suggestions": prompt.Suggested()})
}

func (s *Server) CreateSessionHandler(c *gin.Context) {
	id, e := s.create()
	c.JSON(http.StatusCreated, gin.H{"id": id, "state": e.sess.State(), "created_at": e.created})
}

func (s *Server) DeleteSessionHandler(c *gin.Context) {
	if !s.remove(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// UploadHandler loads a multipart "file" into the session.
func (s *Server) UploadHandler(c *gin.Context) {
	s.withSession(c, func(sess *session.Session) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUpload+(1<<20))
		fh, err := c.FormFile("file")
		if err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("file exceeds %d MB limit", s.cfg.MaxUpload>>20)})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field 'file' is required"})
			return
		}
		if fh.Size > s.cfg.MaxUpload {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("file exceeds %d MB limit", s.cfg.MaxUpload>>20)})
			return
		}
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "open uploaded file: " + err.Error()})
			return
		}
		defer f.Close()
		data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUpload+1))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "read uploaded file: " + err.Error()})
			return
		}
		sum, err := sess.Upload(fh.Filename, data)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "✅ Data loaded successfully!", "summary": sum})
	})
}

func (s *Server) PreviewHandler(c *gin.Context) {
	s.withSession(c, func(sess *session.Session) {
		n := analysis.PreviewRows
		if q := c.Query("rows"); q != "" {
			v, err := strconv.Atoi(q)
			if err != nil || v <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "rows must be a positive integer"})
				return
			}
			n = v
		}
		t, err := sess.Preview(n)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, previewJSON(t))
	})
}

func previewJSON(t *table.Table) gin.H {
	rows := make([][]string, t.Rows())
	for i := range rows {
		rows[i] = t.Record(i)
	}
	return gin.H{"columns": t.ColumnNames(), "rows": rows, "text": t.Text(0)}
}

func (s *Server) SummaryHandler(c *gin.Context) {
	s.withSession(c, func(sess *session.Session) {
		sum, err := sess.Summary()
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"summary": sum,
			"info":    sum.Info(),
			"missing": sum.Missing(),
		})
	})
}

type calculateRequest struct {
	Operation string `json:"operation" binding:"required"`
	Column    string `json:"column" binding:"required"`
}

func (s *Server) CalculateHandler(c *gin.Context) {
	var req calculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	op, err := analysis.ParseOperation(req.Operation)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.withSession(c, func(sess *session.Session) {
		res, err := sess.Calculate(op, req.Column)
		var te *analysis.TypeError
		var ce *analysis.ColumnError
		switch {
		case errors.As(err, &te), errors.As(err, &ce):
			c.JSON(http.StatusOK, gin.H{"result": session.Describe(err), "error": err.Error()})
		case err != nil:
			writeError(c, err)
		default:
			c.JSON(http.StatusOK, gin.H{
				"result":    res.String(),
				"operation": res.Op.String(),
				"column":    res.Column,
				"value":     res.FormatValue(),
				"count":     res.Count,
			})
		}
	})
}

type askRequest struct {
	Question   string `json:"question"`
	Suggestion int    `json:"suggestion"`
}

func (s *Server) AskHandler(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.Question) == "" && req.Suggestion > 0 {
		q, ok := prompt.Suggestion(req.Suggestion)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("suggestion must be between 1 and %d", len(prompt.Suggested()))})
			return
		}
		req.Question = q
	}
	s.withSession(c, func(sess *session.Session) {
		ans, err := sess.Ask(c.Request.Context(), req.Question)
		if err != nil {
			writeError(c, err)
			return
		}
		out := gin.H{"question": req.Question, "answer": ans.Text}
		if ans.RequestID != "" {
			out["request_id"] = ans.RequestID
		}
		if ans.Err != nil {
			out["error"] = string(ans.Err.Kind)
			if ans.Err.Hint != "" {
				out["hint"] = ans.Err.Hint
			}
		}
		c.JSON(http.StatusOK, out)
	})
}

func (s *Server) HistoryHandler(c *gin.Context) {
	s.withSession(c, func(sess *session.Session) {
		c.JSON(http.StatusOK, gin.H{"entries": sess.History(), "text": sess.Log().String()})
	})
}

func (s *Server) ClearHistoryHandler(c *gin.Context) {
	s.withSession(c, func(sess *session.Session) {
		sess.ClearHistory()
		c.Status(http.StatusNoContent)
	})
}

// withSession resolves :id and runs fn while holding the session's lock.
func (s *Server) withSession(c *gin.Context, fn func(*session.Session)) {
	e, ok := s.lookup(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.touch(s.now())
	fn(e.sess)
}

func writeError(c *gin.Context, err error) {
	var le *parser.LoadError
	switch {
	case errors.As(err, &le):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": session.Describe(err)})
	case errors.Is(err, session.ErrNoDataset):
		c.JSON(http.StatusConflict, gin.H{"error": session.Describe(err)})
	case errors.Is(err, session.ErrEmptyQuestion):
		c.JSON(http.StatusBadRequest, gin.H{"error": session.Describe(err)})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
