// Package api exposes the document store over HTTP using gin.
package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/inkwell-dev/pdfedit/apierr"
	"github.com/inkwell-dev/pdfedit/ir/model"
	"github.com/inkwell-dev/pdfedit/observability"
	"github.com/inkwell-dev/pdfedit/store"
)

// Server wires a Store to gin routes.
type Server struct {
	store  *store.Store
	logger observability.Logger
}

// NewServer builds a Server over st, logging through logger.
func NewServer(st *store.Store, logger observability.Logger) *Server {
	if logger == nil {
		logger = observability.NopLogger{}
	}
	return &Server{store: st, logger: logger}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.logMiddleware())

	r.GET("/healthz", s.handleHealthz)
	api := r.Group("/api")
	{
		api.POST("/open", s.handleOpen)
		api.GET("/ir/:docId", s.handleGetIR)
		api.POST("/patch/:docId", s.handlePatch)
		api.GET("/pdf/:docId", s.handleGetPDF)
	}
	return r
}

func (s *Server) logMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.logger.Info("request",
			observability.String("method", c.Request.Method),
			observability.String("path", c.FullPath()),
			observability.Int("status", c.Writer.Status()),
		)
	}
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleOpen(c *gin.Context) {
	var data []byte

	fileHeader, err := c.FormFile("file")
	if err != nil {
		if !errors.Is(err, http.ErrMissingFile) {
			writeError(c, apierr.New(apierr.BadRequest, "malformed multipart body"))
			return
		}
	} else {
		f, openErr := fileHeader.Open()
		if openErr != nil {
			writeError(c, apierr.Wrap(apierr.BadRequest, "failed to read uploaded file", openErr))
			return
		}
		defer f.Close()
		data, err = io.ReadAll(f)
		if err != nil {
			writeError(c, apierr.Wrap(apierr.BadRequest, "failed to read uploaded file", err))
			return
		}
	}

	docID, err := s.store.Open(c.Request.Context(), data)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"docId": docID})
}

func (s *Server) handleGetIR(c *gin.Context) {
	ir, err := s.store.GetIR(c.Param("docId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ir)
}

func (s *Server) handlePatch(c *gin.Context) {
	var ops []model.PatchOp
	if err := c.ShouldBindJSON(&ops); err != nil {
		writeError(c, apierr.Wrap(apierr.BadRequest, "malformed patch body", err))
		return
	}

	resp, err := s.store.ApplyPatch(c.Request.Context(), c.Param("docId"), ops)
	if err != nil {
		writeError(c, err)
		return
	}
	if !resp.OK {
		c.JSON(http.StatusUnprocessableEntity, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleGetPDF(c *gin.Context) {
	data, err := s.store.GetPDF(c.Param("docId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/pdf", data)
}

func writeError(c *gin.Context, err error) {
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) {
		apiErr = apierr.Wrap(apierr.Internal, "internal error", err)
	}
	c.JSON(apierr.StatusFor(apiErr.Kind), gin.H{"ok": false, "message": apiErr.Message})
}
