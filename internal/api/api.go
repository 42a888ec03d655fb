// Package api exposes the assistant's inbound operations over HTTP.
package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tessara/gemini-assistant/internal/assembler"
	"github.com/tessara/gemini-assistant/internal/orchestrator"
	"github.com/tessara/gemini-assistant/internal/store"
	"gorm.io/gorm"
)

// ElevatedRole grants cross-user read access to conversations and feedback.
const ElevatedRole = "System Manager"

// FileResolver maps an attachment URL from the host application's document
// storage to a local attachment reference.
type FileResolver func(url string) (assembler.Attachment, error)

// DirFileResolver resolves attachment URLs as paths under baseDir,
// rejecting traversal outside it.
func DirFileResolver(baseDir string) FileResolver {
	return func(url string) (assembler.Attachment, error) {
		rel := strings.TrimPrefix(url, "/files")
		rel = strings.TrimPrefix(rel, "/")
		path := filepath.Join(baseDir, rel)
		if !strings.HasPrefix(path, filepath.Clean(baseDir)+string(filepath.Separator)) {
			return assembler.Attachment{}, fmt.Errorf("attachment url %q escapes the file store", url)
		}
		return assembler.Attachment{Path: path, Name: filepath.Base(path)}, nil
	}
}

// Server holds the handler dependencies.
type Server struct {
	orch   *orchestrator.Orchestrator
	store  *store.Store
	files  FileResolver
	logger *slog.Logger
}

// NewServer creates the API server.
func NewServer(orch *orchestrator.Orchestrator, st *store.Store, files FileResolver, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{orch: orch, store: st, files: files, logger: logger}
}

// RegisterRoutes wires the assistant endpoints.
func (s *Server) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/messages", s.sendMessage)
	rg.POST("/documents/analyze", s.analyzeDocument)
	rg.GET("/conversations/:id/messages", s.fetchHistory)
	rg.DELETE("/conversations/:id", s.deleteConversation)
	rg.POST("/feedback", s.recordFeedback)
}

// RequestUser is the caller identity injected by the host application.
type RequestUser struct {
	ID    string
	Roles []string
}

func userFromContext(c *gin.Context) RequestUser {
	id := c.GetHeader("X-User-Id")
	if id == "" {
		id = "guest"
	}
	roles := c.Request.Header.Values("X-User-Role")
	return RequestUser{ID: id, Roles: roles}
}

func (u RequestUser) elevated() bool {
	for _, r := range u.Roles {
		if r == ElevatedRole {
			return true
		}
	}
	return false
}

type sendMessageRequest struct {
	Message        string           `json:"message" binding:"required"`
	ConversationID string           `json:"conversation_id"`
	Attachments    []attachmentBody `json:"attachments"`
	Context        map[string]any   `json:"context"`
}

type attachmentBody struct {
	URL string `json:"url" binding:"required"`
}

// sendMessage handles one chat turn. The orchestrator converts every
// internal failure into a structured {error, message} response, so this
// handler always answers 200 for accepted requests.
func (s *Server) sendMessage(c *gin.Context) {
	var body sendMessageRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": true, "message": err.Error()})
		return
	}
	user := userFromContext(c)

	attachments := make([]assembler.Attachment, 0, len(body.Attachments))
	for _, att := range body.Attachments {
		resolved, err := s.files(att.URL)
		if err != nil {
			// One bad attachment never fails the request.
			s.logger.Warn("skipping unresolvable attachment", "url", att.URL, "error", err)
			continue
		}
		attachments = append(attachments, resolved)
	}

	resp := s.orch.ProcessMessage(c.Request.Context(), orchestrator.Request{
		User:           user.ID,
		Roles:          user.Roles,
		Message:        body.Message,
		ConversationID: body.ConversationID,
		Attachments:    attachments,
		Context:        body.Context,
	})
	c.JSON(http.StatusOK, resp)
}

type analyzeDocumentRequest struct {
	FileRef string         `json:"file_ref" binding:"required"`
	Prompt  string         `json:"prompt" binding:"required"`
	Context map[string]any `json:"context"`
}

func (s *Server) analyzeDocument(c *gin.Context) {
	var body analyzeDocumentRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": true, "message": err.Error()})
		return
	}
	user := userFromContext(c)

	fileRef, err := s.files(body.FileRef)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": true, "message": "file reference could not be resolved"})
		return
	}

	resp := s.orch.AnalyzeDocument(c.Request.Context(), orchestrator.AnalyzeRequest{
		User:    user.ID,
		FileRef: fileRef,
		Prompt:  body.Prompt,
		Context: body.Context,
	})
	c.JSON(http.StatusOK, resp)
}

type historyMessage struct {
	ID           string         `json:"id"`
	Timestamp    string         `json:"timestamp"`
	Role         string         `json:"role"`
	Content      string         `json:"content"`
	ActionsTaken map[string]any `json:"actions_taken,omitempty"`
}

// fetchHistory returns a conversation's messages newest first. The caller
// must own the conversation or hold the elevated role.
func (s *Server) fetchHistory(c *gin.Context) {
	user := userFromContext(c)
	conversationID := c.Param("id")

	limit := 10
	if l := c.Query("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 {
			limit = v
		}
	}

	conv, err := s.store.GetConversation(c.Request.Context(), conversationID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": true, "message": "conversation not found"})
		return
	}
	if err != nil {
		s.logger.Error("loading conversation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": true, "message": "could not load conversation"})
		return
	}

	if conv.User != user.ID && !user.elevated() {
		c.JSON(http.StatusForbidden, gin.H{"error": true, "message": "you do not have permission to access this conversation"})
		return
	}

	messages, err := s.store.History(c.Request.Context(), conversationID, limit)
	if err != nil {
		s.logger.Error("loading history failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": true, "message": "could not load history"})
		return
	}

	out := make([]historyMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, historyMessage{
			ID:           m.ID,
			Timestamp:    m.Timestamp.Format("2006-01-02 15:04:05.000"),
			Role:         m.Role,
			Content:      m.Content,
			ActionsTaken: m.ActionsTaken,
		})
	}
	c.JSON(http.StatusOK, gin.H{"messages": out})
}

// deleteConversation removes a conversation and its messages (cascade).
func (s *Server) deleteConversation(c *gin.Context) {
	user := userFromContext(c)
	conversationID := c.Param("id")

	conv, err := s.store.GetConversation(c.Request.Context(), conversationID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": true, "message": "conversation not found"})
		return
	}
	if err != nil {
		s.logger.Error("loading conversation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": true, "message": "could not load conversation"})
		return
	}

	if conv.User != user.ID && !user.elevated() {
		c.JSON(http.StatusForbidden, gin.H{"error": true, "message": "you do not have permission to delete this conversation"})
		return
	}

	if err := s.store.DeleteConversation(c.Request.Context(), conversationID); err != nil {
		s.logger.Error("deleting conversation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": true, "message": "could not delete conversation"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type feedbackRequest struct {
	MessageID string `json:"message_id" binding:"required"`
	Feedback  string `json:"feedback" binding:"required"`
}

// recordFeedback stores a reaction to an assistant message. Requires
// ownership of the parent conversation or the elevated role.
func (s *Server) recordFeedback(c *gin.Context) {
	var body feedbackRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": true, "message": err.Error()})
		return
	}
	user := userFromContext(c)

	msg, err := s.store.GetMessage(c.Request.Context(), body.MessageID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": true, "message": "message not found"})
		return
	}
	if err != nil {
		s.logger.Error("loading message failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": true, "message": "could not load message"})
		return
	}

	conv, err := s.store.GetConversation(c.Request.Context(), msg.ConversationID)
	if err != nil {
		s.logger.Error("loading parent conversation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": true, "message": "could not verify conversation ownership"})
		return
	}
	if conv.User != user.ID && !user.elevated() {
		c.JSON(http.StatusForbidden, gin.H{"error": true, "message": "you do not have permission to provide feedback for this message"})
		return
	}

	if err := s.store.RecordFeedback(c.Request.Context(), body.MessageID, user.ID, body.Feedback); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": true, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Feedback recorded successfully"})
}
