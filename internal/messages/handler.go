package messages

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/mdmrafi/vartalap/internal/auth"
	"github.com/mdmrafi/vartalap/internal/chat"
	"github.com/mdmrafi/vartalap/internal/delivery"
	"github.com/mdmrafi/vartalap/internal/httpx"
	"github.com/mdmrafi/vartalap/internal/model"
)

type Service struct {
	Hub      *chat.Hub
	Delivery *delivery.Service
	PageSize int
}

type sendReq struct {
	ToUserID    string `json:"to_user_id" binding:"required"`
	Text        string `json:"text"`
	MediaURL    string `json:"media_url"`
	MessageType string `json:"message_type"`
}

type editReq struct {
	Text string `json:"text" binding:"required"`
}

func Register(rg *gin.RouterGroup, hub *chat.Hub, svc *delivery.Service, pageSize int) {
	s := Service{
		Hub:      hub,
		Delivery: svc,
		PageSize: pageSize,
	}
	rg.POST("/messages", s.send)
	rg.GET("/messages/conversations", s.listConversations)
	rg.GET("/messages/unread-count", s.unreadCount)
	rg.GET("/messages/conversation/:userId", s.conversation)
	rg.PUT("/messages/conversation/:userId/read", s.markConversationRead)
	rg.DELETE("/messages/conversation/:userId", s.deleteConversation)
	rg.PUT("/messages/:messageId/read", s.markRead)
	rg.PUT("/messages/:messageId", s.edit)
	rg.DELETE("/messages/:messageId", s.deleteMessage)
}

func (s Service) send(c *gin.Context) {
	uid := auth.MustUserID(c)
	var req sendReq
	if err := c.ShouldBindJSON(&req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			httpx.Err(c, http.StatusBadRequest, httpx.ValidationErr(validationErrors))
			return
		}
		httpx.Err(c, http.StatusBadRequest, err.Error())
		return
	}

	msg, err := s.Hub.SendMessage(c.Request.Context(), uid, req.ToUserID, req.Text, req.MediaURL, model.MessageKind(req.MessageType))
	if err != nil {
		httpx.Err(c, errStatus(err), err.Error())
		return
	}
	httpx.Created(c, gin.H{"message": "Message sent", "data": msg})
}

func (s Service) conversation(c *gin.Context) {
	uid := auth.MustUserID(c)
	partner := c.Param("userId")

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(s.PageSize)))

	msgs, hasMore, err := s.Delivery.GetConversation(c.Request.Context(), uid, partner, page, limit)
	if err != nil {
		httpx.Err(c, errStatus(err), err.Error())
		return
	}
	httpx.OK(c, gin.H{"messages": msgs, "page": page, "hasMore": hasMore})
}

func (s Service) listConversations(c *gin.Context) {
	uid := auth.MustUserID(c)

	convs, err := s.Delivery.ListConversations(c.Request.Context(), uid)
	if err != nil {
		httpx.Err(c, errStatus(err), err.Error())
		return
	}
	httpx.OK(c, gin.H{"conversations": convs})
}

func (s Service) markRead(c *gin.Context) {
	uid := auth.MustUserID(c)

	msg, err := s.Hub.MarkRead(c.Request.Context(), c.Param("messageId"), uid)
	if err != nil {
		httpx.Err(c, errStatus(err), err.Error())
		return
	}
	httpx.OK(c, gin.H{"data": msg})
}

func (s Service) markConversationRead(c *gin.Context) {
	uid := auth.MustUserID(c)

	count, err := s.Hub.MarkConversationRead(c.Request.Context(), c.Param("userId"), uid)
	if err != nil {
		httpx.Err(c, errStatus(err), err.Error())
		return
	}
	httpx.OK(c, gin.H{"message": "Conversation marked as read", "count": count})
}

func (s Service) edit(c *gin.Context) {
	uid := auth.MustUserID(c)
	var req editReq
	if err := c.ShouldBindJSON(&req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			httpx.Err(c, http.StatusBadRequest, httpx.ValidationErr(validationErrors))
			return
		}
		httpx.Err(c, http.StatusBadRequest, err.Error())
		return
	}

	msg, err := s.Hub.EditMessage(c.Request.Context(), c.Param("messageId"), uid, req.Text)
	if err != nil {
		httpx.Err(c, errStatus(err), err.Error())
		return
	}
	httpx.OK(c, gin.H{"data": msg})
}

func (s Service) deleteMessage(c *gin.Context) {
	uid := auth.MustUserID(c)

	if _, err := s.Hub.DeleteMessage(c.Request.Context(), c.Param("messageId"), uid); err != nil {
		httpx.Err(c, errStatus(err), err.Error())
		return
	}
	httpx.OK(c, gin.H{"message": "Message deleted"})
}

func (s Service) deleteConversation(c *gin.Context) {
	uid := auth.MustUserID(c)

	count, err := s.Hub.DeleteConversation(c.Request.Context(), c.Param("userId"), uid)
	if err != nil {
		httpx.Err(c, errStatus(err), err.Error())
		return
	}
	httpx.OK(c, gin.H{"message": "Conversation deleted", "count": count})
}

func (s Service) unreadCount(c *gin.Context) {
	uid := auth.MustUserID(c)

	count, err := s.Delivery.UnreadCount(c.Request.Context(), uid)
	if err != nil {
		httpx.Err(c, errStatus(err), err.Error())
		return
	}
	httpx.OK(c, gin.H{"count": count})
}

// errStatus maps the delivery taxonomy onto HTTP statuses; anything
// unclassified is a storage failure.
func errStatus(err error) int {
	switch {
	case errors.Is(err, delivery.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, delivery.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, delivery.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
