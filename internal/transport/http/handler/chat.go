package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"gopherai-chat/internal/app"
	"gopherai-chat/internal/conversation"
	"gopherai-chat/internal/transport/http/response"
)

type ChatHandler struct {
	chatService *app.ChatService
}

type ChatRequest struct {
	Message string             `json:"message" binding:"required"`
	Options ChatRequestOptions `json:"options"`
}

type ChatRequestOptions struct {
	ParentMessageID string         `json:"parentMessageId"`
	SystemMessage   *string        `json:"systemMessage"`
	Forget          bool           `json:"forget"`
	PrefixPrompt    string         `json:"prefixPrompt"`
	ProviderParams  map[string]any `json:"providerParams"`
	// OpenAIParams is accepted for older clients; ProviderParams wins on
	// conflicting keys.
	OpenAIParams map[string]any `json:"openaiParams"`
}

type ChatResponse struct {
	conversation.Output
	Version string `json:"version"`
}

func NewChatHandler(chatService *app.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

func (h *ChatHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	out, err := h.chatService.SendMessage(c.Request.Context(), req.Message, req.Options.sendOptions())
	if err != nil {
		_ = c.Error(err)
		switch {
		case errors.Is(err, app.ErrMessageEmpty):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "send message failed")
		}
		return
	}

	c.JSON(http.StatusOK, ChatResponse{Output: *out, Version: response.Version})
}

// WidgetChat serves the chat-widget protocol: the reply text only, and a
// generic apology on any failure.
func (h *ChatHandler) WidgetChat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		response.Text(c, http.StatusInternalServerError, "Something went wrong")
		return
	}

	out, err := h.chatService.SendMessage(c.Request.Context(), req.Message, req.Options.sendOptions())
	if err != nil {
		_ = c.Error(err)
		response.Text(c, http.StatusInternalServerError, "Something went wrong")
		return
	}

	response.Text(c, http.StatusOK, out.Reply)
}

func (h *ChatHandler) GetMessage(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid message id")
		return
	}

	msg, err := h.chatService.GetMessage(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrMessageUnknown):
			response.Error(c, http.StatusNotFound, response.CodeMessageNotFound, err.Error())
		default:
			_ = c.Error(err)
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "get message failed")
		}
		return
	}

	response.OK(c, msg)
}

func (o ChatRequestOptions) sendOptions() conversation.SendOptions {
	var params map[string]any
	if len(o.OpenAIParams) > 0 || len(o.ProviderParams) > 0 {
		params = make(map[string]any, len(o.OpenAIParams)+len(o.ProviderParams))
		for k, v := range o.OpenAIParams {
			params[k] = v
		}
		for k, v := range o.ProviderParams {
			params[k] = v
		}
	}
	return conversation.SendOptions{
		ParentID:       strings.TrimSpace(o.ParentMessageID),
		SystemMessage:  o.SystemMessage,
		Forget:         o.Forget,
		PrefixPrompt:   o.PrefixPrompt,
		ProviderParams: params,
	}
}
