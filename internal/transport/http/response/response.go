package response

import "github.com/gin-gonic/gin"

const (
	CodeOK              = 0
	CodeBadRequest      = 40000
	CodeMessageNotFound = 40401
	CodeInternalServer  = 50000
)

// Version tags every chat response body.
const Version = "v1"

type APIResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(200, APIResponse{
		Code:    CodeOK,
		Message: "ok",
		Data:    data,
	})
}

func Error(c *gin.Context, httpStatus, code int, message string) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
	})
}

// TextMessage is one entry of the chat-widget envelope.
type TextMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type WidgetContent struct {
	Messages []TextMessage `json:"messages"`
}

type WidgetResponse struct {
	Version string        `json:"version"`
	Content WidgetContent `json:"content"`
}

// Text writes text in the chat-widget envelope.
func Text(c *gin.Context, httpStatus int, text string) {
	c.JSON(httpStatus, WidgetResponse{
		Version: Version,
		Content: WidgetContent{
			Messages: []TextMessage{{Type: "text", Text: text}},
		},
	})
}
