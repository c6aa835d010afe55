package response

import (
	"time"

	"github.com/gin-gonic/gin"
)

// APIResponse is the envelope every console JSON endpoint answers with.
type APIResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Data      any       `json:"data,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

func SendAPIResponse(c *gin.Context, code int, success bool, message string, data any) {
	resp := APIResponse{
		Success:   success,
		Message:   message,
		Data:      data,
		CreatedAt: time.Now(),
	}

	c.JSON(code, resp)
}

// SendError answers with a failed envelope carrying err's text and, when
// given, the state the caller should redraw from.
func SendError(c *gin.Context, code int, err error, data any) {
	SendAPIResponse(c, code, false, err.Error(), data)
}
