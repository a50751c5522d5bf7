package trigger

import (
	"github.com/gin-gonic/gin"

	"github.com/ksred/tradeshield-api/pkg/response"
)

// GinHandlers exposes the host-invoked block tick
type GinHandlers struct {
	processor *Processor
}

func NewGinHandlers(processor *Processor) *GinHandlers {
	return &GinHandlers{processor: processor}
}

// TickHandler handles POST requests from the host scheduler to run one
// block tick immediately
func (h *GinHandlers) TickHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := h.processor.Tick()
		response.Handle(c, summary, err)
	}
}
