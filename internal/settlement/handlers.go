package settlement

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ksred/tradeshield-api/internal/types"
	"github.com/ksred/tradeshield-api/pkg/response"
)

// GinHandlers exposes the host-invoked reply entry point
type GinHandlers struct {
	correlator *Correlator
}

func NewGinHandlers(correlator *Correlator) *GinHandlers {
	return &GinHandlers{correlator: correlator}
}

// ReplyHandler handles POST requests from the host runtime when a
// dispatched external call completes. The body carries the call outcome;
// the path carries the reply id issued at dispatch time.
func (h *GinHandlers) ReplyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		replyID, err := strconv.ParseUint(c.Param("reply_id"), 10, 64)
		if err != nil {
			response.BadRequest(c, "invalid reply id")
			return
		}

		var result types.ReplyResult
		if err := c.ShouldBindJSON(&result); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		if err := h.correlator.Resolve(replyID, result); err != nil {
			response.Handle(c, nil, err)
			return
		}
		response.Success(c, gin.H{"reply_id": replyID, "settled": true})
	}
}
