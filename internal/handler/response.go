package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/pkg/httputil"
)

func RespondWithResult(c *gin.Context, res model.Result, data interface{}) {
	httputil.RespondWithResult(c, string(res.Level), res.Message, data)
}

// RespondWithResults renders what a dispatched action returned. No results
// means the action was queued for the worker.
func RespondWithResults(c *gin.Context, results []model.Result) {
	switch len(results) {
	case 0:
		httputil.RespondWithResult(c, string(model.LevelInfo), "Queued.", nil)
	case 1:
		RespondWithResult(c, results[0], nil)
	default:
		httputil.RespondWithSuccess(c, http.StatusOK, results)
	}
}

// RespondWithList renders a page of results.
func RespondWithList(c *gin.Context, items interface{}, count int, q model.ListQuery) {
	page := q.Pagination.Page
	if page < 1 {
		page = 1
	}
	httputil.RespondWithPagination(c, items, page, q.Pagination.Limit(), count)
}
