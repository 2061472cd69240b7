package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/roomturn/database"
	"github.com/yeremiapane/roomturn/models"
	"github.com/yeremiapane/roomturn/utils"
)

// TaskController exposes read-only task and report listings to the hotel application.
type TaskController struct {
	Store *database.Store
}

func NewTaskController(store *database.Store) *TaskController {
	return &TaskController{Store: store}
}

// GetTasks ?status=&room_id=&limit=
func (tc *TaskController) GetTasks(c *gin.Context) {
	tasks, err := tc.Store.ListTasks(c.Request.Context(), database.TaskFilter{
		Status: models.TaskStatus(c.Query("status")),
		RoomID: queryUint(c, "room_id"),
		Limit:  int(queryUint(c, "limit")),
	})
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Cleaning tasks", tasks)
}

// GetReports ?status=&room_id=&limit=
func (tc *TaskController) GetReports(c *gin.Context) {
	reports, err := tc.Store.ListReports(c.Request.Context(), database.ReportFilter{
		Status: models.ReportStatus(c.Query("status")),
		RoomID: queryUint(c, "room_id"),
		Limit:  int(queryUint(c, "limit")),
	})
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Maintenance reports", reports)
}

func queryUint(c *gin.Context, key string) uint {
	n, _ := strconv.ParseUint(c.Query(key), 10, 64)
	return uint(n)
}
