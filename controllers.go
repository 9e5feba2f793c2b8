package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// API bundles the services the handlers need. Everything is injected; there
// are no package-level singletons.
type API struct {
	users  *UserService
	groups *GroupService
	tasks  *TaskService
	idp    IdentityProvider
	log    *zap.Logger
}

func NewAPI(users *UserService, groups *GroupService, tasks *TaskService, idp IdentityProvider, log *zap.Logger) *API {
	return &API{users: users, groups: groups, tasks: tasks, idp: idp, log: log}
}

// -----------------------------
// Helper functions
// -----------------------------

func jsonError(c *gin.Context, code int, msg string) {
	c.JSON(code, gin.H{"error": msg})
}

// respondError maps the service error kinds onto HTTP status codes. None of
// them leak internal state to the caller.
func respondError(c *gin.Context, err error) {
	var validation *ValidationError
	var notFound *NotFoundError
	var permission *PermissionError

	switch {
	case errors.As(err, &notFound):
		jsonError(c, http.StatusNotFound, notFound.Message)
	case errors.As(err, &permission):
		jsonError(c, http.StatusForbidden, permission.Message)
	case errors.As(err, &validation):
		jsonError(c, http.StatusBadRequest, validation.Message)
	default:
		jsonError(c, http.StatusInternalServerError, "internal server error")
	}
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id64, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		jsonError(c, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return uint(id64), true
}

// taskResponse is the wire shape for a task, owning group embedded by id
// and name.
func taskResponse(t Task) gin.H {
	var group gin.H
	if t.Group != nil {
		group = gin.H{"id": t.Group.ID, "name": t.Group.Name}
	}
	return gin.H{
		"id":       t.ID,
		"title":    t.Title,
		"deadline": t.Deadline.Format(dateLayout),
		"kind":     t.Kind,
		"priority": t.Priority,
		"status":   t.Status,
		"progress": t.Progress,
		"group":    group,
		"assignee": t.Assignee,
		"notes":    t.Notes,
	}
}

func taskListResponse(tasks []Task) []gin.H {
	out := make([]gin.H, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, taskResponse(t))
	}
	return out
}

func (a *API) groupResponse(c *gin.Context, g Group) (gin.H, error) {
	members, err := a.groups.memberIDs(c.Request.Context(), g.ID)
	if err != nil {
		return nil, err
	}
	return gin.H{
		"id":          g.ID,
		"name":        g.Name,
		"description": g.Description,
		"groupNumber": g.GroupNumber,
		"inviteLink":  g.InviteLink,
		"members":     members,
		"memberCount": len(members),
	}, nil
}

func (a *API) groupListResponse(c *gin.Context, groups []Group) ([]gin.H, error) {
	out := make([]gin.H, 0, len(groups))
	for _, g := range groups {
		payload, err := a.groupResponse(c, g)
		if err != nil {
			return nil, err
		}
		out = append(out, payload)
	}
	return out, nil
}

// -----------------------------
// Users
// -----------------------------

func (a *API) GetUser(c *gin.Context) {
	user, err := a.users.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (a *API) UpdateUser(c *gin.Context) {
	caller, ok := currentUser(c)
	if !ok {
		jsonError(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	if caller.ID != c.Param("id") {
		jsonError(c, http.StatusForbidden, "you can only update your own profile")
		return
	}

	var in UserUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}

	user, err := a.users.UpdateUser(c.Request.Context(), caller.ID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// -----------------------------
// Tasks
// -----------------------------

func (a *API) CreateTask(c *gin.Context) {
	caller, ok := currentUser(c)
	if !ok {
		jsonError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var in TaskInput
	if err := c.ShouldBindJSON(&in); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	// The creator is always the authenticated caller.
	in.UserID = &caller.ID

	task, err := a.tasks.CreateTask(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Task created", "task": taskResponse(*task)})
}

func (a *API) GetTasks(c *gin.Context) {
	caller, ok := currentUser(c)
	if !ok {
		jsonError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	tasks, err := a.tasks.TasksForUser(c.Request.Context(), caller.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, taskListResponse(tasks))
}

func (a *API) GetTasksForUser(c *gin.Context) {
	tasks, err := a.tasks.TasksForUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, taskListResponse(tasks))
}

func (a *API) GetAllTasks(c *gin.Context) {
	tasks, err := a.tasks.AllTasks(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, taskListResponse(tasks))
}

func (a *API) UpdateTask(c *gin.Context) {
	caller, ok := currentUser(c)
	if !ok {
		jsonError(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	taskID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var in TaskUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}

	task, err := a.tasks.UpdateTask(c.Request.Context(), taskID, in, caller.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Task updated", "task": taskResponse(*task)})
}

// -----------------------------
// Groups
// -----------------------------

func (a *API) CreateGroup(c *gin.Context) {
	caller, ok := currentUser(c)
	if !ok {
		jsonError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var in GroupInput
	if err := c.ShouldBindJSON(&in); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}

	group, err := a.groups.CreateGroup(c.Request.Context(), in, caller.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	payload, err := a.groupResponse(c, *group)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Group created", "group": payload})
}

func (a *API) GetAllGroups(c *gin.Context) {
	groups, err := a.groups.AllGroups(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	payload, err := a.groupListResponse(c, groups)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payload)
}

type groupActionRequest struct {
	GroupID uint `json:"group_id" binding:"required"`
}

func (a *API) JoinGroup(c *gin.Context) {
	caller, ok := currentUser(c)
	if !ok {
		jsonError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req groupActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		jsonError(c, http.StatusBadRequest, "missing group_id")
		return
	}

	group, err := a.groups.JoinGroup(c.Request.Context(), caller.ID, req.GroupID)
	if err != nil {
		respondError(c, err)
		return
	}

	payload, err := a.groupResponse(c, *group)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "User " + caller.ID + " joined group " + group.Name,
		"group":   payload,
	})
}

func (a *API) LeaveGroup(c *gin.Context) {
	caller, ok := currentUser(c)
	if !ok {
		jsonError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req groupActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		jsonError(c, http.StatusBadRequest, "missing group_id")
		return
	}

	if err := a.groups.LeaveGroup(c.Request.Context(), caller.ID, req.GroupID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "left group"})
}

type memberActionRequest struct {
	GroupID uint   `json:"group_id" binding:"required"`
	UserID  string `json:"user_id" binding:"required"`
}

func (a *API) PromoteToAdmin(c *gin.Context) {
	caller, ok := currentUser(c)
	if !ok {
		jsonError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req memberActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		jsonError(c, http.StatusBadRequest, "missing group_id or user_id")
		return
	}

	membership, err := a.groups.PromoteToAdmin(c.Request.Context(), caller.ID, req.UserID, req.GroupID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user promoted", "membership": membership})
}

func (a *API) KickUser(c *gin.Context) {
	caller, ok := currentUser(c)
	if !ok {
		jsonError(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req memberActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		jsonError(c, http.StatusBadRequest, "missing group_id or user_id")
		return
	}

	if err := a.groups.KickUser(c.Request.Context(), caller.ID, req.UserID, req.GroupID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user removed from group"})
}

func (a *API) GetGroupsForUser(c *gin.Context) {
	groups, err := a.groups.GroupsForUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	payload, err := a.groupListResponse(c, groups)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payload)
}

func (a *API) GetAdminGroupsForUser(c *gin.Context) {
	groups, err := a.groups.AdminGroupsForUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	payload, err := a.groupListResponse(c, groups)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payload)
}

func (a *API) GetGroupMembers(c *gin.Context) {
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	members, err := a.groups.GroupMembers(c.Request.Context(), groupID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, members)
}
