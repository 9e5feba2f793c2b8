package main

import "github.com/gin-gonic/gin"

func SetupRoutes(r *gin.Engine, a *API) {

	// Public Routes
	r.POST("/api/login", a.Login)
	r.POST("/api/refresh", a.Refresh)
	r.POST("/api/users/register", a.Register)

	// Protected Routes
	authorized := r.Group("/api")
	authorized.Use(AuthMiddleware(a.idp, a.users))
	{
		// USERS
		authorized.GET("/users/:id", a.GetUser)
		authorized.PUT("/users/:id", a.UpdateUser)
		authorized.GET("/users/:id/tasks", a.GetTasksForUser)
		authorized.GET("/users/:id/groups", a.GetGroupsForUser)
		authorized.GET("/users/:id/groups/admin", a.GetAdminGroupsForUser)

		// TASKS
		authorized.POST("/tasks", a.CreateTask)
		authorized.GET("/tasks", a.GetTasks)
		authorized.GET("/tasks/all", a.GetAllTasks)
		authorized.PUT("/tasks/:id", a.UpdateTask)

		// GROUPS
		authorized.POST("/groups", a.CreateGroup)
		authorized.GET("/groups", a.GetAllGroups)
		authorized.GET("/groups/:id/members", a.GetGroupMembers)
		authorized.POST("/groups/join", a.JoinGroup)
		authorized.POST("/groups/leave", a.LeaveGroup)
		authorized.POST("/groups/promote", a.PromoteToAdmin)
		authorized.POST("/groups/kick", a.KickUser)
	}
}
