package handler

import "github.com/gin-gonic/gin"

// Handlers groups the HTTP handlers mounted by RegisterRoutes.
type Handlers struct {
	Enrollment *EnrollmentHandler
	Catalog    *CatalogHandler
	Metrics    *MetricsHandler
}

// RegisterRoutes mounts the probes at the root and the API under prefix. Every
// API route passes through auth.
func RegisterRoutes(r *gin.Engine, prefix string, auth gin.HandlerFunc, h Handlers) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	api := r.Group(prefix, auth)
	api.GET("/courses", h.Enrollment.Courses)
	api.GET("/sections/:course/:index/vacancy", h.Enrollment.Vacancy)

	me := api.Group("/me")
	me.GET("", h.Enrollment.Me)
	me.GET("/timetable", h.Enrollment.Timetable)
	me.GET("/notifications", h.Enrollment.Notifications)
	me.POST("/enrollments", h.Enrollment.Enroll)
	me.DELETE("/enrollments/:course/:index", h.Enrollment.Drop)
	me.PUT("/enrollments/:course/:index/index", h.Enrollment.ChangeIndex)
	me.POST("/swaps", h.Enrollment.Swap)
	me.POST("/waitlist", h.Enrollment.JoinWaitlist)
	me.DELETE("/waitlist/:course/:index", h.Enrollment.LeaveWaitlist)

	admin := api.Group("/admin")
	admin.GET("/students", h.Catalog.ListStudents)
	admin.POST("/students", h.Catalog.CreateStudent)
	admin.POST("/courses", h.Catalog.CreateCourse)
	admin.POST("/courses/:course/sections", h.Catalog.AddSection)
	admin.PUT("/courses/:course/code", h.Catalog.RenameCourse)
	admin.PUT("/courses/:course/school", h.Catalog.UpdateSchool)
	admin.PUT("/courses/:course/au", h.Catalog.UpdateAU)
	admin.GET("/sections/:course/:index", h.Catalog.Section)
	admin.PUT("/sections/:course/:index/index", h.Catalog.RenameIndex)
	admin.PUT("/sections/:course/:index/vacancy", h.Catalog.SetVacancy)
	admin.POST("/sections/:course/:index/lessons", h.Catalog.AttachLessons)
	admin.GET("/sections/:course/:index/roster", h.Catalog.Roster)
	admin.POST("/lessons", h.Catalog.CreateLesson)
	admin.PUT("/lessons/:id/time", h.Catalog.RetimeLesson)
}
