/*
 * @module api/routes
 * @description API路由配置模块，负责初始化和配置所有HTTP路由
 * @architecture RESTful API架构
 * @documentReference dev_docs/backend_requirements.md
 * @stateFlow 无状态HTTP请求处理
 * @rules 遵循RESTful API设计规范，统一错误处理和响应格式
 * @dependencies github.com/go-chi/chi/v5, github.com/go-chi/cors, github.com/go-chi/render
 * @refs dev_docs/model.md
 */

package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"

	"dataquality-service/api/controllers"
)

// InitRoute 初始化所有API路由
func InitRoute(r *chi.Mux) {
	// 基础中间件
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(render.SetContentType(render.ContentTypeJSON))

	// CORS配置
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// 健康检查
	healthController := controllers.NewHealthController()
	r.Get("/health", healthController.Health)
	r.Get("/ready", healthController.Ready)

	// 数据质量管理
	r.Route("/quality", func(r chi.Router) {
		qualityController := controllers.NewQualityController()

		// 质量规则管理
		r.Route("/rules", func(r chi.Router) {
			r.Post("/", qualityController.CreateRule)
			r.Get("/", qualityController.GetRules)
			r.Get("/{id}", qualityController.GetRuleByID)
			r.Post("/{id}/active", qualityController.SetRuleActive)
		})

		// 质量审计
		r.Route("/audits", func(r chi.Router) {
			r.Post("/", qualityController.RunAudit)
			r.Get("/{id}", qualityController.GetAuditRun)
			r.Get("/{id}/results", qualityController.GetAuditResults)
		})

		// 质量评分趋势
		r.Get("/scores", qualityController.GetTableScores)

		// 异常处置
		r.Route("/exceptions", func(r chi.Router) {
			r.Get("/", qualityController.GetExceptions)
			r.Post("/{id}/resolve", qualityController.ResolveException)
			r.Post("/{id}/reopen", qualityController.ReopenException)
		})

		// 审计调度
		r.Route("/schedules", func(r chi.Router) {
			r.Post("/", qualityController.CreateSchedule)
			r.Get("/", qualityController.GetSchedules)
		})
	})
}
