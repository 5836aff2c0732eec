/*
 * @module api/controllers/quality_controller
 * @description 数据质量控制器，提供质量规则管理、审计发起、结果查询、评分趋势和异常处置等API接口
 * @architecture 分层架构 - 控制器层
 * @documentReference ai_docs/quality_engine_req.md
 * @stateFlow HTTP请求处理流程
 * @rules 统一的错误处理和响应格式，配置错误返回400，未找到返回404
 * @dependencies dataquality-service/service, github.com/go-chi/chi/v5
 * @refs ai_docs/model.md
 */

package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"gorm.io/gorm"

	"dataquality-service/service"
	"dataquality-service/service/audit"
	"dataquality-service/service/models"
)

// QualityController 数据质量控制器
type QualityController struct {
	registry   *audit.RuleRegistry
	audits     *audit.AuditService
	exceptions *audit.ExceptionService
	scheduler  *audit.AuditScheduler
}

// NewQualityController 创建数据质量控制器实例
func NewQualityController() *QualityController {
	return &QualityController{
		registry:   service.GlobalRuleRegistry,
		audits:     service.GlobalAuditService,
		exceptions: service.GlobalExceptionService,
		scheduler:  service.GlobalAuditScheduler,
	}
}

// === 质量规则管理 ===

// CreateRule 创建质量规则
// @Summary 创建质量规则
// @Description 校验并创建新的质量规则，配置错误立即拒绝
// @Tags 质量规则
// @Accept json
// @Produce json
// @Param rule body audit.RuleDraft true "质量规则信息"
// @Success 201 {object} APIResponse{data=models.QualityRule} "创建成功"
// @Failure 400 {object} APIResponse "规则配置错误"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /quality/rules [post]
func (c *QualityController) CreateRule(w http.ResponseWriter, r *http.Request) {
	var draft audit.RuleDraft
	if err := render.DecodeJSON(r.Body, &draft); err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "请求参数格式错误",
		})
		return
	}

	ruleID, err := c.registry.Add(&draft)
	if err != nil {
		var invalidErr *audit.InvalidRuleError
		if errors.As(err, &invalidErr) {
			render.JSON(w, r, APIResponse{
				Status: http.StatusBadRequest,
				Msg:    invalidErr.Error(),
			})
			return
		}
		render.JSON(w, r, APIResponse{
			Status: http.StatusInternalServerError,
			Msg:    "创建质量规则失败",
		})
		return
	}

	rule, err := c.registry.GetByID(ruleID)
	if err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusInternalServerError,
			Msg:    "创建质量规则失败",
		})
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusCreated,
		Msg:    "创建质量规则成功",
		Data:   rule,
	})
}

// GetRules 获取质量规则列表
// @Summary 获取质量规则列表
// @Description 分页获取质量规则列表，可按schema和表过滤
// @Tags 质量规则
// @Accept json
// @Produce json
// @Param page query int false "页码" default(1)
// @Param size query int false "每页数量" default(10)
// @Param schema query string false "目标schema"
// @Param table query string false "目标表"
// @Success 200 {object} PaginatedResponse{data=[]models.QualityRule} "获取成功"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /quality/rules [get]
func (c *QualityController) GetRules(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page <= 0 {
		page = 1
	}
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	if size <= 0 {
		size = 10
	}

	schema := r.URL.Query().Get("schema")
	table := r.URL.Query().Get("table")

	rules, total, err := c.registry.List(schema, table, page, size)
	if err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusInternalServerError,
			Msg:    "获取质量规则列表失败",
		})
		return
	}

	render.JSON(w, r, PaginatedResponse{
		Status: http.StatusOK,
		Msg:    "获取质量规则列表成功",
		Data:   rules,
		Total:  total,
		Page:   page,
		Size:   size,
	})
}

// GetRuleByID 根据ID获取质量规则
// @Summary 根据ID获取质量规则
// @Description 根据ID获取质量规则详情
// @Tags 质量规则
// @Accept json
// @Produce json
// @Param id path string true "规则ID"
// @Success 200 {object} APIResponse{data=models.QualityRule} "获取成功"
// @Failure 404 {object} APIResponse "规则不存在"
// @Router /quality/rules/{id} [get]
func (c *QualityController) GetRuleByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rule, err := c.registry.GetByID(id)
	if err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusNotFound,
			Msg:    "质量规则不存在",
		})
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "获取质量规则成功",
		Data:   rule,
	})
}

// SetRuleActive 切换规则激活状态
// @Summary 切换规则激活状态
// @Description 启用或停用质量规则，停用的规则保留用于历史追溯
// @Tags 质量规则
// @Accept json
// @Produce json
// @Param id path string true "规则ID"
// @Param body body object{is_active=bool} true "激活状态"
// @Success 200 {object} APIResponse "更新成功"
// @Failure 404 {object} APIResponse "规则不存在"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /quality/rules/{id}/active [post]
func (c *QualityController) SetRuleActive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		IsActive bool `json:"is_active"`
	}
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "请求参数格式错误",
		})
		return
	}

	if err := c.registry.SetActive(id, req.IsActive); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			render.JSON(w, r, APIResponse{
				Status: http.StatusNotFound,
				Msg:    "质量规则不存在",
			})
			return
		}
		render.JSON(w, r, APIResponse{
			Status: http.StatusInternalServerError,
			Msg:    "更新规则状态失败",
		})
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "更新规则状态成功",
	})
}

// === 审计管理 ===

// RunAudit 发起质量审计
// @Summary 发起质量审计
// @Description 对指定范围发起一次质量审计，同步返回汇总结果
// @Tags 质量审计
// @Accept json
// @Produce json
// @Param scope body audit.Scope true "审计范围"
// @Success 200 {object} APIResponse{data=audit.RunSummary} "审计完成"
// @Failure 400 {object} APIResponse "请求参数错误"
// @Failure 500 {object} APIResponse "审计执行失败"
// @Router /quality/audits [post]
func (c *QualityController) RunAudit(w http.ResponseWriter, r *http.Request) {
	var scope audit.Scope
	if err := render.DecodeJSON(r.Body, &scope); err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "请求参数格式错误",
		})
		return
	}
	if scope.Schema == "" {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "schema不能为空",
		})
		return
	}

	summary, err := c.audits.RunAudit(r.Context(), scope)
	if err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusInternalServerError,
			Msg:    "审计执行失败: " + err.Error(),
		})
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "审计完成",
		Data:   summary,
	})
}

// GetAuditRun 查询审计运行记录
// @Summary 查询审计运行记录
// @Description 根据运行ID查询审计运行的状态与计数
// @Tags 质量审计
// @Produce json
// @Param id path string true "运行ID"
// @Success 200 {object} APIResponse{data=models.AuditRun} "获取成功"
// @Failure 404 {object} APIResponse "运行记录不存在"
// @Router /quality/audits/{id} [get]
func (c *QualityController) GetAuditRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := c.audits.GetRun(id)
	if err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusNotFound,
			Msg:    "审计运行记录不存在",
		})
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "获取审计运行记录成功",
		Data:   run,
	})
}

// GetAuditResults 查询审计检查结果
// @Summary 查询审计检查结果
// @Description 查询一次运行产生的全部检查结果
// @Tags 质量审计
// @Produce json
// @Param id path string true "运行ID"
// @Success 200 {object} APIResponse{data=[]models.CheckResult} "获取成功"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /quality/audits/{id}/results [get]
func (c *QualityController) GetAuditResults(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	results, err := c.audits.GetRunResults(id)
	if err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusInternalServerError,
			Msg:    "获取检查结果失败",
		})
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "获取检查结果成功",
		Data:   results,
	})
}

// GetTableScores 查询表质量评分
// @Summary 查询表质量评分
// @Description 按schema/表/日期范围查询表质量评分趋势
// @Tags 质量评分
// @Produce json
// @Param schema query string false "目标schema"
// @Param table query string false "目标表"
// @Param from query string false "起始日期(YYYY-MM-DD)"
// @Param to query string false "截止日期(YYYY-MM-DD)"
// @Success 200 {object} APIResponse{data=[]models.TableScore} "获取成功"
// @Failure 400 {object} APIResponse "日期格式错误"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /quality/scores [get]
func (c *QualityController) GetTableScores(w http.ResponseWriter, r *http.Request) {
	schema := r.URL.Query().Get("schema")
	table := r.URL.Query().Get("table")

	var from, to *time.Time
	if fromStr := r.URL.Query().Get("from"); fromStr != "" {
		t, err := time.Parse("2006-01-02", fromStr)
		if err != nil {
			render.JSON(w, r, APIResponse{
				Status: http.StatusBadRequest,
				Msg:    "from日期格式错误，应为YYYY-MM-DD",
			})
			return
		}
		from = &t
	}
	if toStr := r.URL.Query().Get("to"); toStr != "" {
		t, err := time.Parse("2006-01-02", toStr)
		if err != nil {
			render.JSON(w, r, APIResponse{
				Status: http.StatusBadRequest,
				Msg:    "to日期格式错误，应为YYYY-MM-DD",
			})
			return
		}
		to = &t
	}

	scores, err := c.audits.GetTableScores(schema, table, from, to)
	if err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusInternalServerError,
			Msg:    "获取表质量评分失败",
		})
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "获取表质量评分成功",
		Data:   scores,
	})
}

// === 异常处置 ===

// GetExceptions 获取质量异常列表
// @Summary 获取质量异常列表
// @Description 分页查询异常记录，可按检查结果、规则和解决状态过滤
// @Tags 异常处置
// @Produce json
// @Param page query int false "页码" default(1)
// @Param size query int false "每页数量" default(50)
// @Param result_id query string false "检查结果ID"
// @Param rule_id query string false "规则ID"
// @Param is_resolved query bool false "解决状态"
// @Success 200 {object} PaginatedResponse{data=[]models.QualityException} "获取成功"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /quality/exceptions [get]
func (c *QualityController) GetExceptions(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))

	filter := audit.ExceptionFilter{
		ResultID: r.URL.Query().Get("result_id"),
		RuleID:   r.URL.Query().Get("rule_id"),
		Page:     page,
		Size:     size,
	}
	if resolvedStr := r.URL.Query().Get("is_resolved"); resolvedStr != "" {
		resolved := resolvedStr == "true"
		filter.IsResolved = &resolved
	}

	exceptions, total, err := c.exceptions.List(filter)
	if err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusInternalServerError,
			Msg:    "获取异常列表失败",
		})
		return
	}

	render.JSON(w, r, PaginatedResponse{
		Status: http.StatusOK,
		Msg:    "获取异常列表成功",
		Data:   exceptions,
		Total:  total,
		Page:   page,
		Size:   size,
	})
}

// ResolveException 解决质量异常
// @Summary 解决质量异常
// @Description 标记异常已处置，记录处置人和备注
// @Tags 异常处置
// @Accept json
// @Produce json
// @Param id path string true "异常ID"
// @Param body body object{resolved_by=string,notes=string} true "处置信息"
// @Success 200 {object} APIResponse{data=models.QualityException} "处置成功"
// @Failure 404 {object} APIResponse "异常不存在"
// @Router /quality/exceptions/{id}/resolve [post]
func (c *QualityController) ResolveException(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		ResolvedBy string `json:"resolved_by"`
		Notes      string `json:"notes"`
	}
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "请求参数格式错误",
		})
		return
	}

	exc, err := c.exceptions.Resolve(id, req.ResolvedBy, req.Notes)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			render.JSON(w, r, APIResponse{
				Status: http.StatusNotFound,
				Msg:    "质量异常不存在",
			})
			return
		}
		render.JSON(w, r, APIResponse{
			Status: http.StatusInternalServerError,
			Msg:    "处置质量异常失败",
		})
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "处置质量异常成功",
		Data:   exc,
	})
}

// ReopenException 重新打开质量异常
// @Summary 重新打开质量异常
// @Description 将已解决的异常恢复为未解决状态
// @Tags 异常处置
// @Produce json
// @Param id path string true "异常ID"
// @Success 200 {object} APIResponse{data=models.QualityException} "操作成功"
// @Failure 404 {object} APIResponse "异常不存在"
// @Router /quality/exceptions/{id}/reopen [post]
func (c *QualityController) ReopenException(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	exc, err := c.exceptions.Reopen(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			render.JSON(w, r, APIResponse{
				Status: http.StatusNotFound,
				Msg:    "质量异常不存在",
			})
			return
		}
		render.JSON(w, r, APIResponse{
			Status: http.StatusInternalServerError,
			Msg:    "重新打开质量异常失败",
		})
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "重新打开质量异常成功",
		Data:   exc,
	})
}

// === 审计调度 ===

// CreateSchedule 创建审计调度
// @Summary 创建审计调度
// @Description 创建cron或interval类型的定时审计调度
// @Tags 审计调度
// @Accept json
// @Produce json
// @Param schedule body models.AuditSchedule true "调度配置"
// @Success 201 {object} APIResponse{data=models.AuditSchedule} "创建成功"
// @Failure 400 {object} APIResponse "调度配置错误"
// @Router /quality/schedules [post]
func (c *QualityController) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var schedule models.AuditSchedule
	if err := render.DecodeJSON(r.Body, &schedule); err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "请求参数格式错误",
		})
		return
	}

	if err := c.scheduler.CreateSchedule(&schedule); err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusBadRequest,
			Msg:    "创建审计调度失败: " + err.Error(),
		})
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusCreated,
		Msg:    "创建审计调度成功",
		Data:   schedule,
	})
}

// GetSchedules 获取审计调度列表
// @Summary 获取审计调度列表
// @Description 查询全部审计调度配置
// @Tags 审计调度
// @Produce json
// @Success 200 {object} APIResponse{data=[]models.AuditSchedule} "获取成功"
// @Failure 500 {object} APIResponse "服务器内部错误"
// @Router /quality/schedules [get]
func (c *QualityController) GetSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := c.scheduler.ListSchedules()
	if err != nil {
		render.JSON(w, r, APIResponse{
			Status: http.StatusInternalServerError,
			Msg:    "获取审计调度列表失败",
		})
		return
	}

	render.JSON(w, r, APIResponse{
		Status: http.StatusOK,
		Msg:    "获取审计调度列表成功",
		Data:   schedules,
	})
}
