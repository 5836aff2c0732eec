/*
 * @module service/audit/exception_service
 * @description 质量异常处置服务，提供异常记录的查询与人工解决
 * @architecture 服务层
 * @documentReference ai_docs/quality_engine_req.md
 * @stateFlow 评估落异常 -> 人工查询 -> 标记解决
 * @rules 异常记录是审计模型中唯一可变的实体，解决操作幂等，后写覆盖
 * @dependencies gorm.io/gorm
 * @refs dispatcher.go, service/models/audit_models.go
 */

package audit

import (
	"time"

	"gorm.io/gorm"

	"dataquality-service/service/models"
)

// ExceptionService 质量异常处置服务
type ExceptionService struct {
	db *gorm.DB
}

// NewExceptionService 创建异常处置服务
func NewExceptionService(db *gorm.DB) *ExceptionService {
	return &ExceptionService{db: db}
}

// ExceptionFilter 异常查询条件
type ExceptionFilter struct {
	ResultID   string
	RuleID     string
	IsResolved *bool
	Page       int
	Size       int
}

// List 分页查询异常记录
func (s *ExceptionService) List(filter ExceptionFilter) ([]models.QualityException, int64, error) {
	query := s.db.Model(&models.QualityException{})
	if filter.ResultID != "" {
		query = query.Where("result_id = ?", filter.ResultID)
	}
	if filter.RuleID != "" {
		query = query.Where("rule_id = ?", filter.RuleID)
	}
	if filter.IsResolved != nil {
		query = query.Where("is_resolved = ?", *filter.IsResolved)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, size := filter.Page, filter.Size
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 500 {
		size = 50
	}

	var exceptions []models.QualityException
	if err := query.Order("created_at DESC").
		Offset((page - 1) * size).Limit(size).
		Find(&exceptions).Error; err != nil {
		return nil, 0, err
	}
	return exceptions, total, nil
}

// GetByID 查询单条异常记录
func (s *ExceptionService) GetByID(id string) (*models.QualityException, error) {
	var exc models.QualityException
	if err := s.db.First(&exc, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &exc, nil
}

// Resolve 标记异常已解决
// 重复解决按后写覆盖处理，不报错
func (s *ExceptionService) Resolve(id, resolvedBy, notes string) (*models.QualityException, error) {
	var exc models.QualityException
	if err := s.db.First(&exc, "id = ?", id).Error; err != nil {
		return nil, err
	}

	now := time.Now()
	updates := map[string]interface{}{
		"is_resolved": true,
		"resolved_by": resolvedBy,
		"resolved_at": &now,
		"notes":       notes,
	}
	if err := s.db.Model(&exc).Updates(updates).Error; err != nil {
		return nil, err
	}
	return &exc, nil
}

// Reopen 重新打开异常
func (s *ExceptionService) Reopen(id string) (*models.QualityException, error) {
	var exc models.QualityException
	if err := s.db.First(&exc, "id = ?", id).Error; err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"is_resolved": false,
		"resolved_by": "",
		"resolved_at": nil,
	}
	if err := s.db.Model(&exc).Updates(updates).Error; err != nil {
		return nil, err
	}
	return &exc, nil
}

// CountUnresolved 统计规则的未解决异常数
func (s *ExceptionService) CountUnresolved(ruleID string) (int64, error) {
	var count int64
	err := s.db.Model(&models.QualityException{}).
		Where("rule_id = ? AND is_resolved = ?", ruleID, false).
		Count(&count).Error
	return count, err
}
